package canonical

// ConversionRates price out resource consumption for norm-type sources.
// GESN norms carry labor hours and machine hours, not rubles; the engine
// converts them at fixed base-period rates.
type ConversionRates struct {
	LaborHourRate   float64 `mapstructure:"labor_hour_rate" yaml:"labor_hour_rate"`
	MachineHourRate float64 `mapstructure:"machine_hour_rate" yaml:"machine_hour_rate"`
}

// DefaultConversionRates returns the base-period 2001 resource rates.
func DefaultConversionRates() ConversionRates {
	return ConversionRates{
		LaborHourRate:   100,
		MachineHourRate: 500,
	}
}

// deriveNormCosts converts labor and machine consumption into base costs.
func (c ConversionRates) deriveNormCosts(laborHours, machineHours float64) (laborCost, machineCost float64) {
	return laborHours * c.LaborHourRate, machineHours * c.MachineHourRate
}
