package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

var coeffCmd = &cobra.Command{
	Use:   "coeff",
	Short: "Manage index coefficients and overhead norms",
}

// coeffSeed is the YAML layout of a coefficient seed file, published
// quarterly alongside the ministry index letters.
type coeffSeed struct {
	BasePeriod    string                     `yaml:"base_period"`
	Coefficients  []model.IndexCoefficient   `yaml:"coefficients"`
	OverheadNorms []model.OverheadProfitNorm `yaml:"overhead_norms"`
}

var coeffRefreshCmd = &cobra.Command{
	Use:   "refresh [file]",
	Short: "Load index coefficients from a seed file",
	Long: `Load index coefficients and overhead/profit norms from a YAML
seed file into the store. Defaults to the path in pricing.seed_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path := cfg.Pricing.SeedPath
		if len(args) == 1 {
			path = args[0]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "coeff refresh: read %s", path)
		}

		var seed coeffSeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrapf(err, "coeff refresh: parse %s", path)
		}

		for i := range seed.Coefficients {
			c := &seed.Coefficients[i]
			if c.BasePeriod == "" {
				c.BasePeriod = seed.BasePeriod
			}
			c.IsActive = true
		}
		for i := range seed.OverheadNorms {
			seed.OverheadNorms[i].IsActive = true
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		nc, err := st.UpsertCoefficients(ctx, seed.Coefficients)
		if err != nil {
			return eris.Wrap(err, "coeff refresh: upsert coefficients")
		}
		nn, err := st.UpsertOverheadNorms(ctx, seed.OverheadNorms)
		if err != nil {
			return eris.Wrap(err, "coeff refresh: upsert overhead norms")
		}

		zap.L().Info("coefficient refresh complete",
			zap.String("file", path),
			zap.Int("coefficients", nc),
			zap.Int("overhead_norms", nn),
		)
		fmt.Printf("Loaded %d coefficients, %d overhead norms\n", nc, nn)
		return nil
	},
}

var coeffShowCmd = &cobra.Command{
	Use:   "show <region>",
	Short: "Show coefficients applicable to a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		region := args[0]
		period, _ := cmd.Flags().GetString("period")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		coeffs, err := st.FindCoefficients(ctx, region, period)
		if err != nil {
			return eris.Wrap(err, "coeff show")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tREGION\tBASE\tTARGET\tVALUE")
		for _, c := range coeffs {
			regionCol := c.RegionCode
			if regionCol == "" {
				regionCol = "(national)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\n",
				c.Type, regionCol, c.BasePeriod, c.TargetPeriod, c.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		norm, err := st.FindOverheadNorm(ctx, region)
		if err != nil {
			return eris.Wrap(err, "coeff show: overhead norm")
		}
		if norm != nil {
			fmt.Printf("\nOverhead: %.2f%%  Profit: %.2f%% (of labor base)\n",
				norm.OverheadNorm, norm.ProfitNorm)
		}
		return nil
	},
}

func init() {
	coeffShowCmd.Flags().String("period", "", "target period filter")
	coeffCmd.AddCommand(coeffRefreshCmd)
	coeffCmd.AddCommand(coeffShowCmd)
	rootCmd.AddCommand(coeffCmd)
}
