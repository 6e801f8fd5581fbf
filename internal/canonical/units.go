package canonical

import "strings"

// unitAliases maps the spellings found in source files to the canonical
// measurement vocabulary. Catalog publishers are not consistent: the same
// unit shows up with dots, hyphens, ASCII digits, or full words.
var unitAliases = map[string]string{
	"м3":        "м³",
	"м³":        "м³",
	"куб.м":     "м³",
	"куб. м":    "м³",
	"м2":        "м²",
	"м²":        "м²",
	"кв.м":      "м²",
	"кв. м":     "м²",
	"м":         "м",
	"п.м":       "м",
	"пог.м":     "м",
	"чел.-ч":    "чел·ч",
	"чел.-час":  "чел·ч",
	"чел-ч":     "чел·ч",
	"чел.ч":     "чел·ч",
	"чел·ч":     "чел·ч",
	"маш.-ч":    "маш·ч",
	"маш.-час":  "маш·ч",
	"маш-ч":     "маш·ч",
	"маш.ч":     "маш·ч",
	"маш·ч":     "маш·ч",
	"т":         "т",
	"тн":        "т",
	"кг":        "кг",
	"шт":        "шт",
	"шт.":       "шт",
	"штук":      "шт",
	"компл":     "компл",
	"компл.":    "компл",
	"комплект":  "компл",
	"100 м3":    "100 м³",
	"100 м³":    "100 м³",
	"100 м2":    "100 м²",
	"100 м²":    "100 м²",
	"1000 м3":   "1000 м³",
	"1000 м³":   "1000 м³",
	"100 шт":    "100 шт",
	"100 шт.":   "100 шт",
	"1000 шт":   "1000 шт",
	"1000 шт.":  "1000 шт",
	"т/км":      "т·км",
	"т·км":      "т·км",
	"м3/ч":      "м³/ч",
	"м³/ч":      "м³/ч",
	"квт":       "кВт",
	"квт-ч":     "кВт·ч",
	"квт·ч":     "кВт·ч",
	"л":         "л",
	"процент":   "%",
	"%":         "%",
}

// NormalizeUnit maps a raw unit spelling onto the canonical vocabulary.
// When the unit is unknown it returns the trimmed input and false so the
// caller can record a provenance warning without losing the original text.
func NormalizeUnit(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if u, ok := unitAliases[strings.ToLower(s)]; ok {
		return u, true
	}
	return s, false
}
