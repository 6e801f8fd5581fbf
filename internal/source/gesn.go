package source

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// GESN collects state elemental norms: consumption figures instead of
// prices. Expected columns:
// code;name;unit;labor_consumption;machine_time;materials;chapter;section.
// The materials column embeds one material per line, fields separated by
// tabs: code, name, unit, consumption, waste coefficient.
type GESN struct {
	fetcher   fetcher.Fetcher
	url       string
	validFrom time.Time
}

// NewGESN creates the elemental norms collector.
func NewGESN(f fetcher.Fetcher, url string, validFrom time.Time) *GESN {
	return &GESN{fetcher: f, url: url, validFrom: validFrom}
}

func (c *GESN) Name() string             { return "gesn" }
func (c *GESN) Category() model.Category { return model.CategoryGESN }

// Discover reports the single norm sheet.
func (c *GESN) Discover(ctx context.Context) ([]Descriptor, error) {
	return []Descriptor{{
		Name:     c.Name(),
		Category: c.Category(),
		Format:   FormatCSV,
		Endpoint: c.url,
	}}, nil
}

// Fetch downloads and parses the norm sheet.
func (c *GESN) Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error) {
	rc, err := c.fetcher.Download(ctx, d.Endpoint)
	if err != nil {
		return nil, &NetworkError{Source: c.Name(), Err: err}
	}
	defer rc.Close()

	rows, err := parseCSVRows(ctx, rc)
	if err != nil {
		return nil, &ParseError{Source: c.Name(), Err: err}
	}

	validFrom := vintageOr(c.validFrom)
	items := make([]model.RawItem, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			zap.L().Warn("norm row too short, skipping",
				zap.String("source", c.Name()),
				zap.Int("row", i+1),
				zap.Int("columns", len(row)),
			)
			continue
		}
		item := model.RawNorm{
			SourceName:       c.Name(),
			Code:             row[0],
			Name:             row[1],
			Unit:             row[2],
			LaborConsumption: row[3],
			MachineTime:      row[4],
			ValidFrom:        validFrom,
		}
		if len(row) > 5 {
			item.Materials = parseNormMaterials(row[5])
		}
		if len(row) > 6 {
			item.Chapter = row[6]
		}
		if len(row) > 7 {
			item.Section = row[7]
		}
		items = append(items, item)
	}
	return items, nil
}

// parseNormMaterials splits the embedded materials column. Lines with
// fewer than three fields are dropped; validation of the kept ones is
// the validator's job.
func parseNormMaterials(text string) []model.RawNormMaterial {
	var out []model.RawNormMaterial
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		m := model.RawNormMaterial{
			Code: strings.TrimSpace(parts[0]),
			Name: strings.TrimSpace(parts[1]),
			Unit: strings.TrimSpace(parts[2]),
		}
		if len(parts) > 3 {
			m.Consumption = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			m.WasteCoefficient = strings.TrimSpace(parts[4])
		}
		out = append(out, m)
	}
	return out
}
