package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// FER collects federal unit cost rates, published as a semicolon CSV.
// Expected columns: code;name;unit;labor;material;machine;total;chapter;section.
type FER struct {
	fetcher   fetcher.Fetcher
	url       string
	validFrom time.Time
}

// NewFER creates the federal rates collector.
func NewFER(f fetcher.Fetcher, url string, validFrom time.Time) *FER {
	return &FER{fetcher: f, url: url, validFrom: validFrom}
}

func (c *FER) Name() string             { return "fer" }
func (c *FER) Category() model.Category { return model.CategoryFER }

// Discover reports the single federal rate sheet.
func (c *FER) Discover(ctx context.Context) ([]Descriptor, error) {
	return []Descriptor{{
		Name:     c.Name(),
		Category: c.Category(),
		Format:   FormatCSV,
		Endpoint: c.url,
	}}, nil
}

// Fetch downloads and parses the federal rate sheet.
func (c *FER) Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error) {
	rc, err := c.fetcher.Download(ctx, d.Endpoint)
	if err != nil {
		return nil, &NetworkError{Source: c.Name(), Err: err}
	}
	defer rc.Close()

	rows, err := parseCSVRows(ctx, rc)
	if err != nil {
		return nil, &ParseError{Source: c.Name(), Err: err}
	}

	return rateRows(c.Name(), model.CategoryFER, "", rows, vintageOr(c.validFrom)), nil
}

// rateRows converts tabular rate rows into raw records. Rows too short to
// carry the cost columns are skipped with a warning; everything else is
// passed through untouched for the canonicalizer to judge.
func rateRows(sourceName string, cat model.Category, region string, rows [][]string, validFrom time.Time) []model.RawItem {
	items := make([]model.RawItem, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			zap.L().Warn("rate row too short, skipping",
				zap.String("source", sourceName),
				zap.Int("row", i+1),
				zap.Int("columns", len(row)),
			)
			continue
		}
		item := model.RawRate{
			Cat:          cat,
			SourceName:   sourceName,
			Code:         row[0],
			Name:         row[1],
			Unit:         row[2],
			LaborCost:    row[3],
			MaterialCost: row[4],
			MachineCost:  row[5],
			TotalCost:    row[6],
			Region:       region,
			ValidFrom:    validFrom,
		}
		if len(row) > 7 {
			item.Chapter = row[7]
		}
		if len(row) > 8 {
			item.Section = row[8]
		}
		items = append(items, item)
	}
	return items
}
