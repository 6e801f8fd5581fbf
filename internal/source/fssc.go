package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// FSSC collects the federal material price list, still published as a
// CSV drop on anonymous FTP. Expected columns: code;name;unit;price;group.
type FSSC struct {
	fetcher   fetcher.Fetcher // FTP-capable fetcher
	url       string
	validFrom time.Time
}

// NewFSSC creates the federal material prices collector.
func NewFSSC(f fetcher.Fetcher, url string, validFrom time.Time) *FSSC {
	return &FSSC{fetcher: f, url: url, validFrom: validFrom}
}

func (c *FSSC) Name() string             { return "fssc" }
func (c *FSSC) Category() model.Category { return model.CategoryFSSC }

// Discover reports the single price list drop.
func (c *FSSC) Discover(ctx context.Context) ([]Descriptor, error) {
	return []Descriptor{{
		Name:     c.Name(),
		Category: c.Category(),
		Format:   FormatCSV,
		Endpoint: c.url,
	}}, nil
}

// Fetch downloads and parses the material price list.
func (c *FSSC) Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error) {
	rc, err := c.fetcher.Download(ctx, d.Endpoint)
	if err != nil {
		return nil, &NetworkError{Source: c.Name(), Err: err}
	}
	defer rc.Close()

	rows, err := parseCSVRows(ctx, rc)
	if err != nil {
		return nil, &ParseError{Source: c.Name(), Err: err}
	}

	return materialRows(c.Name(), model.CategoryFSSC, "", rows, vintageOr(c.validFrom)), nil
}

// materialRows converts tabular material price rows into raw records.
func materialRows(sourceName string, cat model.Category, region string, rows [][]string, validFrom time.Time) []model.RawItem {
	items := make([]model.RawItem, 0, len(rows))
	for i, row := range rows {
		if len(row) < 4 {
			zap.L().Warn("material row too short, skipping",
				zap.String("source", sourceName),
				zap.Int("row", i+1),
				zap.Int("columns", len(row)),
			)
			continue
		}
		item := model.RawMaterialPrice{
			Cat:        cat,
			SourceName: sourceName,
			Code:       row[0],
			Name:       row[1],
			Unit:       row[2],
			Price:      row[3],
			Region:     region,
			ValidFrom:  validFrom,
		}
		if len(row) > 4 {
			item.MaterialGroup = row[4]
		}
		items = append(items, item)
	}
	return items
}
