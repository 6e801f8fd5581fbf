package source

import (
	"context"
	"fmt"
	"time"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// TER collects territorial unit cost rates: one XLSX workbook per
// configured region.
type TER struct {
	fetcher     fetcher.Fetcher
	urlTemplate string // expects one %s for the region code
	regions     []string
	validFrom   time.Time
}

// NewTER creates the territorial rates collector.
func NewTER(f fetcher.Fetcher, urlTemplate string, regions []string, validFrom time.Time) *TER {
	return &TER{fetcher: f, urlTemplate: urlTemplate, regions: regions, validFrom: validFrom}
}

func (c *TER) Name() string             { return "ter" }
func (c *TER) Category() model.Category { return model.CategoryTER }

// Discover reports one workbook per configured region.
func (c *TER) Discover(ctx context.Context) ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(c.regions))
	for _, region := range c.regions {
		descs = append(descs, Descriptor{
			Name:     c.Name(),
			Category: c.Category(),
			Format:   FormatXLSX,
			Endpoint: fmt.Sprintf(c.urlTemplate, region),
			Region:   region,
		})
	}
	return descs, nil
}

// Fetch downloads and parses one region's workbook.
func (c *TER) Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error) {
	rc, err := c.fetcher.Download(ctx, d.Endpoint)
	if err != nil {
		return nil, &NetworkError{Source: c.Name(), Err: err}
	}
	defer rc.Close()

	rows, err := parseXLSXRows(ctx, rc)
	if err != nil {
		return nil, &ParseError{Source: c.Name(), Err: err}
	}

	return rateRows(c.Name(), model.CategoryTER, d.Region, rows, vintageOr(c.validFrom)), nil
}
