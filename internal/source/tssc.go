package source

import (
	"context"
	"fmt"
	"time"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// tsscRow is the JSON shape the territorial material price API returns.
// Prices come back as strings with decimal commas, same as the CSV drops.
type tsscRow struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Price string `json:"price"`
	Group string `json:"group,omitempty"`
}

// TSSC collects territorial material prices from a JSON API, one request
// per region.
type TSSC struct {
	fetcher     fetcher.Fetcher
	urlTemplate string // expects one %s for the region code
	regions     []string
	validFrom   time.Time
}

// NewTSSC creates the territorial material prices collector.
func NewTSSC(f fetcher.Fetcher, urlTemplate string, regions []string, validFrom time.Time) *TSSC {
	return &TSSC{fetcher: f, urlTemplate: urlTemplate, regions: regions, validFrom: validFrom}
}

func (c *TSSC) Name() string             { return "tssc" }
func (c *TSSC) Category() model.Category { return model.CategoryTSSC }

// Discover reports one API endpoint per configured region.
func (c *TSSC) Discover(ctx context.Context) ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(c.regions))
	for _, region := range c.regions {
		descs = append(descs, Descriptor{
			Name:     c.Name(),
			Category: c.Category(),
			Format:   FormatJSON,
			Endpoint: fmt.Sprintf(c.urlTemplate, region),
			Region:   region,
		})
	}
	return descs, nil
}

// Fetch pulls one region's price list.
func (c *TSSC) Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error) {
	rc, err := c.fetcher.Download(ctx, d.Endpoint)
	if err != nil {
		return nil, &NetworkError{Source: c.Name(), Err: err}
	}
	defer rc.Close()

	validFrom := vintageOr(c.validFrom)
	rowCh, errCh := fetcher.DecodeJSONArray[tsscRow](ctx, rc)

	var items []model.RawItem
	for row := range rowCh {
		items = append(items, model.RawMaterialPrice{
			Cat:           model.CategoryTSSC,
			SourceName:    c.Name(),
			Code:          row.Code,
			Name:          row.Name,
			Unit:          row.Unit,
			Price:         row.Price,
			Region:        d.Region,
			MaterialGroup: row.Group,
			ValidFrom:     validFrom,
		})
	}
	if err := <-errCh; err != nil {
		return nil, &ParseError{Source: c.Name(), Err: err}
	}
	return items, nil
}
