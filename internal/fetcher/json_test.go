package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceRow struct {
	Code  string `json:"code"`
	Price string `json:"price"`
}

func TestDecodeJSONArray(t *testing.T) {
	in := `[{"code":"С-201","price":"12500,00"},{"code":"С-202","price":"340"}]`

	outCh, errCh := DecodeJSONArray[priceRow](context.Background(), strings.NewReader(in))

	var rows []priceRow
	for row := range outCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)

	require.Len(t, rows, 2)
	assert.Equal(t, "С-201", rows[0].Code)
	assert.Equal(t, "12500,00", rows[0].Price)
}

func TestDecodeJSONArrayEmpty(t *testing.T) {
	outCh, errCh := DecodeJSONArray[priceRow](context.Background(), strings.NewReader("[]"))
	for range outCh {
		t.Fatal("no rows expected")
	}
	assert.NoError(t, <-errCh)
}

func TestDecodeJSONArrayNotArray(t *testing.T) {
	outCh, errCh := DecodeJSONArray[priceRow](context.Background(), strings.NewReader(`{"rows":[]}`))
	for range outCh {
	}
	assert.Error(t, <-errCh)
}
