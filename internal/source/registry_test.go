package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	f := &fakeFetcher{}
	r := NewRegistry()
	r.Register(NewFER(f, "http://rates/fer.csv", time.Time{}))
	r.Register(NewGESN(f, "http://norms/gesn.csv", time.Time{}))
	r.Register(NewTSSC(f, "http://prices/tssc/%s.json", []string{"77"}, time.Time{}))
	return r
}

func TestRegistryGet(t *testing.T) {
	r := testRegistry()

	c, err := r.Get("gesn")
	require.NoError(t, err)
	assert.Equal(t, "gesn", c.Name())

	_, err = r.Get("ter")
	assert.Error(t, err)
}

func TestRegistrySelect(t *testing.T) {
	r := testRegistry()

	all, err := r.Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "fer", all[0].Name())
	assert.Equal(t, "gesn", all[1].Name())

	some, err := r.Select([]string{"tssc", "fer"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "tssc", some[0].Name())

	_, err = r.Select([]string{"fer", "bogus"})
	assert.Error(t, err)
}

func TestRegistryDiscover(t *testing.T) {
	descs, err := testRegistry().Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 3)
	assert.Equal(t, FormatCSV, descs[0].Format)
	assert.Equal(t, "gesn", descs[1].Name)
	assert.Equal(t, "77", descs[2].Region)
	assert.Equal(t, FormatJSON, descs[2].Format)
}
