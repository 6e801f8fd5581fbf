package source

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/stroysmeta/normcat-cli/internal/fetcher"
)

// Format identifies the wire format of a source document.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// formatByExt is the static extension dispatch table. New formats are
// added here, not discovered dynamically.
var formatByExt = map[string]Format{
	".csv":  FormatCSV,
	".xlsx": FormatXLSX,
	".json": FormatJSON,
}

// DetectFormat resolves a document URL to its format by extension.
func DetectFormat(rawURL string) (Format, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "source: parse url %q", rawURL)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	f, ok := formatByExt[ext]
	if !ok {
		return "", eris.Errorf("source: unsupported document extension %q", ext)
	}
	return f, nil
}

// RowParser turns a document stream into tabular rows.
type RowParser func(ctx context.Context, r io.Reader) ([][]string, error)

// rowParsers is the static parser table for tabular formats. JSON sources
// are structured rather than tabular and are decoded by their collector.
var rowParsers = map[Format]RowParser{
	FormatCSV:  parseCSVRows,
	FormatXLSX: parseXLSXRows,
}

// ParserFor returns the row parser for a tabular format.
func ParserFor(f Format) (RowParser, error) {
	p, ok := rowParsers[f]
	if !ok {
		return nil, eris.Errorf("source: no row parser for format %q", f)
	}
	return p, nil
}

// parseCSVRows reads a semicolon-delimited CSV document, transcoding the
// legacy windows-1251 exports, skipping the header row.
func parseCSVRows(ctx context.Context, r io.Reader) ([][]string, error) {
	decoded, err := fetcher.SniffEncoding(r)
	if err != nil {
		return nil, eris.Wrap(err, "source: sniff encoding")
	}
	return fetcher.ReadCSV(ctx, decoded, fetcher.CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		TrimSpace: true,
	})
}

// parseXLSXRows reads the first sheet of a workbook, skipping the header row.
func parseXLSXRows(_ context.Context, r io.Reader) ([][]string, error) {
	return fetcher.ReadXLSXReader(r, fetcher.XLSXOptions{SkipRows: 1})
}
