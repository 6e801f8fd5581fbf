package fetcher

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// utf8BOM is the byte order mark some territorial exports prepend.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeWindows1251 wraps a reader so that windows-1251 bytes come out as
// UTF-8. Regional CSV exports still ship in the legacy encoding.
func DecodeWindows1251(r io.Reader) io.Reader {
	return transform.NewReader(r, charmap.Windows1251.NewDecoder())
}

// SniffEncoding inspects the first bytes of the payload and returns a reader
// producing UTF-8. A leading BOM or valid UTF-8 passes through unchanged;
// anything else is treated as windows-1251.
func SniffEncoding(r io.Reader) (io.Reader, error) {
	head := make([]byte, 4096)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	head = head[:n]

	rest := io.MultiReader(bytes.NewReader(head), r)

	if bytes.HasPrefix(head, utf8BOM) {
		return io.MultiReader(bytes.NewReader(head[len(utf8BOM):]), r), nil
	}
	if validUTF8Prefix(head) {
		return rest, nil
	}
	return DecodeWindows1251(rest), nil
}

// validUTF8Prefix reports whether b is valid UTF-8, allowing a rune cut
// short at the end of the sampled window.
func validUTF8Prefix(b []byte) bool {
	for trim := 0; trim <= 3 && trim <= len(b); trim++ {
		if utf8.Valid(b[:len(b)-trim]) {
			return true
		}
	}
	return false
}
