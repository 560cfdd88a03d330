package ingest

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractTxt treats the file as UTF-8 text, stripping a byte order mark if
// present.
func extractTxt(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrCorruptDocument)
	}
	return string(data), nil
}
