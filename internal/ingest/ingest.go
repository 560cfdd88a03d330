// Package ingest extracts plain text from uploaded documents and splits it
// into reading paragraphs.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Errors returned by text extraction.
var (
	// ErrUnsupportedFormat indicates the file extension is not one of the
	// supported document formats.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates extraction succeeded but produced no
	// usable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrCorruptDocument indicates the file could not be parsed as its
	// claimed format.
	ErrCorruptDocument = errors.New("document is corrupt or malformed")
)

// supported extensions, lowercase with leading dot.
var extractors = map[string]func([]byte) (string, error){
	".txt":  extractTxt,
	".pdf":  extractPDF,
	".docx": extractDocx,
	".epub": extractEpub,
	".mobi": extractMobi,
}

// SupportedExtension reports whether the filename carries an extension this
// package can extract text from.
func SupportedExtension(filename string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract pulls the plain text out of an uploaded document, dispatching on
// the file extension.
func Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extract, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	text, err := extract(data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}
