package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// extractEpub walks the archive's XHTML content documents in path order and
// strips them down to their text. Reading the OPF spine would give the
// canonical order, but content paths are numbered in practice and path
// order matches it.
func extractEpub(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var docs []*zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".htm") {
			docs = append(docs, f)
		}
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("%w: no content documents found", ErrCorruptDocument)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	var content strings.Builder
	for _, f := range docs {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		node, err := html.Parse(rc)
		_ = rc.Close()
		if err != nil {
			continue
		}

		htmlText(node, &content)
		content.WriteString("\n\n")
	}

	return content.String(), nil
}

// block-level elements that end a paragraph of extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true, "section": true, "article": true,
}

// htmlText appends the visible text of the node tree to out.
func htmlText(n *html.Node, out *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		out.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "head" {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlText(c, out)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		out.WriteString("\n\n")
	}
}
