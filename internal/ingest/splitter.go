package ingest

import (
	"strings"
	"unicode/utf8"
)

// TargetParagraphRunes is the merge threshold for reading paragraphs. Short
// source paragraphs are merged until adding the next one would push past
// this size, so every reading unit carries enough text for a meaningful
// comprehension quiz.
const TargetParagraphRunes = 1000

// SplitParagraphs turns extracted document text into reading paragraphs.
// The text is broken at line boundaries, blank lines and whitespace-only
// lines are discarded, and adjacent fragments merge up to the target size.
// A single fragment longer than the target stays whole; paragraphs are
// never split mid-sentence.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var fragments []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			fragments = append(fragments, line)
		}
	}

	var paragraphs []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, fragment := range fragments {
		fragLen := utf8.RuneCountInString(fragment)
		if currentLen > 0 && currentLen+fragLen+1 > TargetParagraphRunes {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n")
			currentLen++
		}
		current.WriteString(fragment)
		currentLen += fragLen
	}
	flush()

	return paragraphs
}
