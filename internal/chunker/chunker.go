// Package chunker splits long inputs into pieces that fit a translation
// model's window while keeping sentences and paragraphs intact.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk splits text into pieces of at most maxChars runes, preferring in
// order: a paragraph break, a sentence end (. ! ? or the danda used by
// Hindi and Punjabi), a word boundary, and finally a hard cut.
//
// Text that fits, or maxChars <= 0, yields a single element.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len([]rune(remaining)) > maxChars {
		split := findSplit(remaining, maxChars)
		if chunk := strings.TrimSpace(remaining[:split]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[split:])
	}

	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '।', '॥':
		return true
	}
	return false
}

// findSplit returns the byte offset at which to cut text so that the head
// holds at most maxChars runes.
func findSplit(text string, maxChars int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}
	head := runes[:maxChars]
	candidate := string(head)

	if idx := strings.LastIndex(candidate, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(candidate, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	for i := len(head) - 2; i > 0; i-- {
		if isSentenceEnd(head[i]) && unicode.IsSpace(head[i+1]) {
			return len(string(head[:i+1]))
		}
	}

	for i := len(head) - 1; i > 0; i-- {
		if unicode.IsSpace(head[i]) {
			return len(string(head[:i]))
		}
	}

	return len(candidate)
}
