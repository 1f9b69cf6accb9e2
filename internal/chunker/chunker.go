// Package chunker splits text that exceeds the per-request character limit
// into pieces that can be translated one after another.
package chunker

import (
	"strings"
	"unicode"
)

// MaxChars is the per-request text limit of the translation endpoint,
// counted in unicode code points.
const MaxChars = 5000

// Separator is placed between translated chunks when they are joined.
const Separator = "\n\n"

// Chunk splits text into pieces each no longer than maxChars code points.
// Splits are attempted, in order of preference, at:
//  1. Paragraph boundaries (a blank line)
//  2. Sentence-ending punctuation followed by whitespace, including the
//     CJK full stops and the Devanagari danda
//  3. Whitespace
//  4. A hard cut at maxChars
//
// Text that already fits is returned as a single element. maxChars <= 0
// means unlimited.
func Chunk(text string, maxChars int) []string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxChars {
		cut, skip := findSplit(runes[:maxChars])
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = trimLeftSpace(runes[cut+skip:])
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// Join reassembles translated chunks.
func Join(chunks []string) string {
	return strings.Join(chunks, Separator)
}

// findSplit returns the rune index to cut candidate at and how many runes
// after the cut belong to the separator.
func findSplit(candidate []rune) (cut, skip int) {
	// Paragraph boundary: "\n\n" or "\r\n\r\n".
	for i := len(candidate) - 2; i > 0; i-- {
		if candidate[i] == '\n' && candidate[i+1] == '\n' {
			return i, 2
		}
		if candidate[i] == '\n' && candidate[i+1] == '\r' && i+2 < len(candidate) && candidate[i+2] == '\n' {
			return i, 3
		}
	}

	// Sentence end. CJK full stops need no trailing space.
	for i := len(candidate) - 2; i > 0; i-- {
		switch candidate[i] {
		case '.', '!', '?', '।':
			if unicode.IsSpace(candidate[i+1]) {
				return i + 1, 0
			}
		case '。', '！', '？':
			return i + 1, 0
		}
	}

	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return i, 1
		}
	}

	return len(candidate), 0
}

func trimLeftSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}
