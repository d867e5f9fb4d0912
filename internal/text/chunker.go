package text

import (
	"strings"
	"unicode/utf8"
)

// piece is an indivisible unit of text and the separator that joins it to
// the piece before it.
type piece struct {
	text string
	sep  string
}

// Chunk splits text into chunks of at most maxChars bytes, respecting
// structure: paragraphs, then lines, then words. Each chunk after the first
// starts with up to overlap bytes from the end of the previous one, cut at a
// word boundary. A non-positive maxChars returns the trimmed text as one chunk.
func Chunk(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap > maxChars/2 {
		overlap = maxChars / 2
	}

	var chunks []string
	var current strings.Builder

	for _, p := range split(text, maxChars) {
		if current.Len() > 0 && current.Len()+len(p.sep)+len(p.text) > maxChars {
			prev := current.String()
			chunks = append(chunks, prev)
			current.Reset()

			if tail := overlapTail(prev, overlap); tail != "" && len(tail)+len(p.sep)+len(p.text) <= maxChars {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteString(p.sep)
		}
		current.WriteString(p.text)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func split(text string, maxChars int) []piece {
	var pieces []piece
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			pieces = append(pieces, piece{para, "\n\n"})
			continue
		}

		sep := "\n\n"
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if len(line) <= maxChars {
				pieces = append(pieces, piece{line, sep})
				sep = "\n"
				continue
			}

			// word fallback
			for _, word := range strings.Fields(line) {
				for _, part := range hardSplit(word, maxChars) {
					pieces = append(pieces, piece{part, sep})
					sep = " "
				}
			}
			sep = "\n"
		}
	}
	return pieces
}

// hardSplit cuts a single oversized word on rune boundaries.
func hardSplit(word string, maxChars int) []string {
	if len(word) <= maxChars {
		return []string{word}
	}

	var parts []string
	for len(word) > 0 {
		end := 0
		for end < len(word) {
			_, size := utf8.DecodeRuneInString(word[end:])
			if end > 0 && end+size > maxChars {
				break
			}
			end += size
		}
		parts = append(parts, word[:end])
		word = word[end:]
	}
	return parts
}

func overlapTail(s string, overlap int) string {
	if overlap <= 0 || len(s) <= overlap {
		return ""
	}

	start := len(s) - overlap
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	tail := s[start:]
	// drop the partial leading word
	if start > 0 && !isSpace(s[start-1]) {
		i := strings.IndexAny(tail, " \n")
		if i < 0 {
			return ""
		}
		tail = tail[i:]
	}
	return strings.TrimSpace(tail)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}
