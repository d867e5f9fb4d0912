package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestChunk(t *testing.T) {
	t.Run("Fits in one chunk", func(t *testing.T) {
		text := "This is a simple paragraph."
		assert.Equal(t, []string{text}, Chunk(text, 100, 0))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, Chunk("  \n\n ", 100, 10))
	})

	t.Run("No limit", func(t *testing.T) {
		assert.Equal(t, []string{"a\n\nb"}, Chunk(" a\n\nb ", 0, 0))
	})

	t.Run("Paragraph split", func(t *testing.T) {
		para1 := "Short paragraph."
		para2 := "Another short paragraph."
		chunks := Chunk(para1+"\n\n"+para2, 30, 0)
		assert.Equal(t, []string{para1, para2}, chunks)
	})

	t.Run("Paragraphs packed together", func(t *testing.T) {
		chunks := Chunk("one\n\ntwo\n\nthree", 100, 0)
		assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, chunks)
	})

	t.Run("Line split", func(t *testing.T) {
		line1 := "Line 1 is long enough."
		line2 := "Line 2 is also long."
		chunks := Chunk(line1+"\n"+line2, 25, 0)
		assert.Equal(t, []string{line1, line2}, chunks)
	})

	t.Run("Word split", func(t *testing.T) {
		chunks := Chunk("alpha beta gamma delta", 11, 0)
		assert.Equal(t, []string{"alpha beta", "gamma delta"}, chunks)
	})

	t.Run("Oversized word", func(t *testing.T) {
		chunks := Chunk("abcdefghij", 4, 0)
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
	})

	t.Run("Multibyte word stays valid", func(t *testing.T) {
		for _, c := range Chunk("ééééé", 3, 0) {
			assert.True(t, len(c) <= 3)
			assert.Equal(t, "é", c)
		}
	})

	t.Run("Overlap", func(t *testing.T) {
		chunks := Chunk("one two three four five six", 14, 5)
		assert.Equal(t, []string{"one two three", "three four", "four five six"}, chunks)
	})
}

func TestOverlapTail(t *testing.T) {
	assert.Equal(t, "three", overlapTail("one two three", 6))
	assert.Equal(t, "", overlapTail("one two three", 0))
	assert.Equal(t, "", overlapTail("short", 10))
	assert.Equal(t, "", overlapTail("onelongword", 4))
}

func TestChunk_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,12}`), 0, 60).Draw(t, "words")
		seps := []string{" ", "\n", "\n\n"}
		var sb strings.Builder
		for i, w := range words {
			if i > 0 {
				sb.WriteString(rapid.SampledFrom(seps).Draw(t, "sep"))
			}
			sb.WriteString(w)
		}
		text := sb.String()
		maxChars := rapid.IntRange(12, 200).Draw(t, "maxChars")

		chunks := Chunk(text, maxChars, 0)
		var rebuilt []string
		for _, c := range chunks {
			if len(c) > maxChars {
				t.Fatalf("chunk of %d bytes exceeds %d: %q", len(c), maxChars, c)
			}
			if strings.TrimSpace(c) == "" {
				t.Fatalf("empty chunk in %q", chunks)
			}
			rebuilt = append(rebuilt, strings.Fields(c)...)
		}
		if strings.Join(rebuilt, " ") != strings.Join(strings.Fields(text), " ") {
			t.Fatalf("words lost or reordered: %q -> %q", text, chunks)
		}

		overlap := rapid.IntRange(0, maxChars/2).Draw(t, "overlap")
		for _, c := range Chunk(text, maxChars, overlap) {
			if len(c) > maxChars {
				t.Fatalf("overlapped chunk of %d bytes exceeds %d", len(c), maxChars)
			}
		}
	})
}
