package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSSE(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Data lines", "data: a\n\ndata: b\n\n", []string{"a", "b"}},
		{"Skips event lines", "event: delta\ndata: a\n\n", []string{"a"}},
		{"Stops at DONE", "data: a\n\ndata: [DONE]\n\ndata: b\n", []string{"a"}},
		{"No trailing newline", "data: a", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := ReadSSE(strings.NewReader(tt.input), func(data string) (bool, error) {
				got = append(got, data)
				return false, nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadSSE_CallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := ReadSSE(strings.NewReader("data: a\n\ndata: b\n\n"), func(string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}
