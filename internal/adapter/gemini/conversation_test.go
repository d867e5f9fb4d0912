package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webrag/internal/llm"
)

func TestSplitConversation(t *testing.T) {
	system, history, last := splitConversation([]llm.Message{
		{Role: llm.RoleSystem, Content: "answer briefly"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "what is go?"},
	})

	assert.Equal(t, "answer briefly", system)
	assert.Equal(t, "what is go?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("hello"), history[1].Parts[0])
}

func TestSplitConversation_Empty(t *testing.T) {
	system, history, last := splitConversation(nil)
	assert.Empty(t, system)
	assert.Empty(t, history)
	assert.Empty(t, last)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Text("b")}}},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
	}}
	assert.Equal(t, "ab", responseText(resp))
}
