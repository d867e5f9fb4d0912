package rag

import (
	"fmt"
	"strings"

	"webrag/internal/llm"
)

const answerInstruction = `You are a helpful assistant. Answer questions based on the provided context and previous conversation history.

Context:
---
%s
---

Instructions:
- Use the context above as the only source of facts about the document.
- Maintain continuity with the previous conversation.
- If the answer is not in the context, say "I could not find an answer in the provided context."
- Be conversational.`

const directInstruction = `You are a helpful assistant that normally answers questions using the content of %s.
For this turn it was decided that searching that content is not necessary, so answer from the conversation and general knowledge.
If the question actually asks about specific content of %s, say that the content needs to be searched to answer it.`

// NormalizeRole maps the role labels clients send to the roles generators accept.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case llm.RoleAssistant, "bot", "model", "ai":
		return llm.RoleAssistant
	default:
		return llm.RoleUser
	}
}

func historyMessages(history []Turn) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, t := range history {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, llm.Message{Role: NormalizeRole(t.Role), Content: t.Content})
	}
	return out
}

// buildMessages orders a prompt as system instruction, history, then the new query.
func buildMessages(system string, history []Turn, query string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, historyMessages(history)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
	return msgs
}

// evidenceBlock labels each hit with its source, in store order.
func evidenceBlock(chunks []Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("source: %s\ncontent: %s", c.ContextURL, c.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func answerMessages(q Query, chunks []Chunk) []llm.Message {
	return buildMessages(fmt.Sprintf(answerInstruction, evidenceBlock(chunks)), q.History, q.Text)
}

func directMessages(q Query) []llm.Message {
	return buildMessages(fmt.Sprintf(directInstruction, q.ContextURL, q.ContextURL), q.History, q.Text)
}

func notFoundAnswer(contextURL string) string {
	return fmt.Sprintf("Could not find relevant information in %s's content.", contextURL)
}

func recentHistory(history []Turn) []Turn {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
