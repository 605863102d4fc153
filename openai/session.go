package openai

import (
	"context"
	"fmt"
)

// historyLimit caps the retained conversation turns so long chats do not
// grow requests without bound.
const historyLimit = 40

// Session is a multi-turn conversation bound to one assistant role. It keeps
// the message history but never the credential; the caller passes it on each
// Ask.
type Session struct {
	client  *Client
	role    string
	history []chatMessage
}

// NewSession opens a conversation primed with the assistant role.
func (c *Client) NewSession(role string) *Session {
	return &Session{
		client: c,
		role:   role,
		history: []chatMessage{{
			Role:    "system",
			Content: fmt.Sprintf("You are a %s. Answer as if talking to a person in a chat.", role),
		}},
	}
}

// Role returns the assistant role the session was created with.
func (s *Session) Role() string { return s.role }

// Ask sends the next user message with the accumulated history. The history
// grows only on success, so a failed call can be retried with the same text.
func (s *Session) Ask(ctx context.Context, credential, text string) (string, error) {
	messages := append(append([]chatMessage(nil), s.history...), chatMessage{Role: "user", Content: text})
	answer, err := s.client.chat(ctx, credential, messages)
	if err != nil {
		return "", err
	}
	s.history = append(messages, chatMessage{Role: "assistant", Content: answer})
	s.trim()
	return answer, nil
}

func (s *Session) trim() {
	if len(s.history) <= historyLimit {
		return
	}
	// Keep the system prompt, drop the oldest turns.
	trimmed := make([]chatMessage, 0, historyLimit)
	trimmed = append(trimmed, s.history[0])
	trimmed = append(trimmed, s.history[len(s.history)-historyLimit+1:]...)
	s.history = trimmed
}
