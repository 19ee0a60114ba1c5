package domain

import "context"

// Llm abstracts any text-generation provider.
type Llm interface {
	// Generate takes a prompt and returns the model's reply.
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)
