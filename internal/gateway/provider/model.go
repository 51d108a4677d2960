package provider

import "context"

type ChatPayload struct {
	System    string
	User      string
	Purpose   string
	MaxTokens int
}

type ModelProvider interface {
	ID() string
	Enabled() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
