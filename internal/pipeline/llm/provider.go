package llm

import "context"

// Provider generates draft text from a fully assembled prompt. The prompt
// builder, not the provider, decides how context and requirements are laid
// out; providers only differ in transport.
type Provider interface {
	Generate(ctx context.Context, prompt string, tone string) (string, error)
}
