package internal

import (
	"context"
	"sync"
	"time"
)

// Generator is the opaque text-generation capability. Implementations are
// assumed to be heavy and exclusive: callers must not invoke Generate from
// two goroutines at once.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// OpenAIGenerator backs Generator with OpenAI chat completions. The client
// is created lazily so commands that never generate don't require an API
// key.
type OpenAIGenerator struct {
	client     OpenAIClientInterface
	model      string
	timeout    time.Duration
	apiKey     string
	clientOnce sync.Once
}

// NewOpenAIGenerator creates a generator with lazy client initialization.
func NewOpenAIGenerator(apiKey, model string, timeout time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{
		model:   model,
		timeout: timeout,
		apiKey:  apiKey,
	}
}

// NewGeneratorWithClient creates a generator over an existing client.
func NewGeneratorWithClient(client OpenAIClientInterface, model string, timeout time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

func (g *OpenAIGenerator) ensureClient() error {
	if g.client != nil {
		return nil
	}
	if err := ValidateOpenAIAPIKey(g.apiKey); err != nil {
		return err
	}
	g.clientOnce.Do(func() {
		g.client = NewOpenAIClient(g.apiKey)
	})
	return nil
}

// Generate runs one chat completion within the configured timeout. Failures
// are wrapped in GenerationError.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.ensureClient(); err != nil {
		return "", err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	content, err := g.client.CreateChatCompletion(ctx, g.model, prompt)
	if err != nil {
		return "", &GenerationError{Op: "chat completion", Err: err}
	}
	return content, nil
}
