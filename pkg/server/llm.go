package server

import (
	"context"
	"strings"

	"github.com/go-go-golems/geppetto/pkg/inference/engine"
	"github.com/go-go-golems/geppetto/pkg/inference/engine/factory"
	"github.com/go-go-golems/geppetto/pkg/inference/middleware"
	"github.com/go-go-golems/geppetto/pkg/turns"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
)

const DefaultLLMSystemPrompt = "You answer questions about a knowledge base. Be concise. If you do not know, say so."

// EngineFactory returns a fresh inference engine for one request.
type EngineFactory func() (engine.Engine, error)

// LLMAnswerer answers with any geppetto engine (openai, claude, gemini, ollama...)
// configured through the ai-* flags. Inference failures and empty replies are
// reported as UpstreamError.
type LLMAnswerer struct {
	newEngine    EngineFactory
	systemPrompt string
}

func NewLLMAnswerer(newEngine EngineFactory, systemPrompt string) *LLMAnswerer {
	return &LLMAnswerer{newEngine: newEngine, systemPrompt: systemPrompt}
}

// NewLLMAnswererFromValues builds engines from the geppetto sections of parsed.
// One engine is created up front so configuration errors surface at startup.
func NewLLMAnswererFromValues(parsed *values.Values, systemPrompt string) (*LLMAnswerer, error) {
	newEngine := func() (engine.Engine, error) {
		return factory.NewEngineFromParsedValues(parsed)
	}
	if _, err := newEngine(); err != nil {
		return nil, errors.Wrap(err, "create llm engine")
	}
	return NewLLMAnswerer(newEngine, systemPrompt), nil
}

func (a *LLMAnswerer) Answer(ctx context.Context, question string) (Answer, error) {
	eng, err := a.newEngine()
	if err != nil {
		return Answer{}, errors.Wrap(err, "create llm engine")
	}
	if a.systemPrompt != "" {
		eng = withMiddlewares(eng, middleware.NewSystemPromptMiddleware(a.systemPrompt))
	}

	seed := turns.NewTurnBuilder().WithUserPrompt(question).Build()
	out, err := eng.RunInference(ctx, seed)
	if err != nil {
		return Answer{}, &UpstreamError{Provider: "llm", Err: err}
	}
	text := lastAssistantText(out)
	if text == "" {
		return Answer{}, &UpstreamError{Provider: "llm", Err: errors.New("empty response")}
	}
	return Answer{Text: text}, nil
}

type inferenceFunc func(ctx context.Context, t *turns.Turn) (*turns.Turn, error)

func (f inferenceFunc) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	return f(ctx, t)
}

func withMiddlewares(eng engine.Engine, mws ...middleware.Middleware) engine.Engine {
	return inferenceFunc(middleware.Chain(func(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
		return eng.RunInference(ctx, t)
	}, mws...))
}

// lastAssistantText returns the text of the last LLM text block of t.
func lastAssistantText(t *turns.Turn) string {
	if t == nil {
		return ""
	}
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		b := t.Blocks[i]
		if b.Kind != turns.BlockKindLLMText {
			continue
		}
		if txt, ok := b.Payload[turns.PayloadKeyText].(string); ok && strings.TrimSpace(txt) != "" {
			return strings.TrimSpace(txt)
		}
	}
	return ""
}
