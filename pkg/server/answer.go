package server

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Citation points at a source passage an answer was built from.
type Citation struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URI   string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
}

type Answer struct {
	Text      string
	Citations []Citation
}

// Answerer produces an answer for a single question.
type Answerer interface {
	Answer(ctx context.Context, question string) (Answer, error)
}

type AnswererFunc func(ctx context.Context, question string) (Answer, error)

func (f AnswererFunc) Answer(ctx context.Context, question string) (Answer, error) {
	return f(ctx, question)
}

// UpstreamError marks failures of the backing model or knowledge base, as
// opposed to bugs in the handler itself.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// EchoAnswerer answers every question by repeating it. Useful for trying the
// client without any model behind it.
type EchoAnswerer struct {
	Prefix string
}

func (e EchoAnswerer) Answer(_ context.Context, question string) (Answer, error) {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "You asked: "
	}
	return Answer{Text: prefix + strings.TrimSpace(question)}, nil
}
