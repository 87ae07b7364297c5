package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// RequestError covers every way a chat request can fail: transport errors,
// unreadable bodies and bodies that are not JSON. Callers do not distinguish
// between them.
type RequestError struct {
	Endpoint string
	Err      error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	return "chat request to " + e.Endpoint + " failed: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// Sender performs one question/answer exchange with an endpoint.
type Sender interface {
	Ask(ctx context.Context, endpoint string, text string) (string, error)
}

type SenderFunc func(ctx context.Context, endpoint string, text string) (string, error)

func (f SenderFunc) Ask(ctx context.Context, endpoint string, text string) (string, error) {
	return f(ctx, endpoint, text)
}

type askRequest struct {
	Q string `json:"q"`
}

// Client is the HTTP Sender. The response status code is not inspected: any
// JSON body is turned into a reply.
type Client struct {
	HTTPClient *http.Client
}

var _ Sender = (*Client)(nil)

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTPClient: httpClient}
}

func (c *Client) Ask(ctx context.Context, endpoint string, text string) (string, error) {
	payload, err := json.Marshal(askRequest{Q: text})
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: errors.Wrap(err, "encode request")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: errors.Wrap(err, "read response")}
	}

	reply, err := ReplyText(body)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: err}
	}
	return reply, nil
}

// ReplyText picks what to show for a response body: a non-empty string
// "answer", else a non-empty string "message", else the compact JSON text of
// the whole body.
func ReplyText(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return "", errors.New("response is not valid json")
	}
	if bytes.Equal(body, []byte("null")) {
		return "", errors.New("response is null")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"answer", "message"} {
			if s, ok := stringField(fields, key); ok {
				return s, nil
			}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", errors.Wrap(err, "compact response")
	}
	return compact.String(), nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
