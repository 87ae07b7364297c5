package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doChat(t *testing.T, h http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, ChatPath, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestChatHandlerStatusCodes(t *testing.T) {
	echo := EchoAnswerer{Prefix: "re: "}
	tests := []struct {
		name     string
		answerer Answerer
		body     string
		status   int
		errMsg   string
		answer   string
	}{
		{name: "q field", answerer: echo, body: `{"q":"  hello "}`, status: http.StatusOK, answer: "re: hello"},
		{name: "question field", answerer: echo, body: `{"question":"hi"}`, status: http.StatusOK, answer: "re: hi"},
		{name: "q wins over question", answerer: echo, body: `{"q":"a","question":"b"}`, status: http.StatusOK, answer: "re: a"},
		{name: "empty q falls back to question", answerer: echo, body: `{"q":"","question":"b"}`, status: http.StatusOK, answer: "re: b"},
		{name: "blank q does not fall back", answerer: echo, body: `{"q":"  ","question":"b"}`, status: http.StatusBadRequest, errMsg: "Missing 'q' in JSON body"},
		{name: "invalid json", answerer: echo, body: `{nope`, status: http.StatusBadRequest, errMsg: "Invalid JSON format"},
		{name: "empty body", answerer: echo, body: ``, status: http.StatusBadRequest, errMsg: "Missing 'q' in JSON body"},
		{name: "blank q", answerer: echo, body: `{"q":"   "}`, status: http.StatusBadRequest, errMsg: "Missing 'q' in JSON body"},
		{name: "too long", answerer: echo, body: `{"q":"` + strings.Repeat("é", 801) + `"}`, status: http.StatusBadRequest, errMsg: "Question too long (max 800 chars)"},
		{name: "max length ok", answerer: echo, body: `{"q":"` + strings.Repeat("é", 800) + `"}`, status: http.StatusOK},
		{name: "too large", answerer: echo, body: `{"q":"` + strings.Repeat("a", 8000) + `"}`, status: http.StatusRequestEntityTooLarge, errMsg: "Request too large"},
		{
			name: "upstream failure",
			answerer: AnswererFunc(func(context.Context, string) (Answer, error) {
				return Answer{}, errors.Wrap(&UpstreamError{Provider: "kb", Err: errors.New("down")}, "retrieve")
			}),
			body: `{"q":"x"}`, status: http.StatusBadGateway, errMsg: "Unable to process request",
		},
		{
			name: "internal failure",
			answerer: AnswererFunc(func(context.Context, string) (Answer, error) {
				return Answer{}, errors.New("boom")
			}),
			body: `{"q":"x"}`, status: http.StatusInternalServerError, errMsg: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(tt.answerer, Options{})
			rec := doChat(t, h, http.MethodPost, tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			m := decodeBody(t, rec)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, m["error"])
				return
			}
			if tt.answer != "" {
				assert.Equal(t, tt.answer, m["answer"])
			}
			assert.NotEmpty(t, m["request_id"])
			assert.Equal(t, []interface{}{}, m["citations"])
		})
	}
}

func TestChatHandlerCapsCitations(t *testing.T) {
	a := AnswererFunc(func(context.Context, string) (Answer, error) {
		return Answer{Text: "ok", Citations: []Citation{
			{Title: "1"}, {Title: "2"}, {Title: "3"}, {Title: "4"}, {Title: "5"},
		}}, nil
	})
	rec := doChat(t, NewChatHandler(a, Options{}), http.MethodPost, `{"q":"x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body chatResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Citations, 3)
	assert.Equal(t, "3", body.Citations[2].Title)
}

func TestChatHandlerRequestID(t *testing.T) {
	h := NewChatHandler(EchoAnswerer{}, Options{})

	rec := doChat(t, h, http.MethodPost, `{"q":"x"}`, map[string]string{"X-Request-Id": "abc-123"})
	assert.Equal(t, "abc-123", decodeBody(t, rec)["request_id"])

	rec = doChat(t, h, http.MethodPost, `{}`, map[string]string{"X-Request-Id": "err-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "err-1", decodeBody(t, rec)["request_id"])
}

func TestChatHandlerHeaders(t *testing.T) {
	h := NewChatHandler(EchoAnswerer{}, Options{AllowedOrigins: []string{"https://docs.example.com"}})

	t.Run("allowed origin", func(t *testing.T) {
		rec := doChat(t, h, http.MethodPost, `{"q":"x"}`, map[string]string{"Origin": "https://docs.example.com"})
		hdr := rec.Header()
		assert.Equal(t, "application/json", hdr.Get("Content-Type"))
		assert.Equal(t, "nosniff", hdr.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", hdr.Get("X-Frame-Options"))
		assert.Equal(t, "https://docs.example.com", hdr.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "content-type, authorization", hdr.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "POST, OPTIONS", hdr.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "600", hdr.Get("Access-Control-Max-Age"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		rec := doChat(t, h, http.MethodPost, `{"q":"x"}`, map[string]string{"Origin": "https://evil.example.com"})
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := doChat(t, h, http.MethodOptions, "", map[string]string{"Origin": "https://docs.example.com"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "https://docs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doChat(t, h, http.MethodGet, "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRouter(t *testing.T) {
	r := NewRouter(NewChatHandler(EchoAnswerer{Prefix: "re: "}, Options{}), "http://localhost:8080/api/chat")

	req := httptest.NewRequest(http.MethodGet, ConfigPath, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"apiUrl":"http://localhost:8080/api/chat"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(`{"q":"ping"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "re: ping", decodeBody(t, rec)["answer"])
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseOrigins(" a, ,b ,"))
	assert.Nil(t, ParseOrigins(""))
}
