package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxBodyBytes     = 8000
	DefaultMaxQuestionChars = 800
	DefaultMaxCitations     = 3
)

type Options struct {
	MaxBodyBytes     int64
	MaxQuestionChars int
	MaxCitations     int
	// AllowedOrigins lists the origins that get CORS headers. Empty means none.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.MaxQuestionChars <= 0 {
		o.MaxQuestionChars = DefaultMaxQuestionChars
	}
	if o.MaxCitations <= 0 {
		o.MaxCitations = DefaultMaxCitations
	}
	return o
}

type chatRequestBody struct {
	Q        string `json:"q"`
	Question string `json:"question"`
}

type chatResponseBody struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	RequestID string     `json:"request_id"`
}

type errorResponseBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ChatHandler answers POST {"q": ...} requests with {"answer", "citations", "request_id"}.
type ChatHandler struct {
	answerer Answerer
	opts     Options
}

func NewChatHandler(answerer Answerer, opts Options) *ChatHandler {
	return &ChatHandler{answerer: answerer, opts: opts.withDefaults()}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	h.writeHeaders(w, origin)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponseBody{Error: "Method not allowed"})
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := log.With().Str("request_id", requestID).Logger()

	raw, err := io.ReadAll(io.LimitReader(r.Body, h.opts.MaxBodyBytes+1))
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read request body")
		writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "Invalid JSON format", RequestID: requestID})
		return
	}
	if int64(len(raw)) > h.opts.MaxBodyBytes {
		logger.Warn().Int("bytes", len(raw)).Msg("Request too large")
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponseBody{Error: "Request too large"})
		return
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}

	var body chatRequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		logger.Warn().Err(err).Msg("Invalid JSON")
		writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "Invalid JSON format", RequestID: requestID})
		return
	}

	// question is only consulted when q is absent or empty; a blank q stays blank
	q := body.Q
	if q == "" {
		q = body.Question
	}
	q = strings.TrimSpace(q)
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "Missing 'q' in JSON body", RequestID: requestID})
		return
	}
	if utf8.RuneCountInString(q) > h.opts.MaxQuestionChars {
		writeJSON(w, http.StatusBadRequest, errorResponseBody{
			Error:     fmt.Sprintf("Question too long (max %d chars)", h.opts.MaxQuestionChars),
			RequestID: requestID,
		})
		return
	}

	logger.Info().Int("query_len", utf8.RuneCountInString(q)).Msg("Processing query")

	answer, err := h.answerer.Answer(r.Context(), q)
	if err != nil {
		if IsUpstreamError(err) {
			logger.Error().Err(err).Msg("Upstream error")
			writeJSON(w, http.StatusBadGateway, errorResponseBody{Error: "Unable to process request", RequestID: requestID})
			return
		}
		logger.Error().Err(err).Msg("Unexpected error")
		writeJSON(w, http.StatusInternalServerError, errorResponseBody{Error: "Internal server error", RequestID: requestID})
		return
	}

	citations := answer.Citations
	if citations == nil {
		citations = []Citation{}
	}
	if len(citations) > h.opts.MaxCitations {
		citations = citations[:h.opts.MaxCitations]
	}

	logger.Info().Msg("Successfully processed request")
	writeJSON(w, http.StatusOK, chatResponseBody{Answer: answer.Text, Citations: citations, RequestID: requestID})
}

func (h *ChatHandler) writeHeaders(w http.ResponseWriter, origin string) {
	hdr := w.Header()
	hdr.Set("Content-Type", "application/json")
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("X-Frame-Options", "DENY")

	if origin != "" && slices.Contains(h.opts.AllowedOrigins, origin) {
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Set("Access-Control-Allow-Headers", "content-type, authorization")
		hdr.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		hdr.Set("Access-Control-Max-Age", "600")
		hdr.Add("Vary", "Origin")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Could not write response")
	}
}

// ParseOrigins splits a comma separated origin list, dropping blanks.
func ParseOrigins(raw string) []string {
	var ret []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			ret = append(ret, o)
		}
	}
	return ret
}
