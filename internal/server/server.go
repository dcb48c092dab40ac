// Package server exposes a trained engine over HTTP. Parse results are
// optionally served through a redis read-through cache keyed on the full
// request, since a trained model answers identical requests identically.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/common/logger"
	"github.com/storewaladotcom/snips-nlu/internal/common/metrics"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// IntentEngine is the inference surface the server needs from a trained
// engine.
type IntentEngine interface {
	Fitted() bool
	Parse(text string, intents []string) (result.ParseResult, error)
	ParseTopN(text string, intents []string, topN int) ([]result.ExtractionResult, error)
	GetIntents(text string) ([]result.IntentClassification, error)
}

// Server serves parse requests over HTTP.
type Server struct {
	engine IntentEngine
	cache  redis.Cmdable
	ttl    time.Duration
	log    logger.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithCache enables the redis read-through parse cache.
func WithCache(client redis.Cmdable, ttl time.Duration) Option {
	return func(s *Server) {
		s.cache = client
		s.ttl = ttl
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates a Server over a trained engine.
func New(engine IntentEngine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		log:    logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/parse", s.handleParse)
	mux.HandleFunc("/intents", s.handleIntents)
	return mux
}

// parseRequest is the body of POST /parse.
type parseRequest struct {
	Text    string   `json:"text"`
	Intents []string `json:"intents,omitempty"`
	TopN    int      `json:"topN,omitempty"`
}

// intentsRequest is the body of POST /intents.
type intentsRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET")
		return
	}
	status := map[string]interface{}{
		"status": "ok",
		"fitted": s.engine.Fitted(),
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "text is required")
		return
	}

	requestID := uuid.NewString()
	log := s.log.WithFields(map[string]interface{}{"request_id": requestID})

	key := cacheKey(req)
	if cached, ok := s.cacheGet(r.Context(), key); ok {
		log.Debug("parse cache hit", map[string]interface{}{"key": key})
		s.writeRaw(w, http.StatusOK, cached)
		return
	}

	payload, err := s.parse(req)
	if err != nil {
		log.WithError(err).Warn("parse request failed", map[string]interface{}{"text": req.Text})
		s.writeEngineError(w, err)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "encoding response")
		return
	}
	s.cacheSet(r.Context(), key, raw)
	s.writeRaw(w, http.StatusOK, raw)
}

// parse dispatches to single-best or ranked parsing depending on topN.
func (s *Server) parse(req parseRequest) (interface{}, error) {
	if req.TopN > 0 {
		return s.engine.ParseTopN(req.Text, req.Intents, req.TopN)
	}
	return s.engine.Parse(req.Text, req.Intents)
}

func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}

	var req intentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "text is required")
		return
	}

	intents, err := s.engine.GetIntents(req.Text)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, intents)
}

// cacheKey derives a stable key from the full request. The intent
// restriction is order-insensitive.
func cacheKey(req parseRequest) string {
	intents := append([]string(nil), req.Intents...)
	sort.Strings(intents)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", req.Text, strings.Join(intents, "\x1f"), req.TopN)))
	return "nlu:parse:" + hex.EncodeToString(sum[:])
}

func (s *Server) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.ParseCacheLookups.WithLabelValues("error").Inc()
			s.log.WithError(err).Warn("parse cache lookup failed", nil)
			return nil, false
		}
		metrics.ParseCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.ParseCacheLookups.WithLabelValues("hit").Inc()
	return raw, true
}

func (s *Server) cacheSet(ctx context.Context, key string, raw []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.WithError(err).Warn("parse cache write failed", nil)
	}
}

// writeEngineError maps engine error codes to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var engineErr *nluerrors.EngineError
	if !errors.As(err, &engineErr) {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, nluerrors.ErrNotTrained):
		status = http.StatusServiceUnavailable
	case errors.Is(err, nluerrors.ErrInvalidInput),
		errors.Is(err, nluerrors.ErrIntentNotFound):
		status = http.StatusBadRequest
	}
	s.writeError(w, status, string(engineErr.Code), engineErr.Message)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, status, raw)
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
