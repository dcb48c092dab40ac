package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nluerrors "github.com/storewaladotcom/snips-nlu/internal/common/errors"
	"github.com/storewaladotcom/snips-nlu/internal/common/logger"
	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// ============================================================================
// Test Helpers
// ============================================================================

// stubEngine is a canned-response IntentEngine.
type stubEngine struct {
	fitted     bool
	parseRes   result.ParseResult
	parseErr   error
	topNRes    []result.ExtractionResult
	intents    []result.IntentClassification
	parseCalls int
}

func (s *stubEngine) Fitted() bool { return s.fitted }

func (s *stubEngine) Parse(text string, intents []string) (result.ParseResult, error) {
	s.parseCalls++
	if s.parseErr != nil {
		return result.ParseResult{}, s.parseErr
	}
	return s.parseRes, nil
}

func (s *stubEngine) ParseTopN(text string, intents []string, topN int) ([]result.ExtractionResult, error) {
	s.parseCalls++
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return s.topNRes, nil
}

func (s *stubEngine) GetIntents(text string) ([]result.IntentClassification, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return s.intents, nil
}

func lightsResult() result.ParseResult {
	return result.ParseResult{
		Input:  "turn on the lights",
		Intent: result.IntentClassification{IntentName: "turnLightOn", Probability: 1.0},
		Slots:  []result.Slot{},
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Parse Endpoint
// ============================================================================

func TestHandleParse(t *testing.T) {
	t.Run("returns the engine parse result", func(t *testing.T) {
		engine := &stubEngine{fitted: true, parseRes: lightsResult()}
		srv := New(engine, WithLogger(logger.NewTestLogger(t)))

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "turn on the lights"})

		require.Equal(t, http.StatusOK, rec.Code)
		var res result.ParseResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "turnLightOn", res.Intent.IntentName)
	})

	t.Run("topN requests return a ranked list", func(t *testing.T) {
		engine := &stubEngine{
			fitted: true,
			topNRes: []result.ExtractionResult{
				{Intent: result.IntentClassification{IntentName: "turnLightOn", Probability: 0.9}},
				{Intent: result.IntentClassification{Probability: 0.1}},
			},
		}
		srv := New(engine)

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "turn on the lights", TopN: 2})

		require.Equal(t, http.StatusOK, rec.Code)
		var res []result.ExtractionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res, 2)
		assert.Equal(t, "turnLightOn", res[0].Intent.IntentName)
	})

	t.Run("missing text is rejected", func(t *testing.T) {
		srv := New(&stubEngine{fitted: true})

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		srv := New(&stubEngine{fitted: true})
		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("untrained engine maps to service unavailable", func(t *testing.T) {
		engine := &stubEngine{parseErr: nluerrors.NewNotTrainedError("parse")}
		srv := New(engine)

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "anything"})

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "NOT_TRAINED", body.Error.Code)
	})

	t.Run("invalid input maps to bad request", func(t *testing.T) {
		engine := &stubEngine{fitted: true, parseErr: nluerrors.NewInvalidInputError("not valid UTF-8")}
		srv := New(engine)

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "anything"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get is not allowed", func(t *testing.T) {
		srv := New(&stubEngine{fitted: true})
		req := httptest.NewRequest(http.MethodGet, "/parse", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

// ============================================================================
// Parse Cache
// ============================================================================

func TestParseCache(t *testing.T) {
	t.Run("miss parses and stores the result", func(t *testing.T) {
		engine := &stubEngine{fitted: true, parseRes: lightsResult()}
		client, mock := redismock.NewClientMock()
		srv := New(engine, WithCache(client, time.Minute))

		key := cacheKey(parseRequest{Text: "turn on the lights"})
		payload, err := json.Marshal(lightsResult())
		require.NoError(t, err)
		mock.ExpectGet(key).RedisNil()
		mock.ExpectSet(key, payload, time.Minute).SetVal("OK")

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "turn on the lights"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, engine.parseCalls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hit skips the engine", func(t *testing.T) {
		engine := &stubEngine{fitted: true, parseRes: lightsResult()}
		client, mock := redismock.NewClientMock()
		srv := New(engine, WithCache(client, time.Minute))

		key := cacheKey(parseRequest{Text: "turn on the lights"})
		payload, err := json.Marshal(lightsResult())
		require.NoError(t, err)
		mock.ExpectGet(key).SetVal(string(payload))

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "turn on the lights"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, engine.parseCalls)
		var res result.ParseResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "turnLightOn", res.Intent.IntentName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache failure falls back to the engine", func(t *testing.T) {
		engine := &stubEngine{fitted: true, parseRes: lightsResult()}
		client, mock := redismock.NewClientMock()
		srv := New(engine, WithCache(client, time.Minute), WithLogger(logger.NewNoOpLogger()))

		key := cacheKey(parseRequest{Text: "turn on the lights"})
		mock.ExpectGet(key).SetErr(assert.AnError)
		mock.ExpectSet(key, nil, time.Minute).SetErr(assert.AnError)

		rec := postJSON(t, srv.Handler(), "/parse", parseRequest{Text: "turn on the lights"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, engine.parseCalls)
	})

	t.Run("key ignores intent restriction order", func(t *testing.T) {
		first := cacheKey(parseRequest{Text: "hello", Intents: []string{"a", "b"}})
		second := cacheKey(parseRequest{Text: "hello", Intents: []string{"b", "a"}})
		other := cacheKey(parseRequest{Text: "hello", Intents: []string{"a"}})

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
	})
}

// ============================================================================
// Intents & Health Endpoints
// ============================================================================

func TestHandleIntents(t *testing.T) {
	t.Run("returns the engine intent ranking", func(t *testing.T) {
		engine := &stubEngine{
			fitted: true,
			intents: []result.IntentClassification{
				{IntentName: "turnLightOn", Probability: 0.8},
				{Probability: 0.2},
			},
		}
		srv := New(engine)

		rec := postJSON(t, srv.Handler(), "/intents", intentsRequest{Text: "turn on the lights"})

		require.Equal(t, http.StatusOK, rec.Code)
		var intents []result.IntentClassification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intents))
		require.Len(t, intents, 2)
		assert.Equal(t, "turnLightOn", intents[0].IntentName)
	})

	t.Run("missing text is rejected", func(t *testing.T) {
		srv := New(&stubEngine{fitted: true})

		rec := postJSON(t, srv.Handler(), "/intents", intentsRequest{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	srv := New(&stubEngine{fitted: true})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["fitted"])
}
