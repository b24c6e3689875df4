package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"calendra/pkg/identity"
	"calendra/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(actor)
	})
}

func decodeActor(t *testing.T, rec *httptest.ResponseRecorder) identity.Actor {
	t.Helper()
	var actor identity.Actor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&actor))
	return actor
}

func TestAuthenticate(t *testing.T) {
	handler := Authenticate(secret, "admin", logger.Discard())(actorEcho())

	t.Run("valid token", func(t *testing.T) {
		token, err := IssueToken(secret, "alice", "", jwt.RegisteredClaims{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, identity.Actor{ID: "alice"}, decodeActor(t, rec))
	})

	t.Run("admin role is privileged", func(t *testing.T) {
		token, err := IssueToken(secret, "ops", "admin", jwt.RegisteredClaims{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, decodeActor(t, rec).Privileged)
	})

	rejected := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return "" }},
		{"wrong scheme", func(t *testing.T) string { return "Basic abc" }},
		{"wrong secret", func(t *testing.T) string {
			token, err := IssueToken("other", "alice", "", jwt.RegisteredClaims{})
			require.NoError(t, err)
			return "Bearer " + token
		}},
		{"expired", func(t *testing.T) string {
			token, err := IssueToken(secret, "alice", "", jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			})
			require.NoError(t, err)
			return "Bearer " + token
		}},
		{"no subject", func(t *testing.T) string {
			token, err := IssueToken(secret, "", "", jwt.RegisteredClaims{})
			require.NoError(t, err)
			return "Bearer " + token
		}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	handler := HeaderIdentity("admin")(actorEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorIDHeader, "bob")
	req.Header.Set(ActorRoleHeader, "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, identity.Actor{ID: "bob", Privileged: true}, decodeActor(t, rec))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorRateLimiter(t *testing.T) {
	limiter := NewActorRateLimiter(2, time.Minute, nil, logger.Discard())
	defer limiter.Stop()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("actor:alice"))
	require.True(t, limiter.Allow("actor:alice"))
	require.False(t, limiter.Allow("actor:alice"))
	require.True(t, limiter.Allow("actor:bob"))
	require.True(t, limiter.Allow(""))

	now = now.Add(time.Minute)
	require.True(t, limiter.Allow("actor:alice"))
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewActorRateLimiter(1, time.Minute, nil, logger.Discard())
	defer limiter.Stop()

	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(identity.WithActor(req.Context(), identity.Actor{ID: "alice"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, request().Code)
	rec := request()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func countingHandler(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"call":`+strconv.Itoa(int(n))+`}`)
	})
}

func idempotentRequest(handler http.Handler, actor, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
	req.Header.Set(DefaultIdempotencyHeader, key)
	req = req.WithContext(identity.WithActor(req.Context(), identity.Actor{ID: actor}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func testIdempotency(t *testing.T, store IdempotencyStore) {
	var calls atomic.Int32
	handler := Idempotency(store, "")(countingHandler(&calls))

	first := idempotentRequest(handler, "alice", "k1")
	require.Equal(t, http.StatusCreated, first.Code)

	replay := idempotentRequest(handler, "alice", "k1")
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.EqualValues(t, 1, calls.Load())

	other := idempotentRequest(handler, "bob", "k1")
	require.NotEqual(t, first.Body.String(), other.Body.String())
	require.EqualValues(t, 2, calls.Load())
}

func TestIdempotency_InMemory(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	testIdempotency(t, store)
}

func TestIdempotency_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, time.Hour, logger.Discard())
	testIdempotency(t, store)

	keys := mr.Keys()
	require.Len(t, keys, 2)
	require.True(t, strings.HasPrefix(keys[0], "calendra:idempotency:"))
	require.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestIdempotency_SkipsFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls atomic.Int32
	handler := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))

	idempotentRequest(handler, "alice", "k1")
	idempotentRequest(handler, "alice", "k1")
	require.EqualValues(t, 2, calls.Load())
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"json", `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"text", `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"no body", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodPost, "/", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	handler := MaxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 4))))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	handler := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.Contains(t, rec.Body.String(), "TIMEOUT")
}

func TestRecoveryAndRequestID(t *testing.T) {
	handler := RequestLogging(logger.Discard())(Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestRequestID_Empty(t *testing.T) {
	require.Empty(t, RequestID(context.Background()))
}
