package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/telcobill-backend/api/validators"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

type memoryResponses struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryResponses() *memoryResponses {
	return &memoryResponses{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryResponses) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryResponses) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryResponses) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryResponses) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryResponses) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func payRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/inv-1/pay", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotentRequiresHeader(t *testing.T) {
	called := false
	h := Idempotent(IdempotencyCharge, newMemoryResponses(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := serve(h, payRequest("", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if called {
		t.Fatal("handler ran without a key")
	}
}

func TestIdempotentReplaysFirstResponse(t *testing.T) {
	store := newMemoryResponses()
	calls := 0
	h := Idempotent(IdempotencyCharge, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"paid"}`))
	}))

	first := serve(h, payRequest("pay-1", `{"method":"card"}`))
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", first.Code)
	}

	replay := serve(h, payRequest("pay-1", `{"method":"card"}`))
	if replay.Code != http.StatusAccepted {
		t.Fatalf("expected replayed 202 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if replay.Body.String() != `{"status":"paid"}` {
		t.Fatalf("unexpected replay body %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != 7*24*time.Hour {
			t.Fatalf("%s stored for %v, expected a week", key, ttl)
		}
	}
}

func TestIdempotentRejectsChangedBody(t *testing.T) {
	h := Idempotent(IdempotencyStandard, newMemoryResponses(), nil)(okHandler())

	serve(h, payRequest("k", `{"amount":100}`))
	rec := serve(h, payRequest("k", `{"amount":900}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryResponses()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotent(IdempotencyCharge, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = serve(h, payRequest("dup", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := serve(h, payRequest("dup", `{}`))
	if outer.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", outer.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("duplicate during flight should be 409, got %d", inner.Code)
	}
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryResponses()
	calls := 0
	h := Idempotent(IdempotencyCharge, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	serve(h, payRequest("retry-me", `{}`))
	if len(store.data) != 0 {
		t.Fatalf("5xx must not hold the key, got %v", store.data)
	}
	rec := serve(h, payRequest("retry-me", `{}`))
	if rec.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("retry should run the handler again: code=%d calls=%d", rec.Code, calls)
	}
}

func TestIdempotentWithoutStoreIsPassThrough(t *testing.T) {
	h := Idempotent(IdempotencyCharge, nil, nil)(okHandler())
	if rec := serve(h, payRequest("", `{}`)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
}

func TestIdempotentRejectsOversizedBody(t *testing.T) {
	store := newMemoryResponses()
	called := false
	h := Idempotent(IdempotencyCharge, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := serve(h, payRequest("big", strings.Repeat("x", validators.MaxBodyBytes+1)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if called || len(store.data) != 0 {
		t.Fatalf("oversized body must not reach the handler or claim the key: called=%v data=%v", called, store.data)
	}
	if !strings.Contains(rec.Body.String(), "too large") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
