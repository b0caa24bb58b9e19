package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) WebhookGuardKey(provider, paymentID string) string {
	return "webhook:" + provider + ":" + paymentID
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func countingHandler(status int, body string) (http.HandlerFunc, *int) {
	calls := new(int)
	return func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}, calls
}

func checkoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithUserID(req.Context(), "user-1"))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	handler, calls := countingHandler(http.StatusCreated, `{"data":{"order_id":"abc"}}`)
	wrapped := Idempotency(store, testLogger())(handler)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, checkoutRequest("key-1", `{"qty":1}`))
	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, checkoutRequest("key-1", `{"qty":1}`))

	if *calls != 1 {
		t.Fatalf("handler must run once, ran %d times", *calls)
	}
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201/201 got %d/%d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay differs: %q vs %q", first.Body.String(), second.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("stored content type not replayed: %q", got)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	handler, calls := countingHandler(http.StatusCreated, `{"data":{}}`)
	wrapped := Idempotency(store, testLogger())(handler)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, checkoutRequest("key-1", `{"qty":1}`))
	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, checkoutRequest("key-1", `{"qty":2}`))

	if *calls != 1 {
		t.Fatalf("handler must run once, ran %d times", *calls)
	}
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 on body mismatch, got %d", second.Code)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoutes(t *testing.T) {
	handler, calls := countingHandler(http.StatusCreated, `{}`)
	wrapped := Idempotency(newMemoryStore(), testLogger())(handler)

	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, checkoutRequest("", `{"qty":1}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if *calls != 0 {
		t.Fatal("handler must not run without a key")
	}
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	handler, calls := countingHandler(http.StatusOK, `{}`)
	wrapped := Idempotency(newMemoryStore(), testLogger())(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if *calls != 1 {
		t.Fatalf("handler should run without a key on unguarded routes, ran %d", *calls)
	}
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	store := newMemoryStore()
	handler, calls := countingHandler(http.StatusCreated, `{}`)
	wrapped := Idempotency(store, testLogger())(handler)

	reqA := checkoutRequest("shared-key", `{"qty":1}`)
	reqB := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"qty":1}`))
	reqB.Header.Set("Idempotency-Key", "shared-key")
	reqB = reqB.WithContext(WithUserID(reqB.Context(), "user-2"))

	wrapped.ServeHTTP(httptest.NewRecorder(), reqA)
	wrapped.ServeHTTP(httptest.NewRecorder(), reqB)

	if *calls != 2 {
		t.Fatalf("different users must not share records, handler ran %d times", *calls)
	}
}

func TestIdempotencyStoreOutageFailsGuardedRequest(t *testing.T) {
	store := newMemoryStore()
	store.getErr = context.DeadlineExceeded
	handler, calls := countingHandler(http.StatusCreated, `{}`)
	wrapped := Idempotency(store, testLogger())(handler)

	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, checkoutRequest("key-1", `{"qty":1}`))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if *calls != 0 {
		t.Fatal("handler must not run when the record cannot be checked")
	}
}
