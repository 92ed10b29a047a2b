package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

type fakeStore struct {
	data     map[string]string
	released []string
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Reserve(_ context.Context, key string, _ time.Duration) (pkgredis.Reservation, error) {
	if f.err != nil {
		return pkgredis.Reservation{}, f.err
	}
	if v, ok := f.data[key]; ok {
		return pkgredis.Reservation{Record: v}, nil
	}
	f.data[key] = ""
	return pkgredis.Reservation{Acquired: true}, nil
}

func (f *fakeStore) Complete(_ context.Context, key, record string, _ time.Duration) error {
	f.data[key] = record
	return nil
}

func (f *fakeStore) Release(_ context.Context, key string) error {
	delete(f.data, key)
	f.released = append(f.released, key)
	return nil
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *calls)
	})
}

func submitRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", strings.NewReader(body))
	req = req.WithContext(WithSessionID(req.Context(), "sess-1"))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload.Error.Code
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	calls := 0
	handler := Idempotent(newFakeStore(), OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusOK))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, submitRequest(`{}`, ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
}

func TestIdempotencyNilStorePassesThrough(t *testing.T) {
	calls := 0
	handler := Idempotent(nil, OrderSubmitPolicy, nil)(countingHandler(&calls, http.StatusCreated))
	handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "k"))
	handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "k"))
	if calls != 2 {
		t.Fatalf("expected pass-through without a store, got %d calls", calls)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idempotent(client, OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, submitRequest(`{"payment_method":"pix"}`, "key-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, submitRequest(`{"payment_method":"pix"}`, "key-1"))

	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body mismatch: %q vs %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type replayed, got %q", ct)
	}
	if second.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if first.Header().Get(IdempotencyReplayHeader) != "" {
		t.Fatalf("first response must not carry the replay marker")
	}

	key := client.IdempotencyKey("sess-1|"+OrderSubmitPolicy.Name, "key-1")
	if ttl := mr.TTL(key); ttl != OrderSubmitPolicy.TTL {
		t.Fatalf("expected record ttl %v, got %v", OrderSubmitPolicy.TTL, ttl)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	calls := 0
	handler := Idempotent(newFakeStore(), OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{"payment_method":"pix"}`, "key-2"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, submitRequest(`{"payment_method":"credit_card"}`, "key-2"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected idempotency error, got %s", code)
	}
	if calls != 1 {
		t.Fatalf("handler should not run for a mismatched replay, got %d", calls)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	calls := 0
	var nested *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotent(store, OrderSubmitPolicy, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		nested = httptest.NewRecorder()
		handler.ServeHTTP(nested, submitRequest(`{}`, "key-busy"))
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "key-busy"))

	if calls != 1 {
		t.Fatalf("duplicate must not reach the handler, got %d calls", calls)
	}
	if nested.Code != http.StatusConflict || nested.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 409 with Retry-After, got %d %q", nested.Code, nested.Header().Get("Retry-After"))
	}
	if code := errorCode(t, nested); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %s", code)
	}
}

func TestIdempotencyReleasesFailedAttempts(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusBadGateway} {
		store := newFakeStore()
		calls := 0
		handler := Idempotent(store, OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, status))

		handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "key-3"))
		handler.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "key-3"))

		if calls != 2 {
			t.Fatalf("status %d: expected retry to reach handler, got %d", status, calls)
		}
		if len(store.data) != 0 || len(store.released) != 2 {
			t.Fatalf("status %d: expected key released, data=%v released=%v", status, store.data, store.released)
		}
	}
}

func TestIdempotencyStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")
	calls := 0
	handler := Idempotent(store, OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusCreated))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, submitRequest(`{}`, "key-4"))

	if rec.Code != http.StatusServiceUnavailable || calls != 0 {
		t.Fatalf("expected 503 without running the handler, got %d calls=%d", rec.Code, calls)
	}
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	calls := 0
	handler := Idempotent(newFakeStore(), OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusCreated))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, submitRequest(`{}`, strings.Repeat("k", maxIdempotencyKeyLen+1)))

	if rec.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("expected 400 without running the handler, got %d calls=%d", rec.Code, calls)
	}
}

func TestIdempotencyScopesBySessionAndPolicy(t *testing.T) {
	store := newFakeStore()
	calls := 0
	submit := Idempotent(store, OrderSubmitPolicy, logger.Nop())(countingHandler(&calls, http.StatusOK))
	confirm := Idempotent(store, PaymentPolicy, logger.Nop())(countingHandler(&calls, http.StatusOK))

	submit.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "shared"))

	other := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", strings.NewReader(`{}`))
	other = other.WithContext(WithSessionID(other.Context(), "sess-2"))
	other.Header.Set(IdempotencyKeyHeader, "shared")
	submit.ServeHTTP(httptest.NewRecorder(), other)

	confirm.ServeHTTP(httptest.NewRecorder(), submitRequest(`{}`, "shared"))

	if calls != 3 {
		t.Fatalf("expected sessions and policies not to share a key, got %d calls", calls)
	}
}
