package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/notice"
	"github.com/angelmondragon/storefront/internal/storefront"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
	"github.com/angelmondragon/storefront/pkg/types"
)

type stubStorefront struct {
	mu       sync.Mutex
	sessions []string
	submits  int
}

func (s *stubStorefront) seen(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
}

func (s *stubStorefront) Cart(ctx context.Context, sessionID string) (storefront.CartView, error) {
	s.seen(sessionID)
	notice.FromContext(ctx).Notify(ctx, notice.LevelInfo, "olá")
	return storefront.CartView{}, nil
}

func (s *stubStorefront) AddItem(ctx context.Context, sessionID, productID string, quantity int) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) RemoveItem(ctx context.Context, sessionID, productID string) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) ClearCart(ctx context.Context, sessionID string) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) SyncCart(ctx context.Context, sessionID string) error { return nil }

func (s *stubStorefront) ApplyCoupon(ctx context.Context, sessionID, code string) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) RemoveCoupon(ctx context.Context, sessionID string) (storefront.CartView, error) {
	return storefront.CartView{}, nil
}

func (s *stubStorefront) Checkout(ctx context.Context, sessionID string) (storefront.CheckoutView, error) {
	return storefront.CheckoutView{}, nil
}

func (s *stubStorefront) BeginCheckout(ctx context.Context, sessionID string) (storefront.CheckoutView, error) {
	return storefront.CheckoutView{}, nil
}

func (s *stubStorefront) SubmitCheckout(ctx context.Context, sessionID string, form checkout.Form) (*checkout.OrderResult, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	return &checkout.OrderResult{OrderID: "ord-1"}, nil
}

func (s *stubStorefront) ConfirmPayment(ctx context.Context, sessionID string) (string, error) {
	return checkout.OrderRoute("ord-1"), nil
}

func (s *stubStorefront) ResetCheckout(ctx context.Context, sessionID string) (storefront.CheckoutView, error) {
	return storefront.CheckoutView{}, nil
}

func (s *stubStorefront) Login(ctx context.Context, sessionID string, creds backend.Credentials) (*backend.User, error) {
	return &backend.User{ID: "u-1"}, nil
}

func (s *stubStorefront) Register(ctx context.Context, sessionID string, req backend.RegisterRequest) (*backend.User, error) {
	return &backend.User{ID: "u-1"}, nil
}

func (s *stubStorefront) Logout(ctx context.Context, sessionID string) error { return nil }

func (s *stubStorefront) Me(ctx context.Context, sessionID string) (*backend.User, error) {
	return nil, nil
}

func (s *stubStorefront) Orders(ctx context.Context, sessionID string) ([]backend.Order, error) {
	return nil, nil
}

func (s *stubStorefront) Order(ctx context.Context, sessionID, orderID string) (*backend.Order, error) {
	return &backend.Order{ID: orderID}, nil
}

func (s *stubStorefront) TrackOrder(ctx context.Context, sessionID, orderID string) (*backend.TrackingInfo, error) {
	return &backend.TrackingInfo{OrderID: orderID}, nil
}

func (s *stubStorefront) Ping(context.Context) error { return nil }

type stubCatalog struct{}

func (stubCatalog) ListProducts(ctx context.Context, query backend.ProductQuery) (types.Page[backend.Product], error) {
	return types.Page[backend.Product]{}, nil
}

func (stubCatalog) GetProduct(ctx context.Context, productID string) (*backend.Product, error) {
	return &backend.Product{ID: productID}, nil
}

func (stubCatalog) FeaturedProducts(ctx context.Context, limit int) ([]backend.Product, error) {
	return nil, nil
}

func (stubCatalog) Categories(ctx context.Context) ([]backend.Category, error) { return nil, nil }

func (stubCatalog) Track(ctx context.Context, code string) (*backend.TrackingInfo, error) {
	return &backend.TrackingInfo{TrackingCode: code}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test"},
		Storage: config.StorageConfig{SessionTTL: time.Hour},
		HTTP: config.HTTPConfig{
			CORSOrigins:     []string{"http://localhost:5173"},
			AuthLimitWindow: time.Minute,
			AuthLimitIP:     100,
			AuthLimitEmail:  2,
		},
	}
}

func newTestRouter(t *testing.T, svc *stubStorefront) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return NewRouter(Deps{
		Config:      testConfig(),
		Logger:      logger.Nop(),
		Storefront:  svc,
		Catalog:     stubCatalog{},
		Idempotency: client,
		RateLimits:  client,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &stubStorefront{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSessionMintedAndReused(t *testing.T) {
	svc := &stubStorefront{}
	router := newTestRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	minted := rec.Header().Get(middleware.SessionHeader)
	require.NotEmpty(t, minted)
	assert.Contains(t, rec.Body.String(), `"messages":[{"level":"info","message":"olá"}]`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, minted, rec.Header().Get(middleware.SessionHeader))
	assert.Empty(t, rec.Result().Cookies())

	assert.Equal(t, []string{minted, minted}, svc.sessions)
}

func TestCatalogRoutesDoNotMintSessions(t *testing.T) {
	router := newTestRouter(t, &stubStorefront{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/anel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.SessionHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracking/BR123", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BR123")
}

func TestTrackingByOrderUsesSession(t *testing.T) {
	router := newTestRouter(t, &stubStorefront{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracking/order/ord-9", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ord-9")
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
}

func TestSubmitReplaysWithIdempotencyKey(t *testing.T) {
	svc := &stubStorefront{}
	router := newTestRouter(t, svc)
	body := `{"shipping_address":{"street":"Rua Augusta","number":"100","neighborhood":"Consolação","city":"São Paulo","state":"SP","zip_code":"01305-000"},"payment_method":"pix"}`
	sessionID := "7f1b3c0e-2a4d-4f5b-9c6e-8d7a1b2c3d4e"

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", strings.NewReader(body))
		req.Header.Set(middleware.SessionHeader, sessionID)
		req.Header.Set(middleware.IdempotencyKeyHeader, "submit-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, svc.submits)
}

func TestLoginIsRateLimitedByEmail(t *testing.T) {
	router := newTestRouter(t, &stubStorefront{})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"bia@example.com","password":"secret"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &stubStorefront{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", middleware.SessionHeader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
