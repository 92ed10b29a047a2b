// Package backend is the typed client for the storefront REST API: catalog,
// server-side cart, orders, tracking and shopper accounts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	serviceName             = "storefront-backend"
	defaultBaseURL          = "http://localhost:3001/api"
	defaultTimeout          = 10 * time.Second
	responseBodyLimit int64 = 1 << 20
	errorBodyLimit          = 1024

	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-Id"
)

type recorder interface {
	ObserveBackend(operation string, status int, duration time.Duration)
	BreakerState(name string, state int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBackend(string, int, time.Duration) {}

func (nopRecorder) BreakerState(string, int) {}

type tokenKey struct{}

// WithToken attaches the shopper's bearer token to calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// TokenFromContext returns the bearer token set by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type rawResponse struct {
	status int
	body   []byte
}

// Client talks JSON to the backend through a circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	settings   gobreaker.Settings
	metrics    recorder
	logg       *logger.Logger
	requestID  func(context.Context) string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithMetrics(m recorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithRequestIDSource forwards the id returned by fn as X-Request-Id on
// every backend call.
func WithRequestIDSource(fn func(context.Context) string) Option {
	return func(c *Client) {
		c.requestID = fn
	}
}

// WithBreakerSettings replaces the circuit breaker thresholds.
func WithBreakerSettings(maxRequests uint32, interval, timeout time.Duration, failures uint32) Option {
	return func(c *Client) {
		c.settings.MaxRequests = maxRequests
		c.settings.Interval = interval
		c.settings.Timeout = timeout
		c.settings.ReadyToTrip = tripAfter(failures)
	}
}

// NewClient builds the backend client from configuration.
func NewClient(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		metrics:    nopRecorder{},
		logg:       logger.Nop(),
		settings: gobreaker.Settings{
			Name:        serviceName,
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: tripAfter(cfg.BreakerFailureThreshold),
		},
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if _, err := url.ParseRequestURI(client.baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", client.baseURL, err)
	}

	client.settings.OnStateChange = func(name string, from, to gobreaker.State) {
		client.metrics.BreakerState(name, int(to))
		ctx := client.logg.WithFields(context.Background(), map[string]any{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
		client.logg.Warn(ctx, "backend.breaker.state_change")
	}
	client.breaker = gobreaker.NewCircuitBreaker[*rawResponse](client.settings)
	return client, nil
}

func tripAfter(failures uint32) func(gobreaker.Counts) bool {
	if failures == 0 {
		failures = 5
	}
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= failures
	}
}

// envelope is the wrapper every backend endpoint responds with.
type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Error      string            `json:"error"`
	Pagination *types.Pagination `json:"pagination"`
}

func (e envelope) reason() string {
	if strings.TrimSpace(e.Error) != "" {
		return e.Error
	}
	return e.Message
}

type call struct {
	op             string
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
}

// do executes the call and decodes envelope.data into out when out is non-nil.
func (c *Client) do(ctx context.Context, req call, out any) (*types.Pagination, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("marshal %s request", req.op))
		}
		payload = encoded
	}

	started := time.Now()
	raw, err := c.breaker.Execute(func() (*rawResponse, error) {
		return c.roundTrip(ctx, req, payload)
	})
	status := 0
	if raw != nil {
		status = raw.status
	}
	c.metrics.ObserveBackend(req.op, status, time.Since(started))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend temporarily unavailable")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s request failed", req.op))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw.body, &env)

	if raw.status >= http.StatusBadRequest {
		return nil, c.statusError(req.op, raw, env)
	}
	if decodeErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, fmt.Sprintf("decode %s response", req.op))
	}
	if !env.Success {
		reason := env.reason()
		if reason == "" {
			reason = fmt.Sprintf("%s rejected by backend", req.op)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, reason)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s payload", req.op))
		}
	}
	return env.Pagination, nil
}

// roundTrip performs the HTTP exchange. Only transport failures and 5xx
// responses are returned as errors so that they count against the breaker.
func (c *Client) roundTrip(ctx context.Context, req call, payload []byte) (*rawResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path, req.query), body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", req.op))
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.idempotencyKey)
	}
	if c.requestID != nil {
		if id := c.requestID(ctx); id != "" {
			httpReq.Header.Set(HeaderRequestID, id)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		code := pkgerrors.CodeDependency
		if isTimeout(err) {
			code = pkgerrors.CodeTimeout
		}
		return nil, pkgerrors.Wrap(code, &pkgerrors.UpstreamError{
			Service:   serviceName,
			Operation: req.op,
			Body:      err.Error(),
		}, fmt.Sprintf("execute %s request", req.op))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return &rawResponse{status: resp.StatusCode}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s response", req.op))
	}
	raw := &rawResponse{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return raw, pkgerrors.Wrap(pkgerrors.CodeDependency, upstream(req.op, raw), fmt.Sprintf("%s request failed", req.op))
	}
	return raw, nil
}

func (c *Client) statusError(op string, raw *rawResponse, env envelope) error {
	reason := env.reason()
	cause := upstream(op, raw)
	switch {
	case raw.status == http.StatusUnauthorized:
		if reason == "" {
			reason = "session expired"
		}
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, reason)
	case raw.status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, cause, orDefault(reason, "access denied"))
	case raw.status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, orDefault(reason, "resource not found"))
	case raw.status == http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, orDefault(reason, "conflict detected"))
	case raw.status == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, cause, orDefault(reason, "rate limit exceeded"))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, orDefault(reason, fmt.Sprintf("%s rejected by backend", op)))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func upstream(op string, raw *rawResponse) *pkgerrors.UpstreamError {
	body := strings.TrimSpace(string(raw.body))
	if len(body) > errorBodyLimit {
		cut := errorBodyLimit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return &pkgerrors.UpstreamError{Service: serviceName, Operation: op, Status: raw.status, Body: body}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func requireID(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", name)
	}
	return url.PathEscape(trimmed), nil
}
