// Package notice carries shopper-facing confirmations from domain operations
// to whatever surface renders them.
package notice

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront/pkg/types"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives confirmations emitted by the cart, auth and checkout flows.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// Collector buffers notices for the duration of one request.
type Collector struct {
	mu      sync.Mutex
	notices []types.Notice
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Notify(_ context.Context, level Level, message string) {
	if message == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, types.Notice{Level: string(level), Message: message})
}

// Drain returns the buffered notices and resets the collector.
func (c *Collector) Drain() []types.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	return out
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Level, string) {}

type ctxKey struct{}

// WithNotifier attaches n to ctx so request-scoped flows emit into it.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// FromContext returns the notifier attached to ctx, or Discard.
func FromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(ctxKey{}).(Notifier); ok && n != nil {
		return n
	}
	return Discard{}
}
