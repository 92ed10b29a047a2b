package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/notice"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/kvstore"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type blobStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Del(ctx context.Context, names ...string) error
}

// Store is the single entry point for cart mutations. Every mutation re-persists
// the full line collection; a failed write leaves the in-memory cart unchanged.
type Store struct {
	mu     sync.Mutex
	items  []LineItem
	blobs  blobStore
	notify notice.Notifier
	logg   *logger.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes a Store.
type Option func(*Store)

func WithNotifier(n notice.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notify = n
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) {
		if logg != nil {
			s.logg = logg
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore builds an empty store over the given persistence. Call Hydrate to
// load previously saved state.
func NewStore(blobs blobStore, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("cart persistence required")
	}
	s := &Store{
		blobs:  blobs,
		notify: notice.Discard{},
		logg:   logger.Nop(),
		now:    time.Now,
		newID:  func() string { return "temp_" + uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Hydrate replaces the in-memory cart with the persisted one. Unparsable or
// inconsistent blobs are deleted and the cart starts empty.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.blobs.Get(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.items = nil
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	items, decodeErr := decodeItems(raw)
	if decodeErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", decodeErr.Error()), "cart.hydrate.discarded")
		if delErr := s.blobs.Del(ctx, StorageKey); delErr != nil {
			s.logg.Error(ctx, "cart.hydrate.discard_failed", delErr)
		}
		s.items = nil
		return nil
	}
	s.items = items
	return nil
}

func decodeItems(raw string) ([]LineItem, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty blob")
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, errors.New("line without product id")
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("line %s has quantity %d", item.ProductID, item.Quantity)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("duplicate line for product %s", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return items, nil
}

// AddItem merges quantity into the product's line, or appends a new line.
func (s *Store) AddItem(ctx context.Context, product Product, quantity int) (LineItem, error) {
	if strings.TrimSpace(product.ID) == "" {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := s.copyItems()
	idx := indexOf(next, product.ID)

	var line LineItem
	var msg string
	if idx >= 0 {
		next[idx].Quantity += quantity
		next[idx].UpdatedAt = now
		line = next[idx]
		msg = fmt.Sprintf("%s - quantidade atualizada no carrinho", displayName(line.ProductName, product.ID))
	} else {
		line = LineItem{
			ID:                s.newID(),
			ProductID:         product.ID,
			ProductName:       product.Name,
			Quantity:          quantity,
			UnitPriceSnapshot: product.Price,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		next = append(next, line)
		msg = fmt.Sprintf("%s adicionado ao carrinho", displayName(product.Name, product.ID))
	}

	if err := s.commit(ctx, next); err != nil {
		return LineItem{}, err
	}
	s.notify.Notify(ctx, notice.LevelSuccess, msg)
	return line, nil
}

// RemoveItem deletes the product's line. Removing an absent product is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, productID)
}

func (s *Store) removeLocked(ctx context.Context, productID string) error {
	idx := indexOf(s.items, productID)
	if idx < 0 {
		return nil
	}
	removed := s.items[idx]
	next := make([]LineItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)

	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.notify.Notify(ctx, notice.LevelInfo, fmt.Sprintf("%s removido do carrinho", displayName(removed.ProductName, removed.ProductID)))
	return nil
}

// UpdateQuantity sets the product's quantity. quantity <= 0 removes the line;
// updating a product that is not in the cart is a NOT_FOUND error.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (*LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return nil, s.removeLocked(ctx, productID)
	}

	idx := indexOf(s.items, productID)
	if idx < 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s is not in the cart", productID)
	}

	next := s.copyItems()
	next[idx].Quantity = quantity
	next[idx].UpdatedAt = s.now()
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	line := next[idx]
	return &line, nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(ctx, []LineItem{}); err != nil {
		return err
	}
	s.notify.Notify(ctx, notice.LevelInfo, "Carrinho limpo")
	return nil
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

// Line returns the product's line if present.
func (s *Store) Line(productID string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.items, productID)
	if idx < 0 {
		return LineItem{}, false
	}
	return s.items[idx], true
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ItemCount(s.items)
}

func (s *Store) commit(ctx context.Context, next []LineItem) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.blobs.Set(ctx, StorageKey, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	s.items = next
	return nil
}

func (s *Store) copyItems() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func indexOf(items []LineItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
