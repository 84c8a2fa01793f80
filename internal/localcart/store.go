// internal/localcart/store.go
package localcart

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/storage"
)

// record is the persisted layout: the cart fields plus savedAt in epoch millis.
type record struct {
	models.Cart
	SavedAt int64 `json:"savedAt"`
}

// legacyItem accepts the older flat-array layout, which used "id" for the product id.
type legacyItem struct {
	models.CartItem
	ID string `json:"id"`
}

// Store owns the guest cart slot. Every method holds mu across its
// read-modify-write so concurrent callers never interleave.
type Store struct {
	mu          sync.Mutex
	storage     storage.Storage
	calc        *pricing.Calculator
	key         string
	ttl         time.Duration
	maxQuantity int
	now         func() time.Time
}

func New(s storage.Storage, calc *pricing.Calculator, cfg config.CartConfig) *Store {
	return &Store{
		storage:     s,
		calc:        calc,
		key:         cfg.StorageKey,
		ttl:         cfg.GuestTTL,
		maxQuantity: cfg.MaxQuantity,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Load(ctx context.Context) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx)
}

func (s *Store) Save(ctx context.Context, cart *models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveLocked(ctx, cart)
}

func (s *Store) AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) (*models.Cart, error) {
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return nil, models.NewValidationError(models.ErrMsgProductIDRequired)
	}
	if quantity < 1 || quantity > s.maxQuantity {
		return nil, models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}
	product.ID = productID

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.loadLocked(ctx)
	attrs := models.NormalizeAttributes(attributes)

	if idx := cart.FindItem(productID, attrs); idx >= 0 {
		existing := cart.Items[idx]
		newQty := existing.Quantity + quantity
		if err := s.checkQuantity(product, newQty); err != nil {
			return nil, err
		}
		existing.Quantity = newQty
		cart.Items[idx] = existing
	} else {
		if err := s.checkQuantity(product, quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:  productID,
			Product:    product,
			Quantity:   quantity,
			Price:      product.Price,
			Attributes: attrs,
		})
	}

	s.calc.Apply(cart)
	s.saveLocked(ctx, cart)
	return cart.Clone(), nil
}

func (s *Store) UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) (*models.Cart, error) {
	if quantity < 1 || quantity > s.maxQuantity {
		return nil, models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.loadLocked(ctx)
	idx := cart.FindItem(productID, attributes)
	if idx < 0 {
		return nil, models.NewNotFoundError(models.ErrMsgItemNotInCart)
	}

	item := cart.Items[idx]
	if err := s.checkQuantity(item.Product, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity
	cart.Items[idx] = item

	s.calc.Apply(cart)
	s.saveLocked(ctx, cart)
	return cart.Clone(), nil
}

func (s *Store) RemoveItem(ctx context.Context, productID string, attributes map[string]string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.loadLocked(ctx)
	key := models.ItemKey(productID, attributes)
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.Key() != key {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	s.calc.Apply(cart)
	s.saveLocked(ctx, cart)
	return cart.Clone(), nil
}

// Clear deletes the slot and returns an empty cart.
func (s *Store) Clear(ctx context.Context) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.key); err != nil {
		logrus.WithError(err).WithField("key", s.key).Warn("Failed to clear guest cart")
	}
	return s.emptyCart()
}

func (s *Store) checkQuantity(product models.ProductSnapshot, quantity int) error {
	if quantity > s.maxQuantity {
		return models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}
	if product.TrackQuantity && quantity > product.Stock {
		return models.NewStockError(models.ErrMsgInsufficientStock, product.Stock, productLabel(product))
	}
	return nil
}

func (s *Store) emptyCart() *models.Cart {
	return s.calc.Apply(models.NewCart(s.calc.DefaultTaxRate))
}

func (s *Store) loadLocked(ctx context.Context) *models.Cart {
	raw, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		logrus.WithError(err).WithField("key", s.key).Warn("Failed to read guest cart, starting empty")
		return s.emptyCart()
	}
	if !found {
		return s.emptyCart()
	}

	cart, ok := s.decode(raw)
	if !ok {
		s.discardLocked(ctx, "corrupt")
		return s.emptyCart()
	}
	if cart == nil {
		s.discardLocked(ctx, "expired")
		return s.emptyCart()
	}

	s.normalize(cart)
	return s.calc.Apply(cart)
}

// decode returns ok=false for unreadable payloads and a nil cart for expired ones.
func (s *Store) decode(raw []byte) (*models.Cart, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] == '[' {
		var legacy []legacyItem
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, false
		}
		cart := models.NewCart(s.calc.DefaultTaxRate)
		for _, li := range legacy {
			item := li.CartItem
			if item.ProductID == "" {
				item.ProductID = li.ID
			}
			cart.Items = append(cart.Items, item)
		}
		return cart, true
	}

	var rec record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, false
	}
	if rec.SavedAt > 0 && s.ttl > 0 {
		savedAt := time.UnixMilli(rec.SavedAt)
		if s.now().Sub(savedAt) > s.ttl {
			return nil, true
		}
	}
	cart := rec.Cart
	return &cart, true
}

// normalize drops unusable lines, folds duplicate keys and repairs enums.
func (s *Store) normalize(cart *models.Cart) {
	items := make([]models.CartItem, 0, len(cart.Items))
	index := make(map[string]int, len(cart.Items))

	for _, item := range cart.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		if item.Product.ID == "" {
			item.Product.ID = item.ProductID
		}
		if !validAmount(item.Price) {
			item.Price = 0
			if validAmount(item.Product.Price) {
				item.Price = item.Product.Price
			}
		}
		item.Attributes = models.NormalizeAttributes(item.Attributes)

		if pos, dup := index[item.Key()]; dup {
			items[pos].Quantity += item.Quantity
			items[pos].Quantity = s.clamp(items[pos].Product, items[pos].Quantity)
			continue
		}
		item.Quantity = s.clamp(item.Product, item.Quantity)
		if item.Quantity < 1 {
			continue
		}
		index[item.Key()] = len(items)
		items = append(items, item)
	}
	cart.Items = items

	if !cart.ShippingMethod.Valid() {
		cart.ShippingMethod = models.ShippingMethodStandard
	}
}

func (s *Store) clamp(product models.ProductSnapshot, quantity int) int {
	if quantity > s.maxQuantity {
		quantity = s.maxQuantity
	}
	if product.TrackQuantity && quantity > product.Stock {
		quantity = product.Stock
	}
	return quantity
}

func (s *Store) saveLocked(ctx context.Context, cart *models.Cart) {
	payload, err := json.Marshal(record{Cart: *cart, SavedAt: s.now().UnixMilli()})
	if err != nil {
		logrus.WithError(err).Warn("Failed to serialize guest cart")
		return
	}
	if err := s.storage.Set(ctx, s.key, payload); err != nil {
		logrus.WithError(err).WithField("key", s.key).Warn("Failed to persist guest cart")
	}
}

func (s *Store) discardLocked(ctx context.Context, reason string) {
	logrus.WithFields(logrus.Fields{"key": s.key, "reason": reason}).Info("Discarding stored guest cart")
	if err := s.storage.Remove(ctx, s.key); err != nil {
		logrus.WithError(err).WithField("key", s.key).Warn("Failed to discard guest cart")
	}
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func productLabel(p models.ProductSnapshot) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
