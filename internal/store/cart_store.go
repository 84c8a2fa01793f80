// internal/store/cart_store.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/auth"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/services"
)

// CartOps is the service surface the store drives.
type CartOps interface {
	Mode() models.Mode
	GetCart(ctx context.Context) services.Result
	AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) services.Result
	UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) services.Result
	RemoveItem(ctx context.Context, productID string, attributes map[string]string) services.Result
	ClearCart(ctx context.Context) services.Result
	ApplyCoupon(ctx context.Context, code string) services.Result
	UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) services.Result
	UpdateShippingMethod(ctx context.Context, method models.ShippingMethod) services.Result
}

// Syncer runs the login-time merge.
type Syncer interface {
	SyncGuestCartToUser(ctx context.Context) services.SyncResult
	Status() models.SyncStatus
	Reset()
}

type cacheEntry struct {
	data      *models.Cart
	timestamp time.Time
}

// operation is the handle of an in-flight per-item mutation.
type operation struct {
	cancel     context.CancelFunc
	done       chan struct{}
	superseded bool
}

// CartStore is the process-wide cart state. Readers use the selectors; every
// action returns the service Result it was given.
type CartStore struct {
	mu sync.RWMutex

	cart        *models.Cart
	confirmed   *models.Cart
	cache       *cacheEntry
	err         *models.CartError
	initialized bool
	mode        models.Mode
	syncStatus  models.SyncStatus

	fetchSeq    uint64
	fetchActive bool
	fetchCancel context.CancelFunc
	wholeOps    int
	itemOps     map[string]*operation
	authEpoch   uint64

	service  CartOps
	syncer   Syncer
	calc     *pricing.Calculator
	cacheTTL time.Duration
	now      func() time.Time
}

func NewCartStore(service CartOps, syncer Syncer, calc *pricing.Calculator, cacheTTL time.Duration) *CartStore {
	empty := calc.Apply(models.NewCart(calc.DefaultTaxRate))
	return &CartStore{
		cart:       empty,
		confirmed:  empty.Clone(),
		mode:       models.ModeGuest,
		syncStatus: models.SyncStatusIdle,
		itemOps:    make(map[string]*operation),
		service:    service,
		syncer:     syncer,
		calc:       calc,
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *CartStore) WithClock(now func() time.Time) *CartStore {
	s.now = now
	return s
}

// Selectors

func (s *CartStore) Items() []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone().Items
}

func (s *CartStore) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ItemCount()
}

func (s *CartStore) Subtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Subtotal
}

func (s *CartStore) Discount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Discount
}

func (s *CartStore) ShippingCost() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ShippingCost
}

func (s *CartStore) Shipping() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Shipping
}

func (s *CartStore) Tax() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Tax
}

func (s *CartStore) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total
}

func (s *CartStore) Coupon() *models.Coupon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cart.Coupon == nil {
		return nil
	}
	c := *s.cart.Coupon
	return &c
}

func (s *CartStore) ShippingMethod() models.ShippingMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ShippingMethod
}

func (s *CartStore) ShippingAddress() *models.ShippingAddress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cart.ShippingAddress == nil {
		return nil
	}
	a := *s.cart.ShippingAddress
	return &a
}

// IsLoading reports the global, cart-wide loading flag.
func (s *CartStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchActive || s.wholeOps > 0
}

func (s *CartStore) IsItemLoading(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, busy := s.itemOps[productID]
	return busy
}

func (s *CartStore) LoadingItems() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.itemOps))
	for id := range s.itemOps {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *CartStore) Error() *models.CartError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *CartStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *CartStore) Mode() models.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *CartStore) SyncStatus() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStatus
}

// Snapshot returns a copy of the whole cart, for rendering.
func (s *CartStore) Snapshot() *models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Actions

// Init reads the mode and loads the cart once.
func (s *CartStore) Init(ctx context.Context) services.Result {
	s.mu.Lock()
	s.mode = s.service.Mode()
	s.mu.Unlock()

	res := s.FetchCart(ctx, true)

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return res
}

// BindAuth runs OnLogin and OnLogout on auth transitions.
func (s *CartStore) BindAuth(ctx context.Context, a auth.Authenticator) func() {
	return a.OnAuthChange(func(authenticated bool) {
		if authenticated {
			s.OnLogin(ctx)
		} else {
			s.OnLogout(ctx)
		}
	})
}

// FetchCart loads the cart, serving the authenticated cache while it is
// fresh unless force is set. A newer fetch cancels an older one, and only the
// newest may clear the loading flag or replace the cart.
func (s *CartStore) FetchCart(ctx context.Context, force bool) services.Result {
	s.mu.Lock()
	if s.syncStatus == models.SyncStatusInProgress {
		cart := s.cart.Clone()
		s.mu.Unlock()
		return services.Result{Success: true, Cart: cart}
	}
	if !force && s.mode == models.ModeAuthenticated && s.cache != nil && s.now().Sub(s.cache.timestamp) < s.cacheTTL {
		s.cart = s.cache.data.Clone()
		s.confirmed = s.cache.data.Clone()
		cart := s.cart.Clone()
		s.mu.Unlock()
		return services.Result{Success: true, Cart: cart}
	}

	if s.fetchCancel != nil {
		s.fetchCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetchSeq++
	seq := s.fetchSeq
	s.fetchCancel = cancel
	s.fetchActive = true
	s.mu.Unlock()

	res := s.service.GetCart(fetchCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if seq != s.fetchSeq {
		logrus.WithField("seq", seq).Debug("Discarding superseded cart fetch")
		return res
	}
	s.fetchActive = false
	s.fetchCancel = nil
	s.mode = s.service.Mode()
	s.applyLocked(res)
	return res
}

func (s *CartStore) AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) services.Result {
	return s.itemOp(ctx, product.ID, false, func(opCtx context.Context) services.Result {
		return s.service.AddItem(opCtx, product, quantity, attributes)
	}, nil)
}

// UpdateItem applies the new quantity at once and, if the service refuses,
// restores the last quantity the service confirmed. A newer update on the
// same product supersedes this one.
func (s *CartStore) UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) services.Result {
	var applied bool

	return s.itemOp(ctx, productID, true, func(opCtx context.Context) services.Result {
		s.mu.Lock()
		if idx := s.cart.FindItem(productID, attributes); idx >= 0 && quantity >= 1 && opCtx.Err() == nil {
			optimistic := s.cart.Clone()
			optimistic.Items[idx].Quantity = quantity
			s.cart = s.calc.Apply(optimistic)
			applied = true
		}
		s.mu.Unlock()

		return s.service.UpdateItem(opCtx, productID, quantity, attributes)
	}, func() {
		if !applied {
			return
		}
		idx := s.cart.FindItem(productID, attributes)
		if idx < 0 || s.cart.Items[idx].Quantity != quantity {
			return
		}
		rolled := s.cart.Clone()
		if c := s.confirmed.FindItem(productID, attributes); c >= 0 {
			rolled.Items[idx].Quantity = s.confirmed.Items[c].Quantity
		} else {
			rolled.Items = append(rolled.Items[:idx], rolled.Items[idx+1:]...)
		}
		s.cart = s.calc.Apply(rolled)
	})
}

func (s *CartStore) RemoveItem(ctx context.Context, productID string, attributes map[string]string) services.Result {
	return s.itemOp(ctx, productID, false, func(opCtx context.Context) services.Result {
		return s.service.RemoveItem(opCtx, productID, attributes)
	}, nil)
}

func (s *CartStore) ClearCart(ctx context.Context) services.Result {
	return s.wholeOp(func() services.Result {
		return s.service.ClearCart(ctx)
	})
}

func (s *CartStore) ApplyCoupon(ctx context.Context, code string) services.Result {
	return s.wholeOp(func() services.Result {
		return s.service.ApplyCoupon(ctx, code)
	})
}

func (s *CartStore) UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) services.Result {
	return s.wholeOp(func() services.Result {
		return s.service.UpdateShippingAddress(ctx, addr)
	})
}

func (s *CartStore) UpdateShippingMethod(ctx context.Context, method models.ShippingMethod) services.Result {
	return s.wholeOp(func() services.Result {
		return s.service.UpdateShippingMethod(ctx, method)
	})
}

// OnLogin switches to authenticated mode and runs the merge. Calling it again
// after a failed merge retries it.
func (s *CartStore) OnLogin(ctx context.Context) services.SyncResult {
	s.mu.Lock()
	if !s.syncStatus.CanStart() {
		s.mu.Unlock()
		return services.SyncResult{Error: models.NewSyncError(models.ErrMsgSyncInProgress, nil)}
	}
	s.authEpoch++
	s.mode = models.ModeAuthenticated
	s.syncStatus = models.SyncStatusInProgress
	s.cache = nil
	s.wholeOps++
	s.cancelFetchLocked()
	s.cancelItemOpsLocked()
	epoch := s.authEpoch
	s.mu.Unlock()

	res := s.syncer.SyncGuestCartToUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wholeOps--
	if epoch != s.authEpoch {
		logrus.Info("Session changed during cart sync, result discarded")
		return res
	}

	if res.Success {
		s.syncStatus = models.SyncStatusCompleted
		s.cart = res.Cart.Clone()
		s.confirmed = res.Cart.Clone()
		s.cache = &cacheEntry{data: res.Cart.Clone(), timestamp: s.now()}
		s.err = nil
	} else {
		s.syncStatus = models.SyncStatusFailed
		s.err = res.Error
	}
	return res
}

// OnLogout returns to guest mode and reloads the local cart.
func (s *CartStore) OnLogout(ctx context.Context) services.Result {
	s.mu.Lock()
	s.authEpoch++
	s.mode = models.ModeGuest
	s.syncStatus = models.SyncStatusIdle
	s.cache = nil
	s.err = nil
	s.cancelFetchLocked()
	s.cancelItemOpsLocked()
	s.mu.Unlock()

	s.syncer.Reset()
	return s.FetchCart(ctx, true)
}

// itemOp runs fn with productID marked as loading. With supersede set, an
// in-flight op on the same product is cancelled; otherwise it is awaited.
func (s *CartStore) itemOp(ctx context.Context, productID string, supersede bool, fn func(context.Context) services.Result, rollback func()) services.Result {
	s.mu.Lock()
	for {
		prev, busy := s.itemOps[productID]
		if !busy {
			break
		}
		if supersede {
			prev.superseded = true
			prev.cancel()
		}
		s.mu.Unlock()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return services.Result{Error: models.NewRemoteError(models.ErrMsgCartUnavailable, ctx.Err())}
		}
		s.mu.Lock()
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{cancel: cancel, done: make(chan struct{})}
	s.itemOps[productID] = op
	epoch := s.authEpoch
	s.mu.Unlock()

	res := fn(opCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if s.itemOps[productID] == op {
		delete(s.itemOps, productID)
	}
	close(op.done)

	if op.superseded {
		return res
	}
	if epoch != s.authEpoch {
		logrus.WithField("product_id", productID).Debug("Session changed during item update, result discarded")
		return res
	}
	if !res.Success && rollback != nil {
		rollback()
	}
	s.applyLocked(res)
	return res
}

// wholeOp runs a cart-wide action under the global loading flag. Such actions
// are refused while a merge is running.
func (s *CartStore) wholeOp(fn func() services.Result) services.Result {
	s.mu.Lock()
	if s.syncStatus == models.SyncStatusInProgress {
		s.mu.Unlock()
		return services.Result{Error: models.NewSyncError(models.ErrMsgSyncInProgress, nil)}
	}
	s.wholeOps++
	epoch := s.authEpoch
	s.mu.Unlock()

	res := fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wholeOps--
	if epoch != s.authEpoch {
		logrus.Debug("Session changed during cart update, result discarded")
		return res
	}
	s.applyLocked(res)
	return res
}

func (s *CartStore) applyLocked(res services.Result) {
	if !res.Success {
		s.err = res.Error
		return
	}
	s.err = nil
	if res.Cart == nil {
		return
	}
	s.cart = res.Cart.Clone()
	s.confirmed = res.Cart.Clone()
	if s.mode == models.ModeAuthenticated {
		s.cache = &cacheEntry{data: res.Cart.Clone(), timestamp: s.now()}
	} else {
		s.cache = nil
	}
}

func (s *CartStore) cancelFetchLocked() {
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	s.fetchSeq++
	s.fetchActive = false
}

// cancelItemOpsLocked cancels in-flight item ops; their results are
// discarded by the epoch check.
func (s *CartStore) cancelItemOpsLocked() {
	for _, op := range s.itemOps {
		op.cancel()
	}
}
