// internal/testutil/remote.go
package testutil

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
)

// FakeRemote is an in-memory account cart that speaks the remote API
// contract, including the additive bulk sync.
type FakeRemote struct {
	mu          sync.Mutex
	cart        *models.Cart
	calc        *pricing.Calculator
	maxQuantity int

	Catalog map[string]models.ProductSnapshot
	Coupons map[string]models.Coupon
	// Fail makes the named operation return the error.
	Fail map[string]error
	// Before runs ahead of every operation; a non-nil error aborts it.
	Before func(ctx context.Context, op string) error

	calls    map[string]int
	lastSync []models.SyncItem
}

func NewFakeRemote(calc *pricing.Calculator, maxQuantity int) *FakeRemote {
	return &FakeRemote{
		cart:        calc.Apply(models.NewCart(calc.DefaultTaxRate)),
		calc:        calc,
		maxQuantity: maxQuantity,
		Catalog:     make(map[string]models.ProductSnapshot),
		Coupons:     make(map[string]models.Coupon),
		Fail:        make(map[string]error),
		calls:       make(map[string]int),
	}
}

// Seed replaces the account cart with the given lines.
func (f *FakeRemote) Seed(items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cart.Items = nil
	for _, item := range items {
		item.Attributes = models.NormalizeAttributes(item.Attributes)
		if item.Product.ID == "" {
			item.Product.ID = item.ProductID
		}
		f.cart.Items = append(f.cart.Items, item)
		if _, ok := f.Catalog[item.ProductID]; !ok {
			f.Catalog[item.ProductID] = item.Product
		}
	}
	f.calc.Apply(f.cart)
}

func (f *FakeRemote) Snapshot() *models.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone()
}

func (f *FakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeRemote) LastSync() []models.SyncItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SyncItem(nil), f.lastSync...)
}

func (f *FakeRemote) SetFailure(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, op)
		return
	}
	f.Fail[op] = err
}

func (f *FakeRemote) enter(ctx context.Context, op string) error {
	if f.Before != nil {
		if err := f.Before(ctx, op); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.Fail[op]
}

func (f *FakeRemote) GetCart(ctx context.Context) (*models.Cart, error) {
	if err := f.enter(ctx, "GetCart"); err != nil {
		return nil, err
	}
	return f.Snapshot(), nil
}

func (f *FakeRemote) AddItem(ctx context.Context, req models.AddItemRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "AddItem"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		product, ok := f.Catalog[req.ProductID]
		if !ok {
			return &cartapi.Error{StatusCode: http.StatusNotFound, Code: string(models.CodeNotFound), Message: "product not found"}
		}
		idx := cart.FindItem(req.ProductID, req.Attributes)
		qty := req.Quantity
		if idx >= 0 {
			qty += cart.Items[idx].Quantity
		}
		if err := f.check(product, qty); err != nil {
			return err
		}
		if idx >= 0 {
			cart.Items[idx].Quantity = qty
			return nil
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:  req.ProductID,
			Product:    product,
			Quantity:   qty,
			Price:      product.Price,
			Attributes: models.NormalizeAttributes(req.Attributes),
		})
		return nil
	})
}

func (f *FakeRemote) UpdateItem(ctx context.Context, productID string, req models.UpdateItemRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "UpdateItem"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		idx := cart.FindItem(productID, req.Attributes)
		if idx < 0 {
			return &cartapi.Error{StatusCode: http.StatusNotFound, Code: string(models.CodeNotFound), Message: models.ErrMsgItemNotInCart}
		}
		if err := f.check(cart.Items[idx].Product, req.Quantity); err != nil {
			return err
		}
		cart.Items[idx].Quantity = req.Quantity
		return nil
	})
}

func (f *FakeRemote) RemoveItem(ctx context.Context, productID string, req models.RemoveItemRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "RemoveItem"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		if idx := cart.FindItem(productID, req.Attributes); idx >= 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		}
		return nil
	})
}

func (f *FakeRemote) ClearCart(ctx context.Context) (*models.Cart, error) {
	if err := f.enter(ctx, "ClearCart"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		cart.Items = []models.CartItem{}
		cart.Coupon = nil
		return nil
	})
}

func (f *FakeRemote) ApplyCoupon(ctx context.Context, req models.ApplyCouponRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "ApplyCoupon"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		coupon, ok := f.Coupons[strings.ToUpper(req.Code)]
		if !ok {
			return &cartapi.Error{StatusCode: http.StatusBadRequest, Code: string(models.CodeValidation), Message: "coupon not valid"}
		}
		cart.Coupon = &coupon
		return nil
	})
}

func (f *FakeRemote) UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) (*models.Cart, error) {
	if err := f.enter(ctx, "UpdateShippingAddress"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		cart.ShippingAddress = &addr
		return nil
	})
}

func (f *FakeRemote) UpdateShippingMethod(ctx context.Context, req models.ShippingMethodRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "UpdateShippingMethod"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		cart.ShippingMethod = req.Method
		return nil
	})
}

func (f *FakeRemote) SyncItems(ctx context.Context, req models.SyncItemsRequest) (*models.Cart, error) {
	if err := f.enter(ctx, "SyncItems"); err != nil {
		return nil, err
	}
	return f.mutate(func(cart *models.Cart) error {
		f.lastSync = append([]models.SyncItem(nil), req.Items...)
		for _, si := range req.Items {
			idx := cart.FindItem(si.ProductID, si.Attributes)
			if idx >= 0 {
				cart.Items[idx].Quantity = f.clamp(cart.Items[idx].Product, cart.Items[idx].Quantity+si.Quantity)
				continue
			}
			product, ok := f.Catalog[si.ProductID]
			if !ok {
				product = models.ProductSnapshot{ID: si.ProductID, Price: si.Price}
			}
			cart.Items = append(cart.Items, models.CartItem{
				ProductID:  si.ProductID,
				Product:    product,
				Quantity:   f.clamp(product, si.Quantity),
				Price:      product.Price,
				Attributes: models.NormalizeAttributes(si.Attributes),
			})
		}
		return nil
	})
}

func (f *FakeRemote) mutate(fn func(cart *models.Cart) error) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := f.cart.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	f.cart = f.calc.Apply(work)
	return f.cart.Clone(), nil
}

func (f *FakeRemote) check(product models.ProductSnapshot, qty int) error {
	if qty > f.maxQuantity {
		return &cartapi.Error{StatusCode: http.StatusBadRequest, Code: string(models.CodeValidation), Message: "quantity too large"}
	}
	if product.TrackQuantity && qty > product.Stock {
		return &cartapi.Error{StatusCode: http.StatusConflict, Code: string(models.CodeStock), Message: "insufficient stock"}
	}
	return nil
}

func (f *FakeRemote) clamp(product models.ProductSnapshot, qty int) int {
	if qty > f.maxQuantity {
		qty = f.maxQuantity
	}
	if product.TrackQuantity && qty > product.Stock {
		qty = product.Stock
	}
	return qty
}

// FakeAuth is a settable authentication signal.
type FakeAuth struct {
	mu     sync.Mutex
	authed bool
	subs   map[int]func(bool)
	next   int
}

func NewFakeAuth(authenticated bool) *FakeAuth {
	return &FakeAuth{authed: authenticated, subs: make(map[int]func(bool))}
}

func (a *FakeAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authed
}

// Set flips the signal and notifies subscribers on a transition.
func (a *FakeAuth) Set(authenticated bool) {
	a.mu.Lock()
	changed := a.authed != authenticated
	a.authed = authenticated
	subs := make([]func(bool), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(authenticated)
		}
	}
}

func (a *FakeAuth) OnAuthChange(fn func(bool)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}
