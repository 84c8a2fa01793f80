// internal/repository/cart_repository.go
package repository

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/auth"
	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
)

// LocalStore is the guest-mode backend.
type LocalStore interface {
	Load(ctx context.Context) *models.Cart
	AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) (*models.Cart, error)
	UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) (*models.Cart, error)
	RemoveItem(ctx context.Context, productID string, attributes map[string]string) (*models.Cart, error)
	Clear(ctx context.Context) *models.Cart
}

// RemoteCart is the authenticated-mode backend.
type RemoteCart interface {
	GetCart(ctx context.Context) (*models.Cart, error)
	AddItem(ctx context.Context, req models.AddItemRequest) (*models.Cart, error)
	UpdateItem(ctx context.Context, productID string, req models.UpdateItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, productID string, req models.RemoveItemRequest) (*models.Cart, error)
	ClearCart(ctx context.Context) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, req models.ApplyCouponRequest) (*models.Cart, error)
	UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) (*models.Cart, error)
	UpdateShippingMethod(ctx context.Context, req models.ShippingMethodRequest) (*models.Cart, error)
	SyncItems(ctx context.Context, req models.SyncItemsRequest) (*models.Cart, error)
}

// CartRepository is the only place that branches on the auth signal.
type CartRepository struct {
	auth   auth.Authenticator
	local  LocalStore
	remote RemoteCart
	calc   *pricing.Calculator
}

func NewCartRepository(authenticator auth.Authenticator, local LocalStore, remote RemoteCart, calc *pricing.Calculator) *CartRepository {
	return &CartRepository{
		auth:   authenticator,
		local:  local,
		remote: remote,
		calc:   calc,
	}
}

func (r *CartRepository) Mode() models.Mode {
	if r.auth.IsAuthenticated() {
		return models.ModeAuthenticated
	}
	return models.ModeGuest
}

func (r *CartRepository) Fetch(ctx context.Context) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return r.local.Load(ctx), nil
	}
	cart, err := r.remote.GetCart(ctx)
	return r.remoteResult(cart, err, true)
}

func (r *CartRepository) AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return r.local.AddItem(ctx, product, quantity, attributes)
	}
	cart, err := r.remote.AddItem(ctx, models.AddItemRequest{
		ProductID:  product.ID,
		Quantity:   quantity,
		Attributes: models.NormalizeAttributes(attributes),
	})
	return r.remoteResult(cart, err, false)
}

func (r *CartRepository) UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return r.local.UpdateItem(ctx, productID, quantity, attributes)
	}
	cart, err := r.remote.UpdateItem(ctx, productID, models.UpdateItemRequest{
		Quantity:   quantity,
		Attributes: models.NormalizeAttributes(attributes),
	})
	return r.remoteResult(cart, err, false)
}

func (r *CartRepository) RemoveItem(ctx context.Context, productID string, attributes map[string]string) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return r.local.RemoveItem(ctx, productID, attributes)
	}
	cart, err := r.remote.RemoveItem(ctx, productID, models.RemoveItemRequest{
		Attributes: models.NormalizeAttributes(attributes),
	})
	return r.remoteResult(cart, err, false)
}

func (r *CartRepository) Clear(ctx context.Context) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return r.local.Clear(ctx), nil
	}
	cart, err := r.remote.ClearCart(ctx)
	return r.remoteResult(cart, err, true)
}

func (r *CartRepository) ApplyCoupon(ctx context.Context, code string) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return nil, models.NewUnauthorizedError(models.ErrMsgAuthRequired)
	}
	cart, err := r.remote.ApplyCoupon(ctx, models.ApplyCouponRequest{Code: code})
	return r.remoteResult(cart, err, false)
}

func (r *CartRepository) UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return nil, models.NewUnauthorizedError(models.ErrMsgAuthRequired)
	}
	cart, err := r.remote.UpdateShippingAddress(ctx, addr)
	return r.remoteResult(cart, err, false)
}

func (r *CartRepository) UpdateShippingMethod(ctx context.Context, method models.ShippingMethod) (*models.Cart, error) {
	if r.Mode() == models.ModeGuest {
		return nil, models.NewUnauthorizedError(models.ErrMsgAuthRequired)
	}
	cart, err := r.remote.UpdateShippingMethod(ctx, models.ShippingMethodRequest{Method: method})
	return r.remoteResult(cart, err, false)
}

// remoteResult normalizes a remote answer. With degrade set, a 401 yields an
// empty cart instead of an error.
func (r *CartRepository) remoteResult(cart *models.Cart, err error, degrade bool) (*models.Cart, error) {
	if err != nil {
		if degrade && cartapi.IsUnauthorized(err) {
			logrus.Warn("Cart API rejected the session, serving an empty cart")
			return r.emptyCart(), nil
		}
		return nil, TranslateRemoteError(err)
	}
	return Normalize(cart, r.calc), nil
}

func (r *CartRepository) emptyCart() *models.Cart {
	return r.calc.Apply(models.NewCart(r.calc.DefaultTaxRate))
}

// Normalize fills the defaults a remote cart may omit. Server totals are kept
// when they are present and consistent; otherwise they are recomputed.
func Normalize(cart *models.Cart, calc *pricing.Calculator) *models.Cart {
	if cart == nil {
		return calc.Apply(models.NewCart(calc.DefaultTaxRate))
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	for i := range cart.Items {
		cart.Items[i].Attributes = models.NormalizeAttributes(cart.Items[i].Attributes)
		if cart.Items[i].Product.ID == "" {
			cart.Items[i].Product.ID = cart.Items[i].ProductID
		}
	}
	if !cart.ShippingMethod.Valid() {
		cart.ShippingMethod = models.ShippingMethodStandard
	}
	if cart.TaxRate == 0 {
		cart.TaxRate = calc.DefaultTaxRate
	}
	if !totalsPresent(cart) {
		calc.Apply(cart)
	}
	return cart
}

// totalsPresent reports whether the cart carries totals that add up.
func totalsPresent(cart *models.Cart) bool {
	if len(cart.Items) > 0 && cart.Subtotal == 0 {
		for _, item := range cart.Items {
			if item.Price*float64(item.Quantity) != 0 {
				return false
			}
		}
	}
	base := math.Max(0, cart.Subtotal-cart.Discount+cart.Shipping)
	return math.Abs(base+cart.Tax-cart.Total) < 0.01
}

// TranslateRemoteError maps a collaborator failure into the cart error taxonomy.
func TranslateRemoteError(err error) error {
	var cartErr *models.CartError
	if errors.As(err, &cartErr) {
		return cartErr
	}

	var apiErr *cartapi.Error
	if !errors.As(err, &apiErr) {
		return models.NewRemoteError(models.ErrMsgCartUnavailable, err)
	}

	switch models.ErrorCode(apiErr.Code) {
	case models.CodeValidation, models.CodeStock, models.CodeNotFound, models.CodeUnauthorized:
		return &models.CartError{Code: models.ErrorCode(apiErr.Code), Message: apiErr.Message, Err: err}
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return &models.CartError{Code: models.CodeUnauthorized, Message: models.ErrMsgAuthRequired, Err: err}
	case http.StatusNotFound:
		return &models.CartError{Code: models.CodeNotFound, Message: apiErr.Message, Err: err}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &models.CartError{Code: models.CodeValidation, Message: apiErr.Message, Err: err}
	case http.StatusConflict:
		return &models.CartError{Code: models.CodeStock, Message: apiErr.Message, Err: err}
	default:
		return models.NewRemoteError(models.ErrMsgCartUnavailable, err)
	}
}
