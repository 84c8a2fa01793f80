// internal/repository/cart_repository_test.go
package repository

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/localcart"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/storage"
	"github.com/javajoker/cart-engine/internal/testutil"
)

type fixture struct {
	repo   *CartRepository
	auth   *testutil.FakeAuth
	remote *testutil.FakeRemote
	local  *localcart.Store
}

func newFixture(authenticated bool) *fixture {
	calc := pricing.NewCalculator(150000, 15000, 19)
	local := localcart.New(storage.NewMemoryStorage(), calc, config.CartConfig{
		MaxQuantity: 99,
		StorageKey:  "cart:guest",
		GuestTTL:    7 * 24 * time.Hour,
	})
	remote := testutil.NewFakeRemote(calc, 99)
	fakeAuth := testutil.NewFakeAuth(authenticated)
	return &fixture{
		repo:   NewCartRepository(fakeAuth, local, remote, calc),
		auth:   fakeAuth,
		remote: remote,
		local:  local,
	}
}

var lamp = models.ProductSnapshot{ID: "A", Name: "Lamp", Price: 500, Stock: 5, TrackQuantity: true}

func TestGuestModeUsesLocalStore(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	assert.Equal(t, models.ModeGuest, f.repo.Mode())

	cart, err := f.repo.AddItem(ctx, lamp, 2, nil)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 0, f.remote.Calls("AddItem"))

	fetched, err := f.repo.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.Items[0].Quantity)

	cart, err = f.repo.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestGuestModeRejectsAccountOperations(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	_, err := f.repo.ApplyCoupon(ctx, "SAVE10")
	assert.Equal(t, models.CodeUnauthorized, models.CodeOf(err))

	_, err = f.repo.UpdateShippingMethod(ctx, models.ShippingMethodExpress)
	assert.Equal(t, models.CodeUnauthorized, models.CodeOf(err))

	_, err = f.repo.UpdateShippingAddress(ctx, models.ShippingAddress{})
	assert.Equal(t, models.CodeUnauthorized, models.CodeOf(err))
}

func TestAuthenticatedModeUsesRemote(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	f.remote.Catalog["A"] = lamp

	cart, err := f.repo.AddItem(ctx, lamp, 1, map[string]string{"Color": "Red"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, map[string]string{"color": "Red"}, cart.Items[0].Attributes)
	assert.Equal(t, 1, f.remote.Calls("AddItem"))

	local := f.local.Load(ctx)
	assert.Empty(t, local.Items)

	cart, err = f.repo.UpdateShippingMethod(ctx, models.ShippingMethodExpress)
	require.NoError(t, err)
	assert.Equal(t, models.ShippingMethodExpress, cart.ShippingMethod)
}

func TestUnauthorizedDegradesOnFetchAndClear(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	unauthorized := &cartapi.Error{StatusCode: http.StatusUnauthorized, Message: "expired"}
	f.remote.SetFailure("GetCart", unauthorized)
	f.remote.SetFailure("ClearCart", unauthorized)
	f.remote.SetFailure("AddItem", unauthorized)

	cart, err := f.repo.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	cart, err = f.repo.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = f.repo.AddItem(ctx, lamp, 1, nil)
	assert.Equal(t, models.CodeUnauthorized, models.CodeOf(err))
}

func TestTranslateRemoteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorCode
	}{
		{"coded stock", &cartapi.Error{StatusCode: http.StatusConflict, Code: "STOCK_ERROR"}, models.CodeStock},
		{"not found status", &cartapi.Error{StatusCode: http.StatusNotFound}, models.CodeNotFound},
		{"bad request status", &cartapi.Error{StatusCode: http.StatusBadRequest}, models.CodeValidation},
		{"server error", &cartapi.Error{StatusCode: http.StatusBadGateway}, models.CodeRemote},
		{"network", errors.New("connection refused"), models.CodeRemote},
		{"already domain", models.NewNotFoundError("gone"), models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.CodeOf(TranslateRemoteError(tt.err)))
		})
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	calc := pricing.NewCalculator(150000, 15000, 19)
	cart := Normalize(&models.Cart{Items: []models.CartItem{{ProductID: "A", Quantity: 1}}}, calc)

	assert.Equal(t, models.ShippingMethodStandard, cart.ShippingMethod)
	assert.Equal(t, 19.0, cart.TaxRate)
	assert.Equal(t, "A", cart.Items[0].Product.ID)
	assert.NotNil(t, cart.Items[0].Attributes)

	assert.NotNil(t, Normalize(nil, calc).Items)
}

func TestNormalizeRecomputesMissingTotals(t *testing.T) {
	calc := pricing.NewCalculator(150000, 15000, 19)
	line := models.CartItem{ProductID: "A", Quantity: 2, Price: 500}

	cart := Normalize(&models.Cart{Items: []models.CartItem{line}}, calc)
	assert.Equal(t, 1000.0, cart.Subtotal)
	assert.Equal(t, 15000.0, cart.Shipping)
	assert.Equal(t, 3040.0, cart.Tax)
	assert.Equal(t, 19040.0, cart.Total)

	served := &models.Cart{Items: []models.CartItem{line}, Subtotal: 1000, Shipping: 0, Tax: 190, Total: 1190}
	cart = Normalize(served, calc)
	assert.Equal(t, 0.0, cart.Shipping, "consistent server totals are kept")
	assert.Equal(t, 1190.0, cart.Total)

	broken := &models.Cart{Items: []models.CartItem{line}, Subtotal: 1000, Shipping: 15000, Tax: 3040, Total: 5}
	cart = Normalize(broken, calc)
	assert.Equal(t, 19040.0, cart.Total)
	assert.Equal(t, cart.Subtotal-cart.Discount+cart.Shipping+cart.Tax, cart.Total)
}
