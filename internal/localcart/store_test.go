// internal/localcart/store_test.go
package localcart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/storage"
)

const testKey = "cart:guest"

func newTestStore(t *testing.T) (*Store, *storage.MemoryStorage, *time.Time) {
	t.Helper()
	mem := storage.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(mem, pricing.NewCalculator(150000, 15000, 19), config.CartConfig{
		MaxQuantity: 99,
		StorageKey:  testKey,
		GuestTTL:    7 * 24 * time.Hour,
	}).WithClock(func() time.Time { return now })
	return s, mem, &now
}

func tracked(id string, price float64, stock int) models.ProductSnapshot {
	return models.ProductSnapshot{ID: id, Name: "Product " + id, Price: price, Stock: stock, TrackQuantity: true}
}

func TestLoad_Missing(t *testing.T) {
	s, _, _ := newTestStore(t)

	cart := s.Load(context.Background())
	assert.Empty(t, cart.Items)
	assert.Equal(t, models.ShippingMethodStandard, cart.ShippingMethod)
	assert.Equal(t, 19.0, cart.TaxRate)
}

func TestAddItem_SameKeyIncrements(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, tracked("A", 1000, 10), 2, map[string]string{"Size": "M", "color": "red"})
	require.NoError(t, err)
	cart, err := s.AddItem(ctx, tracked("A", 1000, 10), 3, map[string]string{"color": " red ", "size": "M"})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5000.0, cart.Subtotal)

	cart, err = s.AddItem(ctx, tracked("A", 1000, 10), 1, map[string]string{"size": "L"})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestAddItem_KeepsFirstSnapshot(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, tracked("A", 1000, 10), 2, nil)
	require.NoError(t, err)

	repriced := tracked("A", 1400, 3)
	repriced.Name = "Renamed"
	_, err = s.AddItem(ctx, repriced, 2, nil)
	assert.Equal(t, models.CodeStock, models.CodeOf(err), "the incoming stock bounds the new total")

	cart, err := s.AddItem(ctx, tracked("A", 1400, 10), 1, nil)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 1000.0, cart.Items[0].Price)
	assert.Equal(t, 1000.0, cart.Items[0].Product.Price)
	assert.Equal(t, "Product A", cart.Items[0].Product.Name)
	assert.Equal(t, 3000.0, cart.Subtotal)
}

func TestAddItem_StockAndBounds(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, tracked("A", 1000, 3), 4, nil)
	assert.Equal(t, models.CodeStock, models.CodeOf(err))

	_, err = s.AddItem(ctx, tracked("A", 1000, 3), 3, nil)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, tracked("A", 1000, 3), 1, nil)
	assert.Equal(t, models.CodeStock, models.CodeOf(err))

	_, err = s.AddItem(ctx, models.ProductSnapshot{ID: "B", Price: 10}, 100, nil)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	_, err = s.AddItem(ctx, models.ProductSnapshot{ID: " "}, 1, nil)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	cart := s.Load(ctx)
	for _, item := range cart.Items {
		if item.Product.TrackQuantity {
			assert.LessOrEqual(t, item.Quantity, item.Product.Stock)
		}
	}
}

func TestUpdateItem(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateItem(ctx, "A", 1, nil)
	assert.Equal(t, models.CodeNotFound, models.CodeOf(err))

	_, err = s.AddItem(ctx, tracked("A", 1000, 5), 1, nil)
	require.NoError(t, err)

	_, err = s.UpdateItem(ctx, "A", 6, nil)
	assert.Equal(t, models.CodeStock, models.CodeOf(err))

	cart, err := s.UpdateItem(ctx, "A", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	_, err = s.UpdateItem(ctx, "A", 0, nil)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}

func TestRemoveAndClear(t *testing.T) {
	s, mem, _ := newTestStore(t)
	ctx := context.Background()

	_, _ = s.AddItem(ctx, tracked("A", 1000, 5), 1, nil)
	_, _ = s.AddItem(ctx, tracked("B", 2000, 5), 1, nil)

	cart, err := s.RemoveItem(ctx, "A", nil)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "B", cart.Items[0].ProductID)

	cart = s.Clear(ctx)
	assert.Empty(t, cart.Items)
	_, found, _ := mem.Get(ctx, testKey)
	assert.False(t, found)
}

func TestLoad_Expired(t *testing.T) {
	s, mem, now := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddItem(ctx, tracked("A", 1000, 5), 1, nil)
	require.NoError(t, err)

	*now = now.Add(7*24*time.Hour + time.Minute)
	cart := s.Load(ctx)
	assert.Empty(t, cart.Items)

	_, found, _ := mem.Get(ctx, testKey)
	assert.False(t, found)
}

func TestLoad_Corrupt(t *testing.T) {
	s, mem, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, testKey, []byte("{not json")))
	cart := s.Load(ctx)
	assert.Empty(t, cart.Items)
}

func TestLoad_LegacyArray(t *testing.T) {
	s, mem, _ := newTestStore(t)
	ctx := context.Background()

	legacy := `[
		{"id":"A","product":{"name":"Lamp","price":500,"stock":2,"trackQuantity":true},"quantity":5,"price":500},
		{"productId":"B","quantity":1,"price":100,"attributes":{"Color":"Blue"}},
		{"productId":"B","quantity":2,"price":100,"attributes":{"color":"Blue"}},
		{"productId":"","quantity":1,"price":100}
	]`
	require.NoError(t, mem.Set(ctx, testKey, []byte(legacy)))

	cart := s.Load(ctx)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "A", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity, "clamped to stock")
	assert.Equal(t, "B", cart.Items[1].ProductID)
	assert.Equal(t, 3, cart.Items[1].Quantity, "duplicate keys folded")
	assert.Equal(t, 1300.0, cart.Subtotal)
}

func TestSaveLoad_Idempotent(t *testing.T) {
	s, mem, now := newTestStore(t)
	ctx := context.Background()

	_, _ = s.AddItem(ctx, tracked("A", 1234.5, 10), 2, map[string]string{"size": "M"})
	_, _ = s.AddItem(ctx, models.ProductSnapshot{ID: "B", Name: "Mug", Price: 800}, 3, nil)

	first, _, err := mem.Get(ctx, testKey)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	s.Save(ctx, s.Load(ctx))
	second, _, err := mem.Get(ctx, testKey)
	require.NoError(t, err)

	assert.Equal(t, stripSavedAt(t, first), stripSavedAt(t, second))
}

func stripSavedAt(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Contains(t, out, "savedAt")
	delete(out, "savedAt")
	return out
}
