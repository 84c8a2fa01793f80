// internal/pricing/calculator_test.go
package pricing

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/javajoker/cart-engine/internal/models"
)

func item(id string, price float64, qty int) models.CartItem {
	return models.CartItem{ProductID: id, Price: price, Quantity: qty, Attributes: map[string]string{}}
}

func baseOptions() Options {
	return Options{
		ShippingMethod:        models.ShippingMethodStandard,
		TaxRate:               19,
		FreeShippingThreshold: 150000,
		BaseShippingCost:      15000,
	}
}

func TestComputeTotals_FreeShippingThreshold(t *testing.T) {
	atThreshold := ComputeTotals([]models.CartItem{item("a", 150000, 1)}, baseOptions())
	assert.Equal(t, 0.0, atThreshold.Shipping)
	assert.Equal(t, 0.0, atThreshold.ShippingCost)

	below := ComputeTotals([]models.CartItem{item("a", 149999, 1)}, baseOptions())
	assert.Equal(t, 15000.0, below.Shipping)
	assert.Equal(t, 15000.0, below.ShippingCost)
}

func TestComputeTotals_Table(t *testing.T) {
	tests := []struct {
		name   string
		items  []models.CartItem
		coupon *models.Coupon
		method models.ShippingMethod
		want   Totals
	}{
		{
			name:  "empty cart still pays shipping",
			items: nil,
			want:  Totals{ShippingCost: 15000, Shipping: 15000, Tax: 2850, Total: 17850},
		},
		{
			name:   "percentage coupon",
			items:  []models.CartItem{item("a", 10000, 2)},
			coupon: &models.Coupon{Code: "TEN", Type: models.CouponTypePercentage, Discount: 10},
			want:   Totals{Subtotal: 20000, Discount: 2000, ShippingCost: 15000, Shipping: 15000, Tax: 6270, Total: 39270},
		},
		{
			name:   "percentage above 100 is clamped",
			items:  []models.CartItem{item("a", 10000, 1)},
			coupon: &models.Coupon{Code: "ALL", Type: models.CouponTypePercentage, Discount: 250},
			want:   Totals{Subtotal: 10000, Discount: 10000, ShippingCost: 15000, Shipping: 15000, Tax: 2850, Total: 17850},
		},
		{
			name:   "fixed coupon larger than subtotal",
			items:  []models.CartItem{item("a", 5000, 1)},
			coupon: &models.Coupon{Code: "BIG", Type: models.CouponTypeFixed, Discount: 9000},
			want:   Totals{Subtotal: 5000, Discount: 5000, ShippingCost: 15000, Shipping: 15000, Tax: 2850, Total: 17850},
		},
		{
			name:   "shipping coupon",
			items:  []models.CartItem{item("a", 10000, 1)},
			coupon: &models.Coupon{Code: "SHIP", Type: models.CouponTypeShipping, Discount: 5000},
			want:   Totals{Subtotal: 10000, ShippingCost: 15000, ShippingDiscount: 5000, Shipping: 10000, Tax: 3800, Total: 23800},
		},
		{
			name:   "shipping coupon ignored when shipping is free",
			items:  []models.CartItem{item("a", 200000, 1)},
			coupon: &models.Coupon{Code: "SHIP", Type: models.CouponTypeShipping, Discount: 5000},
			want:   Totals{Subtotal: 200000, Tax: 38000, Total: 238000},
		},
		{
			name:   "express doubles the base cost",
			items:  []models.CartItem{item("a", 1000, 1)},
			method: models.ShippingMethodExpress,
			want:   Totals{Subtotal: 1000, ShippingCost: 30000, Shipping: 30000, Tax: 5890, Total: 36890},
		},
		{
			name:   "pickup ships free",
			items:  []models.CartItem{item("a", 1000, 1)},
			method: models.ShippingMethodPickup,
			want:   Totals{Subtotal: 1000, Tax: 190, Total: 1190},
		},
		{
			name:  "malformed numbers coerce to zero",
			items: []models.CartItem{item("a", math.NaN(), 2), item("b", -50, 1), item("c", 100, -3), item("d", math.Inf(1), 1)},
			want:  Totals{ShippingCost: 15000, Shipping: 15000, Tax: 2850, Total: 17850},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.Coupon = tt.coupon
			if tt.method != "" {
				opts.ShippingMethod = tt.method
			}
			got := ComputeTotals(tt.items, opts)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputeTotals() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeTotals_ShippingOverride(t *testing.T) {
	opts := baseOptions()
	override := 7000.0
	opts.ShippingCostOverride = &override

	got := ComputeTotals([]models.CartItem{item("a", 1000, 1)}, opts)
	assert.Equal(t, 7000.0, got.Shipping)

	free := ComputeTotals([]models.CartItem{item("a", 160000, 1)}, opts)
	assert.Equal(t, 0.0, free.Shipping)
}

func TestComputeTotals_TotalInvariant(t *testing.T) {
	coupons := []*models.Coupon{
		nil,
		{Code: "P", Type: models.CouponTypePercentage, Discount: 33},
		{Code: "F", Type: models.CouponTypeFixed, Discount: 12345.67},
		{Code: "S", Type: models.CouponTypeShipping, Discount: 99999},
	}
	prices := []float64{0, 0.01, 19.99, 4999.5, 74999.99, 150000}

	for _, coupon := range coupons {
		for _, p := range prices {
			for qty := 0; qty <= 3; qty++ {
				opts := baseOptions()
				opts.Coupon = coupon
				got := ComputeTotals([]models.CartItem{item("a", p, qty), item("b", p/3, 1)}, opts)

				taxable := decimal.NewFromFloat(got.Subtotal).
					Sub(decimal.NewFromFloat(got.Discount)).
					Add(decimal.NewFromFloat(got.Shipping))
				want := decimal.Max(decimal.Zero, taxable).Add(decimal.NewFromFloat(got.Tax))
				assert.True(t, want.Equal(decimal.NewFromFloat(got.Total)),
					"total %v != %v for price=%v qty=%d coupon=%v", got.Total, want, p, qty, coupon)
				assert.GreaterOrEqual(t, got.Total, 0.0)
			}
		}
	}
}

func TestCalculator_Apply(t *testing.T) {
	calc := NewCalculator(150000, 15000, 19)
	cart := &models.Cart{Items: []models.CartItem{item("a", 50000, 2)}}

	calc.Apply(cart)

	assert.Equal(t, models.ShippingMethodStandard, cart.ShippingMethod)
	assert.Equal(t, 19.0, cart.TaxRate)
	assert.Equal(t, 100000.0, cart.Subtotal)
	assert.Equal(t, 15000.0, cart.Shipping)
	assert.Equal(t, 21850.0, cart.Tax)
	assert.Equal(t, 136850.0, cart.Total)
}
