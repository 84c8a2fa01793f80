// internal/pricing/calculator.go
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/javajoker/cart-engine/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Options are the non-item inputs of a totals computation.
type Options struct {
	Coupon                *models.Coupon
	ShippingMethod        models.ShippingMethod
	ShippingCostOverride  *float64
	TaxRate               float64
	FreeShippingThreshold float64
	BaseShippingCost      float64
}

type Totals struct {
	Subtotal         float64 `json:"subtotal"`
	Discount         float64 `json:"discount"`
	ShippingCost     float64 `json:"shippingCost"`
	ShippingDiscount float64 `json:"shippingDiscount"`
	Shipping         float64 `json:"shipping"`
	Tax              float64 `json:"tax"`
	Total            float64 `json:"total"`
}

// ComputeTotals prices a list of items. It never fails: malformed numbers
// (negative, NaN, infinite) are treated as zero.
func ComputeTotals(items []models.CartItem, opts Options) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		qty := item.Quantity
		if qty < 0 {
			qty = 0
		}
		subtotal = subtotal.Add(money(item.Price).Mul(decimal.NewFromInt(int64(qty))))
	}
	subtotal = subtotal.Round(2)

	discount := decimal.Zero
	if opts.Coupon != nil {
		couponValue := money(opts.Coupon.Discount)
		switch opts.Coupon.Type {
		case models.CouponTypePercentage:
			pct := decimal.Min(couponValue, hundred)
			discount = subtotal.Mul(pct).Div(hundred).Round(2)
		case models.CouponTypeFixed:
			discount = decimal.Min(couponValue, subtotal)
		}
	}

	shippingCost := methodCost(opts)
	freeShipping := subtotal.GreaterThanOrEqual(money(opts.FreeShippingThreshold)) && opts.FreeShippingThreshold > 0
	if freeShipping {
		shippingCost = decimal.Zero
	}

	shippingDiscount := decimal.Zero
	if opts.Coupon != nil && opts.Coupon.Type == models.CouponTypeShipping && !freeShipping {
		shippingDiscount = decimal.Min(money(opts.Coupon.Discount), shippingCost)
	}
	shipping := shippingCost.Sub(shippingDiscount)

	taxable := subtotal.Sub(discount).Add(shipping)
	tax := taxable.Mul(money(opts.TaxRate)).Div(hundred).Round(2)
	if tax.IsNegative() {
		tax = decimal.Zero
	}
	total := decimal.Max(decimal.Zero, taxable).Add(tax)

	return Totals{
		Subtotal:         subtotal.InexactFloat64(),
		Discount:         discount.InexactFloat64(),
		ShippingCost:     shippingCost.InexactFloat64(),
		ShippingDiscount: shippingDiscount.InexactFloat64(),
		Shipping:         shipping.InexactFloat64(),
		Tax:              tax.InexactFloat64(),
		Total:            total.InexactFloat64(),
	}
}

func methodCost(opts Options) decimal.Decimal {
	if opts.ShippingCostOverride != nil {
		return money(*opts.ShippingCostOverride)
	}
	base := money(opts.BaseShippingCost)
	switch opts.ShippingMethod {
	case models.ShippingMethodExpress:
		return base.Mul(decimal.NewFromInt(2))
	case models.ShippingMethodPickup:
		return decimal.Zero
	default:
		return base
	}
}

// money coerces malformed inputs to zero.
func money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Calculator binds the store-wide pricing constants.
type Calculator struct {
	FreeShippingThreshold float64
	BaseShippingCost      float64
	DefaultTaxRate        float64
}

func NewCalculator(freeShippingThreshold, baseShippingCost, defaultTaxRate float64) *Calculator {
	return &Calculator{
		FreeShippingThreshold: freeShippingThreshold,
		BaseShippingCost:      baseShippingCost,
		DefaultTaxRate:        defaultTaxRate,
	}
}

// Totals prices the cart without modifying it.
func (c *Calculator) Totals(cart *models.Cart) Totals {
	taxRate := cart.TaxRate
	if taxRate == 0 {
		taxRate = c.DefaultTaxRate
	}
	method := cart.ShippingMethod
	if method == "" {
		method = models.ShippingMethodStandard
	}
	return ComputeTotals(cart.Items, Options{
		Coupon:                cart.Coupon,
		ShippingMethod:        method,
		TaxRate:               taxRate,
		FreeShippingThreshold: c.FreeShippingThreshold,
		BaseShippingCost:      c.BaseShippingCost,
	})
}

// Apply recomputes and stores every totals field on cart.
func (c *Calculator) Apply(cart *models.Cart) *models.Cart {
	if cart.ShippingMethod == "" {
		cart.ShippingMethod = models.ShippingMethodStandard
	}
	if cart.TaxRate == 0 {
		cart.TaxRate = c.DefaultTaxRate
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	t := c.Totals(cart)
	cart.Subtotal = t.Subtotal
	cart.Discount = t.Discount
	cart.ShippingCost = t.ShippingCost
	cart.Shipping = t.Shipping
	cart.Tax = t.Tax
	cart.Total = t.Total
	return cart
}
