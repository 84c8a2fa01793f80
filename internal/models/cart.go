// internal/models/cart.go
package models

import (
	"sort"
	"strings"
)

// Cart is the aggregate root shared by the guest store, the remote API and
// the state store. Field names match the storefront's local storage layout.
type Cart struct {
	Items           []CartItem       `json:"items"`
	Subtotal        float64          `json:"subtotal"`
	Discount        float64          `json:"discount"`
	ShippingCost    float64          `json:"shippingCost"`
	Shipping        float64          `json:"shipping"`
	Tax             float64          `json:"tax"`
	Total           float64          `json:"total"`
	Coupon          *Coupon          `json:"coupon"`
	ShippingMethod  ShippingMethod   `json:"shippingMethod"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
	TaxRate         float64          `json:"taxRate"`
}

type CartItem struct {
	ProductID     string            `json:"productId"`
	Product       ProductSnapshot   `json:"product"`
	Quantity      int               `json:"quantity"`
	Price         float64           `json:"price"`
	Attributes    map[string]string `json:"attributes"`
	Discount      *float64          `json:"discount,omitempty"`
	OriginalPrice *float64          `json:"originalPrice,omitempty"`
}

// ProductSnapshot is captured when the item is added and never refreshed.
type ProductSnapshot struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Stock         int      `json:"stock"`
	TrackQuantity bool     `json:"trackQuantity"`
	Images        []string `json:"images,omitempty"`
	Category      string   `json:"category,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	Featured      bool     `json:"featured,omitempty"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"required,not_blank"`
	Line1      string `json:"line1" validate:"required,not_blank"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required,not_blank"`
	State      string `json:"state" validate:"required,not_blank"`
	PostalCode string `json:"postalCode" validate:"required,not_blank"`
	Country    string `json:"country" validate:"required,not_blank"`
	Phone      string `json:"phone" validate:"required,not_blank"`
}

// NewCart returns an empty cart with the default shipping method.
func NewCart(taxRate float64) *Cart {
	return &Cart{
		Items:          []CartItem{},
		ShippingMethod: ShippingMethodStandard,
		TaxRate:        taxRate,
	}
}

// Clone returns a deep copy so callers can mutate without sharing item slices.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	if c.Coupon != nil {
		coupon := *c.Coupon
		out.Coupon = &coupon
	}
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	return &out
}

func (i CartItem) Clone() CartItem {
	out := i
	out.Attributes = make(map[string]string, len(i.Attributes))
	for k, v := range i.Attributes {
		out.Attributes[k] = v
	}
	if i.Product.Images != nil {
		out.Product.Images = append([]string(nil), i.Product.Images...)
	}
	if i.Discount != nil {
		d := *i.Discount
		out.Discount = &d
	}
	if i.OriginalPrice != nil {
		p := *i.OriginalPrice
		out.OriginalPrice = &p
	}
	return out
}

// Key identifies the cart line.
func (i CartItem) Key() string {
	return ItemKey(i.ProductID, i.Attributes)
}

// FindItem returns the index of the line matching productID and attributes, or -1.
func (c *Cart) FindItem(productID string, attributes map[string]string) int {
	key := ItemKey(productID, attributes)
	for idx, item := range c.Items {
		if item.Key() == key {
			return idx
		}
	}
	return -1
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// NormalizeAttributes trims keys and values, lower-cases keys and drops
// empty entries. The result is never nil.
func NormalizeAttributes(attributes map[string]string) map[string]string {
	out := make(map[string]string, len(attributes))
	for k, v := range attributes {
		key := strings.ToLower(strings.TrimSpace(k))
		value := strings.TrimSpace(v)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// ItemKey builds the (productId, normalizedAttributes) identity string.
func ItemKey(productID string, attributes map[string]string) string {
	normalized := NormalizeAttributes(attributes)
	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(productID))
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(normalized[k])
	}
	return b.String()
}
