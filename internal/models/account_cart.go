// internal/models/account_cart.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AccountCart is the server-owned cart of an authenticated user.
type AccountCart struct {
	BaseModel
	UserID          string            `json:"user_id" gorm:"size:64;uniqueIndex;not null"`
	CouponCode      string            `json:"coupon_code" gorm:"size:20"`
	CouponType      CouponType        `json:"coupon_type" gorm:"type:varchar(20)"`
	CouponDiscount  float64           `json:"coupon_discount" gorm:"type:decimal(12,2);default:0"`
	ShippingMethod  ShippingMethod    `json:"shipping_method" gorm:"type:varchar(20);default:'STANDARD'"`
	ShippingAddress AddressColumn     `json:"-" gorm:"type:text"`
	TaxRate         float64           `json:"tax_rate" gorm:"type:decimal(5,2)"`
	Items           []AccountCartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

type AccountCartItem struct {
	BaseModel
	CartID        uuid.UUID      `json:"cart_id" gorm:"type:uuid;not null;index"`
	ProductID     string         `json:"product_id" gorm:"size:64;not null"`
	ItemKey       string         `json:"item_key" gorm:"size:512;not null;index"`
	Attributes    StringMap      `json:"attributes" gorm:"type:text"`
	Quantity      int            `json:"quantity" gorm:"not null"`
	Price         float64        `json:"price" gorm:"type:decimal(12,2);not null"`
	Name          string         `json:"name" gorm:"size:255"`
	Stock         int            `json:"stock"`
	TrackQuantity bool           `json:"track_quantity"`
	Images        pq.StringArray `json:"images" gorm:"type:text"`
	Category      string         `json:"category" gorm:"size:100"`
	Rating        float64        `json:"rating"`
	Featured      bool           `json:"featured"`
}

// ToCart converts the stored record into the canonical Cart shape without totals.
func (a *AccountCart) ToCart() *Cart {
	cart := NewCart(a.TaxRate)
	if a.ShippingMethod != "" {
		cart.ShippingMethod = a.ShippingMethod
	}
	if a.CouponCode != "" {
		cart.Coupon = &Coupon{Code: a.CouponCode, Type: a.CouponType, Discount: a.CouponDiscount}
	}
	if a.ShippingAddress.Address != nil {
		addr := *a.ShippingAddress.Address
		cart.ShippingAddress = &addr
	}
	for _, rec := range a.Items {
		cart.Items = append(cart.Items, rec.ToItem())
	}
	return cart
}

func (r *AccountCartItem) ToItem() CartItem {
	attrs := make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	return CartItem{
		ProductID: r.ProductID,
		Product: ProductSnapshot{
			ID:            r.ProductID,
			Name:          r.Name,
			Price:         r.Price,
			Stock:         r.Stock,
			TrackQuantity: r.TrackQuantity,
			Images:        append([]string(nil), r.Images...),
			Category:      r.Category,
			Rating:        r.Rating,
			Featured:      r.Featured,
		},
		Quantity:   r.Quantity,
		Price:      r.Price,
		Attributes: attrs,
	}
}

// NewAccountCartItem builds a record for a product snapshot.
func NewAccountCartItem(cartID uuid.UUID, product ProductSnapshot, quantity int, attributes map[string]string) AccountCartItem {
	attrs := NormalizeAttributes(attributes)
	return AccountCartItem{
		CartID:        cartID,
		ProductID:     product.ID,
		ItemKey:       ItemKey(product.ID, attrs),
		Attributes:    StringMap(attrs),
		Quantity:      quantity,
		Price:         product.Price,
		Name:          product.Name,
		Stock:         product.Stock,
		TrackQuantity: product.TrackQuantity,
		Images:        pq.StringArray(product.Images),
		Category:      product.Category,
		Rating:        product.Rating,
		Featured:      product.Featured,
	}
}
