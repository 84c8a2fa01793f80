// internal/models/product.go
package models

import (
	"time"

	"github.com/lib/pq"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusActive    ProductStatus = "active"
	ProductStatusSoldOut   ProductStatus = "sold_out"
	ProductStatusSuspended ProductStatus = "suspended"
)

// Product is a catalog entry served by the reference backend.
type Product struct {
	ID            string         `json:"id" gorm:"primaryKey;size:64"`
	Name          string         `json:"name" gorm:"size:255;not null"`
	Description   string         `json:"description" gorm:"type:text"`
	Category      string         `json:"category" gorm:"size:100;index"`
	Price         float64        `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock         int            `json:"stock" gorm:"default:0"`
	TrackQuantity bool           `json:"track_quantity" gorm:"not null"`
	Images        pq.StringArray `json:"images" gorm:"type:text"`
	Status        ProductStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Rating        float64        `json:"rating" gorm:"type:decimal(3,2);default:0"`
	Featured      bool           `json:"featured" gorm:"default:false"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Snapshot captures the product as a cart line sees it.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Stock:         p.Stock,
		TrackQuantity: p.TrackQuantity,
		Images:        append([]string(nil), p.Images...),
		Category:      p.Category,
		Rating:        p.Rating,
		Featured:      p.Featured,
	}
}

type CouponRecord struct {
	BaseModel
	Code      string     `json:"code" gorm:"size:20;uniqueIndex;not null"`
	Type      CouponType `json:"type" gorm:"type:varchar(20);not null"`
	Discount  float64    `json:"discount" gorm:"type:decimal(12,2);not null"`
	Active    bool       `json:"active" gorm:"not null"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (CouponRecord) TableName() string {
	return "coupons"
}

func (c *CouponRecord) Coupon() *Coupon {
	return &Coupon{Code: c.Code, Type: c.Type, Discount: c.Discount}
}

// Usable reports whether the coupon can be applied at the given time.
func (c *CouponRecord) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
