// internal/models/enums.go
package models

import "strings"

type CouponType string

const (
	CouponTypePercentage CouponType = "PERCENTAGE"
	CouponTypeFixed      CouponType = "FIXED"
	CouponTypeShipping   CouponType = "SHIPPING"
)

type Coupon struct {
	Code     string     `json:"code"`
	Type     CouponType `json:"type"`
	Discount float64    `json:"discount"`
}

// NormalizeCouponCode trims and upper-cases a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type ShippingMethod string

const (
	ShippingMethodStandard ShippingMethod = "STANDARD"
	ShippingMethodExpress  ShippingMethod = "EXPRESS"
	ShippingMethodPickup   ShippingMethod = "PICKUP"
)

var ShippingMethods = []ShippingMethod{
	ShippingMethodStandard,
	ShippingMethodExpress,
	ShippingMethodPickup,
}

func (m ShippingMethod) Valid() bool {
	for _, known := range ShippingMethods {
		if m == known {
			return true
		}
	}
	return false
}

type Mode string

const (
	ModeGuest         Mode = "GUEST"
	ModeAuthenticated Mode = "AUTHENTICATED"
)

type SyncStatus string

const (
	SyncStatusIdle       SyncStatus = "IDLE"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	SyncStatusCompleted  SyncStatus = "COMPLETED"
	SyncStatusFailed     SyncStatus = "FAILED"
)

// CanStart reports whether a new login sync may begin from this status.
func (s SyncStatus) CanStart() bool {
	return s != SyncStatusInProgress
}
