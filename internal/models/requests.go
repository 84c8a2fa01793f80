// internal/models/requests.go
package models

// Request bodies of the remote cart API, shared by the client and the
// reference backend.

type AddItemRequest struct {
	ProductID  string            `json:"productId" validate:"required,not_blank"`
	Quantity   int               `json:"quantity" validate:"min=1"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type UpdateItemRequest struct {
	Quantity   int               `json:"quantity" validate:"min=1"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type RemoveItemRequest struct {
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,not_blank,coupon_code"`
}

type ShippingMethodRequest struct {
	Method ShippingMethod `json:"method" validate:"required,oneof=STANDARD EXPRESS PICKUP"`
}

// SyncItem is one queued line of a guest-to-account merge. Quantity is
// added to whatever the account cart already holds.
type SyncItem struct {
	ProductID  string            `json:"productId" validate:"required,not_blank"`
	Quantity   int               `json:"quantity" validate:"min=1"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Price      float64           `json:"price,omitempty"`
}

type SyncItemsRequest struct {
	Items []SyncItem `json:"items" validate:"required,dive"`
}
