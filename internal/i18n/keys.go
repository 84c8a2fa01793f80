// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyInternalError = "error.internal"
	KeyRateLimited   = "error.rate_limited"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Cart
	KeyCartFetched         = "cart.fetched"
	KeyCartItemAdded       = "cart.item_added"
	KeyCartItemUpdated     = "cart.item_updated"
	KeyCartItemRemoved     = "cart.item_removed"
	KeyCartItemNotFound    = "cart.item_not_found"
	KeyCartCleared         = "cart.cleared"
	KeyCartCouponApplied   = "cart.coupon_applied"
	KeyCartCouponInvalid   = "cart.coupon_invalid"
	KeyCartShippingUpdated = "cart.shipping_updated"
	KeyCartSynced          = "cart.synced"

	// Products
	KeyProductNotFound = "product.not_found"
	KeyProductsFound   = "product.results_found"

	// Validation
	KeyValidationInvalid = "validation.invalid"
)
