// internal/handlers/cart.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/cart-engine/internal/i18n"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/utils"
)

// CartHandler serves the account cart of the authenticated caller. Every
// successful answer carries the full repriced cart.
type CartHandler struct {
	cartService *services.AccountCartService
}

func NewCartHandler(cartService *services.AccountCartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cart, err := h.cartService.GetCart(userID)
	respond(c, i18n.KeyCartFetched, cart, err)
}

// POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.AddItemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.AddItem(userID, &req)
	respond(c, i18n.KeyCartItemAdded, cart, err)
}

// PUT /cart/items/:productId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.UpdateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.UpdateItem(userID, c.Param("productId"), &req)
	respond(c, i18n.KeyCartItemUpdated, cart, err)
}

// DELETE /cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	// The body is optional; an absent one removes the attribute-less line.
	var req models.RemoveItemRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.RemoveItem(userID, c.Param("productId"), &req)
	respond(c, i18n.KeyCartItemRemoved, cart, err)
}

// DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cart, err := h.cartService.ClearCart(userID)
	respond(c, i18n.KeyCartCleared, cart, err)
}

// POST /cart/coupon
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ApplyCouponRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.ApplyCoupon(userID, &req)
	respond(c, i18n.KeyCartCouponApplied, cart, err)
}

// PUT /cart/shipping-address
func (h *CartHandler) UpdateShippingAddress(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ShippingAddress
	if !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.UpdateShippingAddress(userID, &req)
	respond(c, i18n.KeyCartShippingUpdated, cart, err)
}

// PUT /cart/shipping-method
func (h *CartHandler) UpdateShippingMethod(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	cart, err := h.cartService.UpdateShippingMethod(userID, &req)
	respond(c, i18n.KeyCartShippingUpdated, cart, err)
}

// POST /cart/sync
func (h *CartHandler) SyncItems(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.SyncItemsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cart, err := h.cartService.SyncItems(userID, &req)
	respond(c, i18n.KeyCartSynced, cart, err)
}

func requireUser(c *gin.Context) (string, bool) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return "", false
	}
	return userID, true
}

func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return false
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func respond(c *gin.Context, key string, cart *models.Cart, err error) {
	if err != nil {
		utils.CartErrorResponse(c, err)
		return
	}
	utils.MessageResponse(c, key, cart)
}
