// internal/services/account_cart_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/utils"
)

// AccountCartService owns the server-side carts of authenticated users.
// Every mutation runs in a transaction and returns the repriced cart.
type AccountCartService struct {
	db          *gorm.DB
	calc        *pricing.Calculator
	maxQuantity int
	now         func() time.Time
}

func NewAccountCartService(db *gorm.DB, calc *pricing.Calculator, maxQuantity int) *AccountCartService {
	return &AccountCartService{
		db:          db,
		calc:        calc,
		maxQuantity: maxQuantity,
		now:         time.Now,
	}
}

func (s *AccountCartService) GetCart(userID string) (*models.Cart, error) {
	var cart *models.Cart
	err := s.db.Transaction(func(tx *gorm.DB) error {
		record, err := s.loadCart(tx, userID)
		if err != nil {
			return err
		}
		cart = s.price(record)
		return nil
	})
	return cart, err
}

func (s *AccountCartService) AddItem(userID string, req *models.AddItemRequest) (*models.Cart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Quantity > s.maxQuantity {
		return nil, models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		product, err := findProduct(tx, req.ProductID)
		if err != nil {
			return err
		}

		key := models.ItemKey(product.ID, req.Attributes)
		line := findLine(record, key)

		quantity := req.Quantity
		if line != nil {
			quantity += line.Quantity
		}
		if err := s.checkQuantity(product.Snapshot(), quantity); err != nil {
			return err
		}

		if line != nil {
			return updateLine(tx, line, quantity)
		}

		item := models.NewAccountCartItem(record.ID, product.Snapshot(), quantity, req.Attributes)
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		record.Items = append(record.Items, item)
		return nil
	})
}

func (s *AccountCartService) UpdateItem(userID, productID string, req *models.UpdateItemRequest) (*models.Cart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Quantity > s.maxQuantity {
		return nil, models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		line := findLine(record, models.ItemKey(productID, req.Attributes))
		if line == nil {
			return models.NewNotFoundError(models.ErrMsgItemNotInCart)
		}

		snapshot := line.ToItem().Product
		if product, err := findProduct(tx, productID); err == nil {
			snapshot = product.Snapshot()
		}
		if err := s.checkQuantity(snapshot, req.Quantity); err != nil {
			return err
		}

		return updateLine(tx, line, req.Quantity)
	})
}

func (s *AccountCartService) RemoveItem(userID, productID string, req *models.RemoveItemRequest) (*models.Cart, error) {
	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		key := models.ItemKey(productID, req.Attributes)
		for i := range record.Items {
			if record.Items[i].ItemKey != key {
				continue
			}
			if err := tx.Unscoped().Delete(&record.Items[i]).Error; err != nil {
				return fmt.Errorf("failed to remove cart item: %w", err)
			}
			record.Items = append(record.Items[:i], record.Items[i+1:]...)
			return nil
		}
		// Removing an absent line is a no-op.
		return nil
	})
}

// ClearCart drops every line and the applied coupon. Shipping choices survive.
func (s *AccountCartService) ClearCart(userID string) (*models.Cart, error) {
	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		if err := tx.Unscoped().Where("cart_id = ?", record.ID).Delete(&models.AccountCartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		record.Items = nil
		record.CouponCode = ""
		record.CouponType = ""
		record.CouponDiscount = 0
		return updateCart(tx, record, map[string]interface{}{
			"coupon_code":     "",
			"coupon_type":     "",
			"coupon_discount": 0,
		})
	})
}

func (s *AccountCartService) ApplyCoupon(userID string, req *models.ApplyCouponRequest) (*models.Cart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	code := models.NormalizeCouponCode(req.Code)

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		var coupon models.CouponRecord
		if err := tx.Where("code = ?", code).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewValidationError(models.ErrMsgCouponNotValid)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if !coupon.Usable(s.now()) {
			return models.NewValidationError(models.ErrMsgCouponNotValid)
		}

		record.CouponCode = coupon.Code
		record.CouponType = coupon.Type
		record.CouponDiscount = coupon.Discount
		return updateCart(tx, record, map[string]interface{}{
			"coupon_code":     coupon.Code,
			"coupon_type":     coupon.Type,
			"coupon_discount": coupon.Discount,
		})
	})
}

func (s *AccountCartService) UpdateShippingAddress(userID string, addr *models.ShippingAddress) (*models.Cart, error) {
	if err := validateRequest(addr); err != nil {
		return nil, err
	}

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		stored := *addr
		record.ShippingAddress = models.AddressColumn{Address: &stored}
		return updateCart(tx, record, map[string]interface{}{"shipping_address": record.ShippingAddress})
	})
}

func (s *AccountCartService) UpdateShippingMethod(userID string, req *models.ShippingMethodRequest) (*models.Cart, error) {
	req.Method = models.ShippingMethod(strings.ToUpper(strings.TrimSpace(string(req.Method))))
	if !req.Method.Valid() {
		return nil, models.NewValidationError(models.ErrMsgInvalidShipping)
	}

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		record.ShippingMethod = req.Method
		return updateCart(tx, record, map[string]interface{}{"shipping_method": req.Method})
	})
}

// SyncItems adds each queued quantity to the matching line, clamping the
// result to MaxQuantity and, for tracked products, to stock. Unknown or
// unavailable products are skipped.
func (s *AccountCartService) SyncItems(userID string, req *models.SyncItemsRequest) (*models.Cart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return s.mutate(userID, func(tx *gorm.DB, record *models.AccountCart) error {
		for _, queued := range req.Items {
			product, err := findProduct(tx, queued.ProductID)
			if err != nil {
				if models.CodeOf(err) == models.CodeNotFound {
					logrus.WithFields(logrus.Fields{
						"user_id":    userID,
						"product_id": queued.ProductID,
					}).Warn("Skipping sync item for unknown product")
					continue
				}
				return err
			}
			snapshot := product.Snapshot()

			key := models.ItemKey(product.ID, queued.Attributes)
			line := findLine(record, key)
			if line != nil {
				quantity := s.clamp(snapshot, line.Quantity+queued.Quantity)
				if quantity <= line.Quantity {
					continue
				}
				if err := updateLine(tx, line, quantity); err != nil {
					return fmt.Errorf("failed to merge cart item: %w", err)
				}
				continue
			}

			quantity := s.clamp(snapshot, queued.Quantity)
			if quantity < 1 {
				continue
			}
			item := models.NewAccountCartItem(record.ID, snapshot, quantity, queued.Attributes)
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to merge cart item: %w", err)
			}
			record.Items = append(record.Items, item)
		}
		return nil
	})
}

func (s *AccountCartService) mutate(userID string, fn func(tx *gorm.DB, record *models.AccountCart) error) (*models.Cart, error) {
	var cart *models.Cart
	err := s.db.Transaction(func(tx *gorm.DB) error {
		record, err := s.loadCart(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, record); err != nil {
			return err
		}
		cart = s.price(record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// loadCart returns the user's cart, creating an empty one on first use.
func (s *AccountCartService) loadCart(tx *gorm.DB, userID string) (*models.AccountCart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.NewUnauthorizedError(models.ErrMsgAuthRequired)
	}

	var record models.AccountCart
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Where("user_id = ?", userID).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	record = models.AccountCart{
		UserID:         userID,
		ShippingMethod: models.ShippingMethodStandard,
		TaxRate:        s.calc.DefaultTaxRate,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &record, nil
}

func (s *AccountCartService) price(record *models.AccountCart) *models.Cart {
	return s.calc.Apply(record.ToCart())
}

func (s *AccountCartService) checkQuantity(product models.ProductSnapshot, quantity int) error {
	if quantity < 1 || quantity > s.maxQuantity {
		return models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}
	if product.TrackQuantity && quantity > product.Stock {
		return models.NewStockError(models.ErrMsgInsufficientStock, product.Stock, displayName(product))
	}
	return nil
}

func (s *AccountCartService) clamp(product models.ProductSnapshot, quantity int) int {
	if quantity > s.maxQuantity {
		quantity = s.maxQuantity
	}
	if product.TrackQuantity && quantity > product.Stock {
		quantity = product.Stock
	}
	return quantity
}

func updateCart(tx *gorm.DB, record *models.AccountCart, values map[string]interface{}) error {
	if err := tx.Model(&models.AccountCart{}).Where("id = ?", record.ID).Updates(values).Error; err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

func updateLine(tx *gorm.DB, line *models.AccountCartItem, quantity int) error {
	if err := tx.Model(&models.AccountCartItem{}).Where("id = ?", line.ID).Update("quantity", quantity).Error; err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	line.Quantity = quantity
	return nil
}

func findProduct(tx *gorm.DB, productID string) (*models.Product, error) {
	var product models.Product
	err := tx.Where("id = ? AND status = ?", strings.TrimSpace(productID), models.ProductStatusActive).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(models.ErrMsgProductNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func findLine(record *models.AccountCart, key string) *models.AccountCartItem {
	for i := range record.Items {
		if record.Items[i].ItemKey == key {
			return &record.Items[i]
		}
	}
	return nil
}

// validateRequest runs the struct tags and reports the first failure as a
// VALIDATION_ERROR.
func validateRequest(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		if details := utils.GetValidationErrors(err); len(details) > 0 {
			return models.NewValidationError("%s", details[0].Message)
		}
		return models.NewValidationError("validation failed: %v", err)
	}
	return nil
}
