// internal/services/cart_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/utils"
)

// CartRepository is the mode-routing layer the service delegates to.
type CartRepository interface {
	Mode() models.Mode
	Fetch(ctx context.Context) (*models.Cart, error)
	AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) (*models.Cart, error)
	UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) (*models.Cart, error)
	RemoveItem(ctx context.Context, productID string, attributes map[string]string) (*models.Cart, error)
	Clear(ctx context.Context) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, code string) (*models.Cart, error)
	UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) (*models.Cart, error)
	UpdateShippingMethod(ctx context.Context, method models.ShippingMethod) (*models.Cart, error)
}

// Result is what every CartService call returns. Error is nil on success.
type Result struct {
	Success bool              `json:"success"`
	Cart    *models.Cart      `json:"cart"`
	Error   *models.CartError `json:"error"`
}

func ok(cart *models.Cart) Result {
	return Result{Success: true, Cart: cart}
}

func fail(err error) Result {
	return Result{Success: false, Error: models.AsCartError(err)}
}

// CartService validates input before delegating to the repository. No error
// or panic escapes it.
type CartService struct {
	repo            CartRepository
	maxQuantity     int
	couponMaxLength int
}

func NewCartService(repo CartRepository, cfg config.CartConfig) *CartService {
	return &CartService{
		repo:            repo,
		maxQuantity:     cfg.MaxQuantity,
		couponMaxLength: cfg.CouponMaxLength,
	}
}

func (s *CartService) Mode() models.Mode {
	return s.repo.Mode()
}

func (s *CartService) GetCart(ctx context.Context) Result {
	return s.run("fetch", func() (*models.Cart, error) {
		return s.repo.Fetch(ctx)
	})
}

func (s *CartService) AddItem(ctx context.Context, product models.ProductSnapshot, quantity int, attributes map[string]string) Result {
	product.ID = strings.TrimSpace(product.ID)
	if product.ID == "" {
		return fail(models.NewValidationError(models.ErrMsgProductIDRequired))
	}
	if err := s.checkQuantity(quantity); err != nil {
		return fail(err)
	}
	if product.TrackQuantity && quantity > product.Stock {
		return fail(models.NewStockError(models.ErrMsgInsufficientStock, product.Stock, displayName(product)))
	}

	return s.run("add_item", func() (*models.Cart, error) {
		return s.repo.AddItem(ctx, product, quantity, attributes)
	})
}

func (s *CartService) UpdateItem(ctx context.Context, productID string, quantity int, attributes map[string]string) Result {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fail(models.NewValidationError(models.ErrMsgProductIDRequired))
	}
	if err := s.checkQuantity(quantity); err != nil {
		return fail(err)
	}

	return s.run("update_item", func() (*models.Cart, error) {
		return s.repo.UpdateItem(ctx, productID, quantity, attributes)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, productID string, attributes map[string]string) Result {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fail(models.NewValidationError(models.ErrMsgProductIDRequired))
	}

	return s.run("remove_item", func() (*models.Cart, error) {
		return s.repo.RemoveItem(ctx, productID, attributes)
	})
}

func (s *CartService) ClearCart(ctx context.Context) Result {
	return s.run("clear", func() (*models.Cart, error) {
		return s.repo.Clear(ctx)
	})
}

func (s *CartService) ApplyCoupon(ctx context.Context, code string) Result {
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return fail(models.NewValidationError(models.ErrMsgCouponCodeRequired))
	}
	if len(code) > s.couponMaxLength {
		return fail(models.NewValidationError(models.ErrMsgCouponCodeTooLong, s.couponMaxLength))
	}
	if err := utils.ValidateVar(code, "coupon_code"); err != nil {
		return fail(models.NewValidationError(models.ErrMsgCouponCodeInvalid))
	}

	return s.run("apply_coupon", func() (*models.Cart, error) {
		return s.repo.ApplyCoupon(ctx, code)
	})
}

func (s *CartService) UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) Result {
	if err := utils.ValidateStruct(addr); err != nil {
		return fail(addressError(err))
	}

	return s.run("update_shipping_address", func() (*models.Cart, error) {
		return s.repo.UpdateShippingAddress(ctx, trimAddress(addr))
	})
}

func (s *CartService) UpdateShippingMethod(ctx context.Context, method models.ShippingMethod) Result {
	method = models.ShippingMethod(strings.ToUpper(strings.TrimSpace(string(method))))
	if !method.Valid() {
		return fail(models.NewValidationError(models.ErrMsgInvalidShipping))
	}

	return s.run("update_shipping_method", func() (*models.Cart, error) {
		return s.repo.UpdateShippingMethod(ctx, method)
	})
}

func (s *CartService) checkQuantity(quantity int) error {
	if quantity < 1 || quantity > s.maxQuantity {
		return models.NewValidationError(models.ErrMsgQuantityRange, s.maxQuantity)
	}
	return nil
}

// run converts the repository outcome, including a panic, into a Result.
func (s *CartService) run(op string, fn func() (*models.Cart, error)) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{"op": op, "panic": r}).Error("Cart operation panicked")
			result = fail(models.NewRemoteError(models.ErrMsgUnexpectedCollaborator, fmt.Errorf("panic: %v", r)))
		}
	}()

	cart, err := fn()
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"op":   op,
			"code": models.CodeOf(err),
		}).Debug("Cart operation failed")
		return fail(err)
	}
	return ok(cart)
}

func addressError(err error) *models.CartError {
	var fields []string
	if verrs, isValidation := err.(validator.ValidationErrors); isValidation {
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
	}
	if len(fields) == 0 {
		return models.NewValidationError(models.ErrMsgAddressIncomplete)
	}
	return models.NewValidationError("%s: %s", models.ErrMsgAddressIncomplete, strings.Join(fields, ", "))
}

func trimAddress(addr models.ShippingAddress) models.ShippingAddress {
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)
	addr.Phone = strings.TrimSpace(addr.Phone)
	return addr
}

func displayName(p models.ProductSnapshot) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
