// internal/cartapi/client.go
package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/cart-engine/internal/auth"
	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/models"
)

// Error is a non-2xx answer, or a 2xx answer whose envelope says success=false.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("cart api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("cart api %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to the remote cart API with the session's bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	limiter *rate.Limiter
}

func NewClient(cfg config.APIConfig, tokens auth.TokenSource) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// WithHTTPClient swaps the transport, for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) GetCart(ctx context.Context) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodGet, "/cart", nil)
}

func (c *Client) AddItem(ctx context.Context, req models.AddItemRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/cart/items", req)
}

func (c *Client) UpdateItem(ctx context.Context, productID string, req models.UpdateItemRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(productID), req)
}

func (c *Client) RemoveItem(ctx context.Context, productID string, req models.RemoveItemRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(productID), req)
}

func (c *Client) ClearCart(ctx context.Context) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/cart", nil)
}

func (c *Client) ApplyCoupon(ctx context.Context, req models.ApplyCouponRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/cart/coupon", req)
}

func (c *Client) UpdateShippingAddress(ctx context.Context, addr models.ShippingAddress) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/cart/shipping-address", addr)
}

func (c *Client) UpdateShippingMethod(ctx context.Context, req models.ShippingMethodRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/cart/shipping-method", req)
}

// SyncItems submits the merge queue in one additive bulk call.
func (c *Client) SyncItems(ctx context.Context, req models.SyncItemsRequest) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/cart/sync", req)
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*models.ProductSnapshot, error) {
	var product models.ProductSnapshot
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) cartCall(ctx context.Context, method, path string, body interface{}) (*models.Cart, error) {
	var cart models.Cart
	if err := c.do(ctx, method, path, body, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || (decodeErr == nil && !env.Success) {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			if env.Error != nil {
				apiErr.Code = env.Error.Code
				if env.Error.Message != "" {
					apiErr.Message = env.Error.Message
				}
			}
		}
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("Cart API call failed")
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
