// internal/router/router_test.go
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/database"
	"github.com/javajoker/cart-engine/internal/i18n"
	"github.com/javajoker/cart-engine/internal/localcart"
	"github.com/javajoker/cart-engine/internal/middleware"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/storage"
	"github.com/javajoker/cart-engine/internal/utils"
)

func testConfig(name string) *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}},
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			Path:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
			LogLevel: "silent",
		},
		JWT: config.JWTConfig{SecretKey: "router-test-secret", Issuer: "storefront"},
		API: config.APIConfig{Timeout: 5 * time.Second},
		Cart: config.CartConfig{
			MaxQuantity:     99,
			StorageKey:      "cart:guest",
			TokenKey:        "auth:token",
			GuestTTL:        7 * 24 * time.Hour,
			CacheTTL:        5 * time.Minute,
			CouponMaxLength: 20,
		},
		Pricing: config.PricingConfig{FreeShippingThreshold: 150000, BaseShippingCost: 15000, TaxRate: 19},
		I18n:    config.I18nConfig{DefaultLocale: "en"},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	cfg    *config.Config
	router *gin.Engine
	token  string
}

func (suite *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	require.NoError(suite.T(), i18n.Initialize("en"))

	name := strings.NewReplacer("/", "_").Replace(suite.T().Name())
	suite.cfg = testConfig(name)
	db, err := database.Initialize(suite.cfg.Database)
	require.NoError(suite.T(), err)
	suite.T().Cleanup(func() { database.Close(db) })
	require.NoError(suite.T(), database.RunMigrations(db))
	require.NoError(suite.T(), database.SeedCatalog(db))

	suite.router = Initialize(db, suite.cfg, nil)
	suite.token, err = utils.GenerateJWT("user-42", "ana@example.com", time.Hour)
	require.NoError(suite.T(), err)
}

func (suite *RouterTestSuite) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (suite *RouterTestSuite) cart(env envelope) models.Cart {
	var cart models.Cart
	require.NoError(suite.T(), json.Unmarshal(env.Data, &cart))
	return cart
}

func (suite *RouterTestSuite) TestHealth() {
	w, _ := suite.do(http.MethodGet, "/health", nil, "")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestCartRequiresToken() {
	w, env := suite.do(http.MethodGet, "/v1/cart", nil, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.False(suite.T(), env.Success)
	assert.Equal(suite.T(), string(models.CodeUnauthorized), env.Error.Code)

	w, _ = suite.do(http.MethodGet, "/v1/cart", nil, "not-a-jwt")
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestProducts() {
	w, env := suite.do(http.MethodGet, "/v1/products?category=home&sort=price&order=asc", nil, "")
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "2", w.Header().Get("X-Total-Count"))
	assert.Equal(suite.T(), "Found 2 products", env.Message)

	var products []models.ProductSnapshot
	require.NoError(suite.T(), json.Unmarshal(env.Data, &products))
	require.Len(suite.T(), products, 2)
	assert.Equal(suite.T(), "lamp-01", products[0].ID)

	w, env = suite.do(http.MethodGet, "/v1/products/ebook-01", nil, "")
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var product models.ProductSnapshot
	require.NoError(suite.T(), json.Unmarshal(env.Data, &product))
	assert.Equal(suite.T(), "Recipe E-Book", product.Name)

	w, env = suite.do(http.MethodGet, "/v1/products/ghost", nil, "")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), string(models.CodeNotFound), env.Error.Code)
}

func (suite *RouterTestSuite) TestCartFlow() {
	w, env := suite.do(http.MethodPost, "/v1/cart/items", models.AddItemRequest{ProductID: "lamp-01", Quantity: 2}, suite.token)
	require.Equal(suite.T(), http.StatusOK, w.Code, env.Message)
	assert.Equal(suite.T(), "Item added to cart", env.Message)
	assert.Equal(suite.T(), 90000.0, suite.cart(env).Subtotal)

	w, env = suite.do(http.MethodPut, "/v1/cart/items/lamp-01", models.UpdateItemRequest{Quantity: 20}, suite.token)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), string(models.CodeStock), env.Error.Code)

	w, env = suite.do(http.MethodPost, "/v1/cart/coupon", models.ApplyCouponRequest{Code: "SAVE10"}, suite.token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), 9000.0, suite.cart(env).Discount)

	w, env = suite.do(http.MethodPost, "/v1/cart/coupon", models.ApplyCouponRequest{Code: "bad code"}, suite.token)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), string(models.CodeValidation), env.Error.Code)

	w, env = suite.do(http.MethodPut, "/v1/cart/shipping-method", models.ShippingMethodRequest{Method: "pickup"}, suite.token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), 0.0, suite.cart(env).Shipping)

	w, env = suite.do(http.MethodDelete, "/v1/cart/items/lamp-01", nil, suite.token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Empty(suite.T(), suite.cart(env).Items)

	w, env = suite.do(http.MethodDelete, "/v1/cart", nil, suite.token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Nil(suite.T(), suite.cart(env).Coupon)
}

func (suite *RouterTestSuite) TestValidationDetails() {
	w, env := suite.do(http.MethodPost, "/v1/cart/items", map[string]interface{}{"productId": "", "quantity": 0}, suite.token)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), string(models.CodeValidation), env.Error.Code)
	assert.NotEmpty(suite.T(), env.Error.Details)
}

func (suite *RouterTestSuite) TestLocalizedMessages() {
	req, _ := http.NewRequest(http.MethodGet, "/v1/cart", nil)
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9")
	req.Header.Set("Authorization", "Bearer "+suite.token)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(suite.T(), "Carrito obtenido", env.Message)
	assert.NotEmpty(suite.T(), w.Header().Get("X-Request-ID"))

	req, _ = http.NewRequest(http.MethodGet, "/v1/products/ghost", nil)
	req.Header.Set("Accept-Language", "es")
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "Producto no encontrado", env.Error.Message)
}

// TestGuestMergeOverHTTP drives the sync engine through the real client
// against the reference backend.
func (suite *RouterTestSuite) TestGuestMergeOverHTTP() {
	server := httptest.NewServer(suite.router)
	defer server.Close()

	ctx := context.Background()
	calc := pricing.NewCalculator(150000, 15000, 19)

	apiCfg := suite.cfg.API
	apiCfg.BaseURL = server.URL + "/v1"
	client := cartapi.NewClient(apiCfg, staticToken(suite.token)).WithHTTPClient(server.Client())

	_, err := client.AddItem(ctx, models.AddItemRequest{ProductID: "chair-01", Quantity: 1})
	require.NoError(suite.T(), err)

	local := localcart.New(storage.NewMemoryStorage(), calc, suite.cfg.Cart)
	chair, err := client.GetProduct(ctx, "chair-01")
	require.NoError(suite.T(), err)
	mug, err := client.GetProduct(ctx, "mug-01")
	require.NoError(suite.T(), err)
	_, err = local.AddItem(ctx, *chair, 2, nil)
	require.NoError(suite.T(), err)
	_, err = local.AddItem(ctx, *mug, 3, map[string]string{"color": "blue"})
	require.NoError(suite.T(), err)

	res := services.NewSyncService(local, client, calc, suite.cfg.Cart.MaxQuantity).SyncGuestCartToUser(ctx)

	require.True(suite.T(), res.Success, "%v", res.Error)
	assert.Equal(suite.T(), 1, res.ConflictsResolved)
	assert.Equal(suite.T(), 1, res.MigratedCount)
	assert.Empty(suite.T(), local.Load(ctx).Items)

	account, err := client.GetCart(ctx)
	require.NoError(suite.T(), err)
	got := map[string]int{}
	for _, item := range account.Items {
		got[item.Key()] = item.Quantity
	}
	assert.Equal(suite.T(), map[string]int{"chair-01": 2, "mug-01|color=blue": 3}, got)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := middleware.NewRateLimiter(rate.Every(time.Hour), 1)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}
