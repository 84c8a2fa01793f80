// internal/handlers/product.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/cart-engine/internal/i18n"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/utils"
)

type ProductHandler struct {
	catalogService *services.CatalogService
}

func NewProductHandler(catalogService *services.CatalogService) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	// Build search parameters
	searchParams := services.ProductSearchParams{
		PaginationParams: params,
		Category:         c.Query("category"),
	}

	if featuredStr := c.Query("featured"); featuredStr != "" {
		if featured, err := strconv.ParseBool(featuredStr); err == nil {
			searchParams.Featured = &featured
		}
	}

	if inStockStr := c.Query("in_stock"); inStockStr != "" {
		if inStock, err := strconv.ParseBool(inStockStr); err == nil {
			searchParams.InStock = &inStock
		}
	}

	// Search products
	result, err := h.catalogService.SearchProducts(&searchParams)
	if err != nil {
		utils.CartErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, i18n.KeyProductsFound, *result)
}

// GET /products/:productId
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Param("productId"))
	if err != nil {
		utils.CartErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, product.Snapshot())
}
