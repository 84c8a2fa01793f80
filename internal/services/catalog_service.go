// internal/services/catalog_service.go
package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/utils"
)

type CatalogService struct {
	db *gorm.DB
}

type ProductSearchParams struct {
	utils.PaginationParams
	Category string `json:"category,omitempty"`
	Featured *bool  `json:"featured,omitempty"`
	InStock  *bool  `json:"in_stock,omitempty"`
}

// productSorts are the sort keys accepted by SearchProducts.
var productSorts = map[string]utils.SortField{
	"name":     {Column: "name"},
	"price":    {Column: "price"},
	"rating":   {Column: "rating", Desc: true},
	"newest":   {Column: "created_at", Desc: true},
	"featured": {Column: "featured", Desc: true},
}

const defaultProductSort = "featured"

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// SearchProducts lists active products as cart snapshots.
func (s *CatalogService) SearchProducts(params *ProductSearchParams) (*utils.PaginationResult, error) {
	params.Normalize()

	query := s.db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive)

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}

	if params.Featured != nil {
		query = query.Where("featured = ?", *params.Featured)
	}

	if params.InStock != nil && *params.InStock {
		query = query.Where("track_quantity = ? OR stock > 0", false)
	}

	if params.Search != "" {
		term := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, productSorts, defaultProductSort).Order("id")
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	snapshots := make([]models.ProductSnapshot, 0, len(products))
	for i := range products {
		snapshots = append(snapshots, products[i].Snapshot())
	}

	result := utils.CreatePaginationResult(snapshots, total, params.PaginationParams)
	return &result, nil
}

// GetProduct returns an active product or a NOT_FOUND cart error.
func (s *CatalogService) GetProduct(productID string) (*models.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, models.NewValidationError(models.ErrMsgProductIDRequired)
	}

	return findProduct(s.db, productID)
}
