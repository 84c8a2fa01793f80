// internal/utils/pagination.go
package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams is the page window and ordering read from a list request.
// Sort is the caller's public key; it is mapped to a column by the service
// that owns the listing.
type PaginationParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Sort   string `json:"sort"`
	Order  string `json:"order"`
	Search string `json:"search"`
}

type PaginationResult struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
	Data       interface{} `json:"data"`
}

// SortField maps a public sort key to a column and its natural direction.
type SortField struct {
	Column string
	Desc   bool
}

func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	params := PaginationParams{
		Page:   page,
		Limit:  limit,
		Sort:   strings.ToLower(strings.TrimSpace(c.Query("sort"))),
		Order:  strings.ToLower(strings.TrimSpace(c.Query("order"))),
		Search: strings.TrimSpace(c.Query("search")),
	}
	params.Normalize()
	return params
}

// Normalize clamps the page window. An order other than asc or desc is
// cleared so the sort field's own direction applies.
func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > MaxPageSize {
		p.Limit = DefaultPageSize
	}
	if p.Order != "asc" && p.Order != "desc" {
		p.Order = ""
	}
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	return db.Offset(params.Offset()).Limit(params.Limit)
}

// ApplySort orders by the field registered under params.Sort, or by
// fallback when the key is unknown. Keys outside allowed never reach SQL.
func ApplySort(db *gorm.DB, params PaginationParams, allowed map[string]SortField, fallback string) *gorm.DB {
	field, ok := allowed[params.Sort]
	if !ok {
		field = allowed[fallback]
	}
	desc := field.Desc
	switch params.Order {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: field.Column}, Desc: desc})
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	pages := 0
	if params.Limit > 0 {
		pages = int((total + int64(params.Limit) - 1) / int64(params.Limit))
	}
	return PaginationResult{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: pages,
		Data:       data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
}
