package handler

import (
	"net/http"
	"time"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/logger"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductRequest is the payload for creating a product
type ProductRequest struct {
	Name        string              `json:"name" validate:"required"`
	SKU         *string             `json:"sku"`
	Description string              `json:"description"`
	Status      model.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive discontinued"`
	CategoryID  *string             `json:"category"`
	Price       decimal.Decimal     `json:"price" validate:"required"`
	Currency    model.Currency      `json:"currency" validate:"omitempty,oneof=PLN USD EUR GBP"`
	TaxRate     *decimal.Decimal    `json:"tax_rate"`
}

// ProductUpdateRequest carries the mutable product fields for partial updates
type ProductUpdateRequest struct {
	Name        *string              `json:"name"`
	SKU         *string              `json:"sku"`
	Description *string              `json:"description"`
	Status      *model.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive discontinued"`
	CategoryID  *string              `json:"category"`
	Price       *decimal.Decimal     `json:"price"`
	Currency    *model.Currency      `json:"currency" validate:"omitempty,oneof=PLN USD EUR GBP"`
	TaxRate     *decimal.Decimal     `json:"tax_rate"`
}

type productResponse struct {
	model.Product
	CategoryName   string          `json:"category_name,omitempty"`
	CreatedByEmail string          `json:"created_by_email,omitempty"`
	PriceWithTax   decimal.Decimal `json:"price_with_tax"`
}

var productOrderings = map[string]string{
	"name":       "name",
	"price":      "price",
	"status":     "status",
	"created_at": "created_at",
}

func productQuery() *gorm.DB {
	return database.GetDB().Model(&model.Product{}).
		Preload("Category").
		Preload("CreatedBy")
}

func productDetailResponse(p *model.Product) productResponse {
	out := productResponse{Product: *p, PriceWithTax: p.PriceWithTax()}
	if p.Category != nil {
		out.CategoryName = p.Category.Name
	}
	if p.CreatedBy != nil {
		out.CreatedByEmail = p.CreatedBy.Email
	}
	return out
}

// validateProductPricing rejects negative price or tax rate with field errors
func validateProductPricing(price *decimal.Decimal, taxRate *decimal.Decimal) echo.Map {
	if price != nil && price.IsNegative() {
		return echo.Map{"price": "Must be zero or greater."}
	}
	if taxRate != nil && taxRate.IsNegative() {
		return echo.Map{"tax_rate": "Must be zero or greater."}
	}
	return nil
}

// ListProducts returns products with search, filters and ordering
func ListProducts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("product", "list")

	q := productQuery()
	q = applySearch(q, c.QueryParam("search"), "name", "sku", "description")

	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if category := c.QueryParam("category"); category != "" {
		q = q.Where("category_id = ?", category)
	}
	if currency := c.QueryParam("currency"); currency != "" {
		q = q.Where("currency = ?", currency)
	}
	if minPrice := c.QueryParam("min_price"); minPrice != "" {
		v, err := decimal.NewFromString(minPrice)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"min_price": "Must be a valid number."}})
		}
		q = q.Where("price >= ?", v)
	}
	if maxPrice := c.QueryParam("max_price"); maxPrice != "" {
		v, err := decimal.NewFromString(maxPrice)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"max_price": "Must be a valid number."}})
		}
		q = q.Where("price <= ?", v)
	}

	q = applyOrdering(q, c.QueryParam("ordering"), productOrderings, "name ASC")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var products []model.Product
	if err := q.Find(&products).Error; err != nil {
		log.Error("Failed to list products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve products"})
	}

	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, productDetailResponse(&products[i]))
	}

	log.Info("Products retrieved", zap.Int("count", len(out)))
	return c.JSON(http.StatusOK, out)
}

// CreateProduct creates a new product
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("product", "create")

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}
	if fieldErr := validateProductPricing(&req.Price, req.TaxRate); fieldErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErr})
	}

	// Empty SKU is stored as NULL so the unique index only applies to real values
	if req.SKU != nil && *req.SKU == "" {
		req.SKU = nil
	}
	if req.SKU != nil {
		var existing int64
		database.GetDB().Model(&model.Product{}).Where("sku = ?", *req.SKU).Count(&existing)
		if existing > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
		}
	}
	if req.CategoryID != nil {
		var count int64
		database.GetDB().Model(&model.Category{}).Where("id = ?", *req.CategoryID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"category": "Unknown category."}})
		}
	}

	creator := currentUserID(c)
	product := model.Product{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		Currency:    req.Currency,
		CreatedByID: &creator,
	}
	if req.TaxRate != nil {
		product.TaxRate = *req.TaxRate
	}
	if product.Status == "" {
		product.Status = model.ProductStatusActive
	}
	if product.Currency == "" {
		product.Currency = model.CurrencyPLN
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&product).Error; err != nil {
		log.Error("Failed to create product", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	var created model.Product
	if err := productQuery().First(&created, "products.id = ?", product.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	log.Info("Product created", zap.String("product_id", created.ID), zap.String("name", created.Name))
	return c.JSON(http.StatusCreated, productDetailResponse(&created))
}

// GetProduct returns a single product
func GetProduct(c echo.Context) error {
	prometheus.RecordEntityOperation("product", "get")

	var product model.Product
	if err := productQuery().First(&product, "products.id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	return c.JSON(http.StatusOK, productDetailResponse(&product))
}

// UpdateProduct applies a partial update to a product. Existing purchases keep
// their captured pricing regardless of what changes here.
func UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("product", "update")

	var req ProductUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}
	if fieldErr := validateProductPricing(req.Price, req.TaxRate); fieldErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErr})
	}

	var product model.Product
	if err := database.GetDB().First(&product, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}

	if req.SKU != nil {
		if *req.SKU == "" {
			product.SKU = nil
		} else {
			var existing int64
			database.GetDB().Model(&model.Product{}).
				Where("sku = ? AND id <> ?", *req.SKU, product.ID).
				Count(&existing)
			if existing > 0 {
				return c.JSON(http.StatusConflict, echo.Map{"error": "product with this SKU already exists"})
			}
			product.SKU = req.SKU
		}
	}
	if req.CategoryID != nil {
		var count int64
		database.GetDB().Model(&model.Category{}).Where("id = ?", *req.CategoryID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"category": "Unknown category."}})
		}
		product.CategoryID = req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Currency != nil {
		product.Currency = *req.Currency
	}
	if req.TaxRate != nil {
		product.TaxRate = *req.TaxRate
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&product).Error; err != nil {
		log.Error("Failed to update product", zap.String("product_id", product.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}

	var updated model.Product
	if err := productQuery().First(&updated, "products.id = ?", product.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}

	log.Info("Product updated", zap.String("product_id", updated.ID))
	return c.JSON(http.StatusOK, productDetailResponse(&updated))
}

// DeleteProduct removes a product. Admin only. Rejected with a conflict while
// purchases reference the product.
func DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("product", "delete")
	id := c.Param("id")

	var product model.Product
	if err := database.GetDB().First(&product, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}

	var purchaseCount int64
	database.GetDB().Model(&model.Purchase{}).Where("product_id = ?", id).Count(&purchaseCount)
	if purchaseCount > 0 {
		log.Warn("Product delete blocked by purchases",
			zap.String("product_id", id),
			zap.Int64("purchases", purchaseCount))
		return c.JSON(http.StatusConflict, echo.Map{"error": "product is referenced by existing purchases"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Delete(&product).Error; err != nil {
		log.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete product"})
	}

	log.Info("Product deleted", zap.String("product_id", id), zap.String("name", product.Name))
	return c.NoContent(http.StatusNoContent)
}

// ProductStats returns counts by status, per-category aggregates and a price summary
func ProductStats(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	db := database.GetDB()

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&model.Product{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&statusRows).Error; err != nil {
		log.Error("Failed to compute product stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}
	byStatus := echo.Map{}
	for _, row := range statusRows {
		byStatus[row.Status] = row.Count
	}

	// LEFT JOIN so uncategorized products still show up as a null-name bucket.
	var categoryRows []struct {
		Name     *string         `json:"name"`
		Count    int64           `json:"count"`
		AvgPrice decimal.Decimal `json:"avg_price"`
	}
	if err := db.Table("products").
		Select("categories.name AS name, COUNT(*) AS count, COALESCE(AVG(products.price), 0) AS avg_price").
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Group("categories.name").
		Order("count DESC").
		Scan(&categoryRows).Error; err != nil {
		log.Error("Failed to compute product stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}
	byCategory := make([]echo.Map, 0, len(categoryRows))
	for _, row := range categoryRows {
		byCategory = append(byCategory, echo.Map{
			"name":      row.Name,
			"count":     row.Count,
			"avg_price": row.AvgPrice.Round(2),
		})
	}

	var priceSummary struct {
		MinPrice decimal.Decimal
		MaxPrice decimal.Decimal
		AvgPrice decimal.Decimal
	}
	if err := db.Model(&model.Product{}).
		Select("COALESCE(MIN(price), 0) AS min_price, COALESCE(MAX(price), 0) AS max_price, COALESCE(AVG(price), 0) AS avg_price").
		Scan(&priceSummary).Error; err != nil {
		log.Error("Failed to compute product stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"by_status":   byStatus,
		"by_category": byCategory,
		"price_summary": echo.Map{
			"min_price": priceSummary.MinPrice.Round(2),
			"max_price": priceSummary.MaxPrice.Round(2),
			"avg_price": priceSummary.AvgPrice.Round(2),
		},
	})
}
