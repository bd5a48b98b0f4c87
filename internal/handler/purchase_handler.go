package handler

import (
	"net/http"
	"strings"
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

// PurchaseRequest is the payload for recording a purchase. Pricing is never
// accepted from the caller, it is captured from the product at creation time.
type PurchaseRequest struct {
	ProductID string `json:"product" validate:"required"`
	ClientID  string `json:"client" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,gt=0"`
	Date      string `json:"date"`
}

// PurchaseUpdateRequest carries the mutable purchase fields. The captured
// unit price, currency and tax rate stay fixed, even when the product changes.
type PurchaseUpdateRequest struct {
	ProductID *string `json:"product"`
	ClientID  *string `json:"client"`
	Quantity  *int    `json:"quantity" validate:"omitempty,gt=0"`
	Date      *string `json:"date"`
}

type purchaseResponse struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Product       string          `json:"product"`
	ProductName   string          `json:"product_name"`
	ProductSKU    *string         `json:"product_sku"`
	Client        string          `json:"client"`
	ClientName    string          `json:"client_name"`
	ClientCity    string          `json:"client_city,omitempty"`
	ClientCountry string          `json:"client_country,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      model.Currency  `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TotalNet      decimal.Decimal `json:"total_net"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Qualified column names keep the ordering unambiguous when the list query
// joins products and clients for search.
var purchaseOrderings = map[string]string{
	"date":       "purchases.date",
	"quantity":   "purchases.quantity",
	"unit_price": "purchases.unit_price",
	"created_at": "purchases.created_at",
}

func purchaseQuery() *gorm.DB {
	return database.GetDB().Model(&model.Purchase{}).
		Preload("Product").
		Preload("Client")
}

func purchaseDetailResponse(p *model.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:            p.ID,
		Date:          formatDate(p.Date),
		Product:       p.ProductID,
		ProductName:   p.Product.Name,
		ProductSKU:    p.Product.SKU,
		Client:        p.ClientID,
		ClientName:    p.Client.Name,
		ClientCity:    p.Client.City,
		ClientCountry: p.Client.Country,
		Quantity:      p.Quantity,
		UnitPrice:     p.UnitPrice,
		Currency:      p.Currency,
		TaxRate:       p.TaxRate,
		TotalNet:      p.TotalNet(),
		TotalGross:    p.TotalGross(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func purchaseListResponse(purchases []model.Purchase) []purchaseResponse {
	out := make([]purchaseResponse, 0, len(purchases))
	for i := range purchases {
		out = append(out, purchaseDetailResponse(&purchases[i]))
	}
	return out
}

// renderPurchases runs a prepared purchase query and writes the list response
func renderPurchases(c echo.Context, q *gorm.DB) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var purchases []model.Purchase
	if err := q.Find(&purchases).Error; err != nil {
		log.Error("Failed to list purchases", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve purchases"})
	}
	return c.JSON(http.StatusOK, purchaseListResponse(purchases))
}

// ListPurchases returns purchases with filters and ordering, newest first
func ListPurchases(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "list")

	q := purchaseQuery()
	if search := strings.TrimSpace(c.QueryParam("search")); search != "" {
		q = q.Select("purchases.*").
			Joins("JOIN products ON products.id = purchases.product_id").
			Joins("JOIN clients ON clients.id = purchases.client_id")
		q = applySearch(q, search, "products.name", "products.sku", "clients.name")
	}
	if product := c.QueryParam("product"); product != "" {
		q = q.Where("product_id = ?", product)
	}
	if client := c.QueryParam("client"); client != "" {
		q = q.Where("client_id = ?", client)
	}
	if currency := c.QueryParam("currency"); currency != "" {
		q = q.Where("purchases.currency = ?", currency)
	}
	if from := c.QueryParam("date_from"); from != "" {
		d, err := parseDateParam(from)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"date_from": "Date must use the YYYY-MM-DD format."}})
		}
		q = q.Where("date >= ?", d)
	}
	if to := c.QueryParam("date_to"); to != "" {
		d, err := parseDateParam(to)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"date_to": "Date must use the YYYY-MM-DD format."}})
		}
		q = q.Where("date <= ?", d)
	}
	q = applyOrdering(q, c.QueryParam("ordering"), purchaseOrderings, "purchases.date DESC, purchases.created_at DESC")

	return renderPurchases(c, q)
}

// CreatePurchase records a purchase, capturing the product's current pricing
func CreatePurchase(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("purchase", "create")

	var req PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var product model.Product
	if err := database.GetDB().First(&product, "id = ?", req.ProductID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"product": "Unknown product."}})
	}
	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", req.ClientID).Error; err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"client": "Unknown client."}})
	}

	purchase := model.Purchase{
		ProductID: product.ID,
		ClientID:  client.ID,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
		Currency:  product.Currency,
		TaxRate:   product.TaxRate,
	}
	if purchase.Quantity == 0 {
		purchase.Quantity = 1
	}
	if req.Date != "" {
		d, err := parseDateParam(req.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"date": "Date must use the YYYY-MM-DD format."}})
		}
		purchase.Date = d
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&purchase).Error; err != nil {
		log.Error("Failed to create purchase",
			zap.String("product_id", product.ID),
			zap.String("client_id", client.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create purchase"})
	}

	purchase.Product = product
	purchase.Client = client

	log.Info("Purchase created",
		zap.String("purchase_id", purchase.ID),
		zap.String("product_id", product.ID),
		zap.String("client_id", client.ID),
		zap.Int("quantity", purchase.Quantity))
	return c.JSON(http.StatusCreated, purchaseDetailResponse(&purchase))
}

// GetPurchase returns a single purchase
func GetPurchase(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "get")

	var purchase model.Purchase
	if err := purchaseQuery().First(&purchase, "purchases.id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
	}
	return c.JSON(http.StatusOK, purchaseDetailResponse(&purchase))
}

// UpdatePurchase changes a purchase's date, quantity or references. The
// captured pricing is immutable, so reassigning the product keeps the
// original unit price, currency and tax rate.
func UpdatePurchase(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("purchase", "update")

	var req PurchaseUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var purchase model.Purchase
	if err := database.GetDB().First(&purchase, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
	}

	if req.ProductID != nil {
		var count int64
		database.GetDB().Model(&model.Product{}).Where("id = ?", *req.ProductID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"product": "Unknown product."}})
		}
		purchase.ProductID = *req.ProductID
	}
	if req.ClientID != nil {
		var count int64
		database.GetDB().Model(&model.Client{}).Where("id = ?", *req.ClientID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"client": "Unknown client."}})
		}
		purchase.ClientID = *req.ClientID
	}
	if req.Quantity != nil {
		purchase.Quantity = *req.Quantity
	}
	if req.Date != nil && *req.Date != "" {
		d, err := parseDateParam(*req.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"date": "Date must use the YYYY-MM-DD format."}})
		}
		purchase.Date = d
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&purchase).Error; err != nil {
		log.Error("Failed to update purchase", zap.String("purchase_id", purchase.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update purchase"})
	}

	var updated model.Purchase
	if err := purchaseQuery().First(&updated, "purchases.id = ?", purchase.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update purchase"})
	}

	log.Info("Purchase updated", zap.String("purchase_id", updated.ID))
	return c.JSON(http.StatusOK, purchaseDetailResponse(&updated))
}

// DeletePurchase removes a purchase record. Admin only.
func DeletePurchase(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("purchase", "delete")

	var purchase model.Purchase
	if err := database.GetDB().First(&purchase, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Delete(&purchase).Error; err != nil {
		log.Error("Failed to delete purchase", zap.String("purchase_id", purchase.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete purchase"})
	}

	log.Info("Purchase deleted", zap.String("purchase_id", purchase.ID))
	return c.NoContent(http.StatusNoContent)
}

// PurchaseStats returns overall totals, per-currency breakdowns and the top
// five products and clients by purchase count
func PurchaseStats(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	db := database.GetDB()

	var totals struct {
		TotalCount    int64
		TotalQuantity int64
		TotalNet      decimal.Decimal
	}
	if err := db.Model(&model.Purchase{}).
		Select("COUNT(*) AS total_count, COALESCE(SUM(quantity), 0) AS total_quantity, COALESCE(SUM(unit_price * quantity), 0) AS total_net").
		Scan(&totals).Error; err != nil {
		log.Error("Failed to compute purchase stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}

	var currencyRows []struct {
		Currency string
		Count    int64
		TotalNet decimal.Decimal
	}
	if err := db.Model(&model.Purchase{}).
		Select("currency, COUNT(*) AS count, COALESCE(SUM(unit_price * quantity), 0) AS total_net").
		Group("currency").
		Order("currency").
		Scan(&currencyRows).Error; err != nil {
		log.Error("Failed to compute purchase stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}
	byCurrency := make([]echo.Map, 0, len(currencyRows))
	for _, row := range currencyRows {
		byCurrency = append(byCurrency, echo.Map{
			"currency":  row.Currency,
			"count":     row.Count,
			"total_net": row.TotalNet.Round(2),
		})
	}

	topEntities := func(table, fk, label string) ([]echo.Map, error) {
		var rows []struct {
			ID    string
			Name  string
			Count int64
		}
		err := db.Table("purchases").
			Select(table+".id AS id, "+table+".name AS name, COUNT(*) AS count").
			Joins("JOIN "+table+" ON "+table+".id = purchases."+fk).
			Group(table + ".id, " + table + ".name").
			Order("count DESC, name ASC").
			Limit(5).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		out := make([]echo.Map, 0, len(rows))
		for _, row := range rows {
			out = append(out, echo.Map{label: row.ID, "name": row.Name, "count": row.Count})
		}
		return out, nil
	}

	topProducts, err := topEntities("products", "product_id", "product")
	if err != nil {
		log.Error("Failed to compute purchase stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}
	topClients, err := topEntities("clients", "client_id", "client")
	if err != nil {
		log.Error("Failed to compute purchase stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_count":    totals.TotalCount,
		"total_quantity": totals.TotalQuantity,
		"total_net":      totals.TotalNet.Round(2),
		"by_currency":    byCurrency,
		"top_products":   topProducts,
		"top_clients":    topClients,
	})
}
