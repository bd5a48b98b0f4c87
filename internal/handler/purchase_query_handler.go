package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// monthExpr returns the SQL expression extracting the month number from the
// purchase date for the active database dialect
func monthExpr(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "CAST(strftime('%m', purchases.date) AS INTEGER)"
	}
	return "EXTRACT(MONTH FROM purchases.date)"
}

// PurchasesByProduct returns purchases of one product, newest first
func PurchasesByProduct(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	var product model.Product
	if err := database.GetDB().First(&product, "id = ?", c.Param("productID")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}

	q := purchaseQuery().
		Where("product_id = ?", product.ID).
		Order("date DESC, created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByClient returns purchases made by one client, newest first
func PurchasesByClient(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", c.Param("clientID")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	q := purchaseQuery().
		Where("client_id = ?", client.ID).
		Order("date DESC, created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByCategory returns purchases of products belonging to one category
func PurchasesByCategory(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	var category model.Category
	if err := database.GetDB().First(&category, "id = ?", c.Param("categoryID")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
	}

	q := purchaseQuery().
		Select("purchases.*").
		Joins("JOIN products ON products.id = purchases.product_id").
		Where("products.category_id = ?", category.ID).
		Order("purchases.date DESC, purchases.created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByDay returns purchases made on one calendar day
func PurchasesByDay(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	day, err := parseDateParam(c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"date": "Date must use the YYYY-MM-DD format."}})
	}

	next := day.AddDate(0, 0, 1)
	q := purchaseQuery().
		Where("date >= ? AND date < ?", day, next).
		Order("created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByMonth returns purchases made in a given month across all years
func PurchasesByMonth(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"month": "Month must be a number between 1 and 12."}})
	}

	q := purchaseQuery().
		Where(monthExpr(database.GetDB())+" = ?", month).
		Order("date DESC, created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByYearMonth returns purchases made in one month of one year
func PurchasesByYearMonth(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"year": "Year must be a positive number."}})
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"month": "Month must be a number between 1 and 12."}})
	}

	start, err := parseDateParam(strconv.Itoa(year) + "-" + twoDigits(month) + "-01")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"year": "Invalid year and month."}})
	}
	end := start.AddDate(0, 1, 0)

	q := purchaseQuery().
		Where("date >= ? AND date < ?", start, end).
		Order("date DESC, created_at DESC")
	return renderPurchases(c, q)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// PurchasesOverPrice returns purchases whose captured unit price exceeds a
// threshold in a given currency. Both query parameters are required.
func PurchasesOverPrice(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	fieldErrs := echo.Map{}
	priceParam := c.QueryParam("price")
	if priceParam == "" {
		fieldErrs["price"] = "This query parameter is required."
	}
	currencyParam := strings.ToUpper(strings.TrimSpace(c.QueryParam("currency")))
	if currencyParam == "" {
		fieldErrs["currency"] = "This query parameter is required."
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrs})
	}

	price, err := decimal.NewFromString(priceParam)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"price": "Must be a valid number."}})
	}

	q := purchaseQuery().
		Where("currency = ?", currencyParam).
		Where("unit_price > ?", price).
		Order("date DESC, created_at DESC")
	return renderPurchases(c, q)
}

// PurchasesByCountry returns purchases made by clients from one country,
// matched case-insensitively
func PurchasesByCountry(c echo.Context) error {
	prometheus.RecordEntityOperation("purchase", "query")

	country := strings.TrimSpace(c.Param("country"))
	if country == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"country": "This field is required."}})
	}

	q := purchaseQuery().
		Select("purchases.*").
		Joins("JOIN clients ON clients.id = purchases.client_id").
		Where("LOWER(clients.country) = ?", strings.ToLower(country)).
		Order("purchases.date DESC, purchases.created_at DESC")
	return renderPurchases(c, q)
}
