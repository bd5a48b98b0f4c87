package handler

import (
	"net/http"
	"testing"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)
	category := createTestCategory(t, "Licenses")

	c, rec := newRequest(t, e, http.MethodPost, "/api/products", map[string]interface{}{
		"name":     "CRM Pro License",
		"sku":      "CRM-PRO-1Y",
		"category": category.ID,
		"price":    "1999.99",
		"tax_rate": "23",
	})
	authenticate(c, user)
	require.NoError(t, CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, "CRM Pro License", body["name"])
	// Defaults applied
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "PLN", body["currency"])
	assert.Equal(t, "Licenses", body["category_name"])
	// 1999.99 * 1.23 = 2459.9877, rounded half up
	assert.Equal(t, "2459.99", body["price_with_tax"])
}

func TestCreateProductSKUConflict(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)
	existing := createTestProduct(t, "First", "10.00")
	sku := "DUP-SKU"
	require.NoError(t, database.GetDB().Model(existing).Update("sku", sku).Error)

	c, rec := newRequest(t, e, http.MethodPost, "/api/products", map[string]interface{}{
		"name":  "Second",
		"sku":   "DUP-SKU",
		"price": "20.00",
	})
	authenticate(c, user)
	require.NoError(t, CreateProduct(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateProductsWithoutSKU(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)

	// Two products with an empty SKU coexist, empty means absent
	for _, name := range []string{"First", "Second"} {
		c, rec := newRequest(t, e, http.MethodPost, "/api/products", map[string]interface{}{
			"name":  name,
			"sku":   "",
			"price": "5.00",
		})
		authenticate(c, user)
		require.NoError(t, CreateProduct(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestCreateProductNegativePrice(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)

	c, rec := newRequest(t, e, http.MethodPost, "/api/products", map[string]interface{}{
		"name":  "Bad",
		"price": "-1.00",
	})
	authenticate(c, user)
	require.NoError(t, CreateProduct(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["errors"].(map[string]interface{}), "price")
}

func TestListProductsPriceRange(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)
	createTestProduct(t, "Cheap", "10.00")
	mid := createTestProduct(t, "Mid", "100.00")
	createTestProduct(t, "Expensive", "1000.00")

	c, rec := newRequest(t, e, http.MethodGet, "/api/products?min_price=50&max_price=500", nil)
	authenticate(c, user)
	require.NoError(t, ListProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, mid.ID, list[0]["id"])
}

func TestUpdateProductDoesNotTouchPastPurchases(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)
	product := createTestProduct(t, "Repriced", "100.00")
	client := createTestClient(t, "Buyer")
	purchase := createTestPurchase(t, product, client, 2, "2026-04-01")

	c, rec := newRequest(t, e, http.MethodPatch, "/api/products/"+product.ID, map[string]interface{}{
		"price": "250.00",
	})
	c.SetParamNames("id")
	c.SetParamValues(product.ID)
	authenticate(c, user)
	require.NoError(t, UpdateProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// The purchase keeps the unit price captured at purchase time
	var kept model.Purchase
	require.NoError(t, database.GetDB().First(&kept, "id = ?", purchase.ID).Error)
	assert.Equal(t, "100", kept.UnitPrice.String())
}

func TestDeleteProductBlockedByPurchases(t *testing.T) {
	e := setupTest(t)
	admin := createTestUser(t, "admin@example.com", true)
	product := createTestProduct(t, "Sold", "10.00")
	client := createTestClient(t, "Buyer")
	createTestPurchase(t, product, client, 1, "2026-04-01")

	c, rec := newRequest(t, e, http.MethodDelete, "/api/products/"+product.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(product.ID)
	authenticate(c, admin)
	require.NoError(t, DeleteProduct(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	database.GetDB().Model(&model.Product{}).Where("id = ?", product.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestProductStats(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)

	hardware := createTestCategory(t, "Hardware")
	laptop := createTestProduct(t, "Laptop", "4000.00")
	require.NoError(t, database.GetDB().Model(laptop).Update("category_id", hardware.ID).Error)
	mouse := createTestProduct(t, "Mouse", "100.00")
	require.NoError(t, database.GetDB().Model(mouse).Updates(map[string]interface{}{
		"category_id": hardware.ID,
		"status":      "discontinued",
	}).Error)
	// No category: counted under a null-name bucket
	createTestProduct(t, "Sticker", "10.00")

	c, rec := newRequest(t, e, http.MethodGet, "/api/products/stats", nil)
	authenticate(c, user)
	require.NoError(t, ProductStats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	byStatus := body["by_status"].(map[string]interface{})
	assert.EqualValues(t, 2, byStatus["active"])
	assert.EqualValues(t, 1, byStatus["discontinued"])

	byCategory := body["by_category"].([]interface{})
	require.Len(t, byCategory, 2)
	hw := byCategory[0].(map[string]interface{})
	assert.Equal(t, "Hardware", hw["name"])
	assert.EqualValues(t, 2, hw["count"])
	assert.Equal(t, "2050", hw["avg_price"])
	uncategorized := byCategory[1].(map[string]interface{})
	assert.Nil(t, uncategorized["name"])
	assert.EqualValues(t, 1, uncategorized["count"])
	assert.Equal(t, "10", uncategorized["avg_price"])

	summary := body["price_summary"].(map[string]interface{})
	assert.Equal(t, "10", summary["min_price"])
	assert.Equal(t, "4000", summary["max_price"])
}

func TestProductStatsEmpty(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "catalog@example.com", false)

	c, rec := newRequest(t, e, http.MethodGet, "/api/products/stats", nil)
	authenticate(c, user)
	require.NoError(t, ProductStats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Aggregates over an empty catalog come back as zeros, not nulls
	summary := decodeMap(t, rec)["price_summary"].(map[string]interface{})
	assert.Equal(t, "0", summary["min_price"])
	assert.Equal(t, "0", summary["avg_price"])
}
