package handler

import (
	"net/http"
	"testing"

	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchasesByProduct(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	widget := createTestProduct(t, "Widget", "10.00")
	gadget := createTestProduct(t, "Gadget", "20.00")
	client := createTestClient(t, "Buyer")

	createTestPurchase(t, widget, client, 1, "2026-01-01")
	createTestPurchase(t, gadget, client, 1, "2026-01-02")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-product/"+widget.ID, nil)
	c.SetParamNames("productID")
	c.SetParamValues(widget.ID)
	authenticate(c, user)
	require.NoError(t, PurchasesByProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, widget.ID, list[0]["product"])
}

func TestPurchasesByProductUnknown(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-product/missing", nil)
	c.SetParamNames("productID")
	c.SetParamValues("missing")
	authenticate(c, user)
	require.NoError(t, PurchasesByProduct(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchasesByCategory(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	hardware := createTestCategory(t, "Hardware")
	laptop := createTestProduct(t, "Laptop", "4000.00")
	require.NoError(t, database.GetDB().Model(laptop).Update("category_id", hardware.ID).Error)
	service := createTestProduct(t, "Support", "500.00")
	client := createTestClient(t, "Buyer")

	inCategory := createTestPurchase(t, laptop, client, 1, "2026-01-01")
	createTestPurchase(t, service, client, 1, "2026-01-02")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-category/"+hardware.ID, nil)
	c.SetParamNames("categoryID")
	c.SetParamValues(hardware.ID)
	authenticate(c, user)
	require.NoError(t, PurchasesByCategory(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, inCategory.ID, list[0]["id"])
}

func TestPurchasesByDay(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	product := createTestProduct(t, "Widget", "10.00")
	client := createTestClient(t, "Buyer")

	hit := createTestPurchase(t, product, client, 1, "2026-03-15")
	createTestPurchase(t, product, client, 1, "2026-03-16")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-day/2026-03-15", nil)
	c.SetParamNames("date")
	c.SetParamValues("2026-03-15")
	authenticate(c, user)
	require.NoError(t, PurchasesByDay(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, hit.ID, list[0]["id"])
}

func TestPurchasesByDayBadFormat(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-day/15-03-2026", nil)
	c.SetParamNames("date")
	c.SetParamValues("15-03-2026")
	authenticate(c, user)
	require.NoError(t, PurchasesByDay(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchasesByMonthAcrossYears(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	product := createTestProduct(t, "Widget", "10.00")
	client := createTestClient(t, "Buyer")

	createTestPurchase(t, product, client, 1, "2025-03-10")
	createTestPurchase(t, product, client, 1, "2026-03-20")
	createTestPurchase(t, product, client, 1, "2026-04-01")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-month/3", nil)
	c.SetParamNames("month")
	c.SetParamValues("3")
	authenticate(c, user)
	require.NoError(t, PurchasesByMonth(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// March purchases from both years
	assert.Len(t, decodeList(t, rec), 2)
}

func TestPurchasesByMonthOutOfRange(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	for _, month := range []string{"0", "13", "march"} {
		c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-month/"+month, nil)
		c.SetParamNames("month")
		c.SetParamValues(month)
		authenticate(c, user)
		require.NoError(t, PurchasesByMonth(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestPurchasesByYearMonth(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	product := createTestProduct(t, "Widget", "10.00")
	client := createTestClient(t, "Buyer")

	createTestPurchase(t, product, client, 1, "2025-03-10")
	hit := createTestPurchase(t, product, client, 1, "2026-03-20")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-month/2026/3", nil)
	c.SetParamNames("year", "month")
	c.SetParamValues("2026", "3")
	authenticate(c, user)
	require.NoError(t, PurchasesByYearMonth(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, hit.ID, list[0]["id"])
}

func TestPurchasesOverPrice(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	cheap := createTestProduct(t, "Cheap", "10.00")
	pricey := createTestProduct(t, "Pricey", "400.00")
	client := createTestClient(t, "Buyer")

	// Unit price 10 stays under the threshold no matter the quantity:
	// the filter compares the captured unit price, not the line total
	createTestPurchase(t, cheap, client, 100, "2026-01-01")
	hit := createTestPurchase(t, pricey, client, 1, "2026-01-02")

	// Lowercase currency is accepted and upcased
	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/over-price?price=100&currency=pln", nil)
	authenticate(c, user)
	require.NoError(t, PurchasesOverPrice(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, hit.ID, list[0]["id"])
}

func TestPurchasesOverPriceBoundary(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	product := createTestProduct(t, "Exact", "100.00")
	client := createTestClient(t, "Buyer")
	createTestPurchase(t, product, client, 1, "2026-01-01")

	// Strictly greater than, so an exact match is excluded
	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/over-price?price=100&currency=PLN", nil)
	authenticate(c, user)
	require.NoError(t, PurchasesOverPrice(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))

	c, rec = newRequest(t, e, http.MethodGet, "/api/purchases/over-price?price=99.99&currency=PLN", nil)
	authenticate(c, user)
	require.NoError(t, PurchasesOverPrice(c))
	assert.Len(t, decodeList(t, rec), 1)
}

func TestPurchasesOverPriceMissingParams(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/over-price", nil)
	authenticate(c, user)
	require.NoError(t, PurchasesOverPrice(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errs := decodeMap(t, rec)["errors"].(map[string]interface{})
	assert.Contains(t, errs, "price")
	assert.Contains(t, errs, "currency")
}

func TestPurchasesByCountry(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	product := createTestProduct(t, "Widget", "10.00")

	polish := createTestClient(t, "Polish Buyer")
	require.NoError(t, database.GetDB().Model(polish).Update("country", "Poland").Error)
	german := createTestClient(t, "German Buyer")
	require.NoError(t, database.GetDB().Model(german).Update("country", "Germany").Error)

	hit := createTestPurchase(t, product, polish, 1, "2026-01-01")
	createTestPurchase(t, product, german, 1, "2026-01-02")

	c, rec := newRequest(t, e, http.MethodGet, "/api/purchases/by-country/POLAND", nil)
	c.SetParamNames("country")
	c.SetParamValues("POLAND")
	authenticate(c, user)
	require.NoError(t, PurchasesByCountry(c))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, hit.ID, list[0]["id"])
}
