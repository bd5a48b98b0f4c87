package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/config"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/jwtutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTest wires an isolated in-memory database and a configured echo
// instance for one test
func setupTest(t *testing.T) *echo.Echo {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Client{},
		&model.Contact{},
		&model.Employee{},
		&model.EmergencyContact{},
		&model.Category{},
		&model.Product{},
		&model.Purchase{},
	))
	database.DB = db

	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:             "test-signing-key",
		ExpirationHours:        1,
		RefreshExpirationHours: 24,
	})
	InitAuthHandler(&config.Config{
		JWT: config.JWTConfig{RefreshExpirationHours: 24},
	})

	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newRequest builds an echo context for a handler call with an optional JSON body
func newRequest(t *testing.T, e *echo.Echo, method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// authenticate injects the context values the auth middleware would set
func authenticate(c echo.Context, user *model.User) {
	c.Set("user_id", user.ID)
	c.Set("email", user.Email)
	c.Set("is_staff", user.IsStaff)
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createTestUser(t *testing.T, email string, staff bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("sensible-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := model.User{
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		Password:  string(hash),
		IsActive:  true,
		IsStaff:   staff,
	}
	require.NoError(t, database.GetDB().Create(&user).Error)
	return &user
}

func createTestClient(t *testing.T, name string) *model.Client {
	t.Helper()
	client := model.Client{Name: name, Status: model.ClientStatusActive}
	require.NoError(t, database.GetDB().Create(&client).Error)
	return &client
}

func createTestCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	category := model.Category{Name: name}
	require.NoError(t, database.GetDB().Create(&category).Error)
	return &category
}

func createTestProduct(t *testing.T, name string, price string) *model.Product {
	t.Helper()
	product := model.Product{
		Name:     name,
		Status:   model.ProductStatusActive,
		Price:    decimal.RequireFromString(price),
		Currency: model.CurrencyPLN,
		TaxRate:  decimal.RequireFromString("23"),
	}
	require.NoError(t, database.GetDB().Create(&product).Error)
	return &product
}

func createTestPurchase(t *testing.T, product *model.Product, client *model.Client, quantity int, date string) *model.Purchase {
	t.Helper()
	day, err := time.Parse(dateLayout, date)
	require.NoError(t, err)
	purchase := model.Purchase{
		Date:      day,
		ProductID: product.ID,
		ClientID:  client.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Currency:  product.Currency,
		TaxRate:   product.TaxRate,
	}
	require.NoError(t, database.GetDB().Create(&purchase).Error)
	return &purchase
}

func createTestEmployee(t *testing.T, email string) *model.Employee {
	t.Helper()
	employee := model.Employee{
		FirstName:      "Jan",
		LastName:       "Kowalski",
		Email:          email,
		Status:         model.EmployeeStatusActive,
		Department:     model.DepartmentIT,
		EmploymentType: model.EmploymentFullTime,
	}
	require.NoError(t, database.GetDB().Create(&employee).Error)
	return &employee
}
