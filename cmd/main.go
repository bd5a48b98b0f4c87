package main

import (
	"github.com/Lazarus-Duchy/kodaro-cmr/internal/handler"
	"github.com/Lazarus-Duchy/kodaro-cmr/internal/middleware"
	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/config"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/jwtutil"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/logger"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("kodaro-cmr")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting CRM service...", zap.String("environment", cfg.Server.Env))

	// Initialize token signing and auth handler state
	jwtutil.Initialize(&cfg.JWT)
	handler.InitAuthHandler(cfg)

	// Initialize database
	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(
		&model.User{},
		&model.RefreshToken{},
		&model.Client{},
		&model.Contact{},
		&model.Employee{},
		&model.EmergencyContact{},
		&model.Category{},
		&model.Product{},
		&model.Purchase{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	api := e.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/refresh", handler.Refresh)
	auth.POST("/logout", handler.Logout, middleware.AuthMiddleware)

	// Everything below requires a valid access token
	protected := api.Group("", middleware.AuthMiddleware)

	// Current user
	protected.GET("/users/me", handler.Me)
	protected.PATCH("/users/me", handler.UpdateMe)
	protected.PUT("/users/me/change-password", handler.ChangePassword)

	// User administration
	users := protected.Group("/users", middleware.AdminOnly)
	users.GET("", handler.ListUsers)
	users.GET("/:id", handler.GetUser)
	users.PATCH("/:id", handler.UpdateUser)
	users.DELETE("/:id", handler.DeleteUser)

	// Clients and their contact persons
	clients := protected.Group("/clients")
	clients.GET("", handler.ListClients)
	clients.POST("", handler.CreateClient)
	clients.GET("/stats", handler.ClientStats)
	clients.GET("/:id", handler.GetClient)
	clients.PATCH("/:id", handler.UpdateClient)
	clients.DELETE("/:id", handler.DeleteClient, middleware.AdminOnly)

	contacts := protected.Group("/clients/:clientID/contacts")
	contacts.GET("", handler.ListContacts)
	contacts.POST("", handler.CreateContact)
	contacts.GET("/:id", handler.GetContact)
	contacts.PATCH("/:id", handler.UpdateContact)
	contacts.DELETE("/:id", handler.DeleteContact)

	// Employees and their emergency contacts
	employees := protected.Group("/employees")
	employees.GET("", handler.ListEmployees)
	employees.POST("", handler.CreateEmployee)
	employees.GET("/stats", handler.EmployeeStats)
	employees.GET("/:id", handler.GetEmployee)
	employees.PATCH("/:id", handler.UpdateEmployee)
	employees.DELETE("/:id", handler.DeleteEmployee, middleware.AdminOnly)

	emergencyContacts := protected.Group("/employees/:employeeID/emergency-contacts")
	emergencyContacts.GET("", handler.ListEmergencyContacts)
	emergencyContacts.POST("", handler.CreateEmergencyContact)
	emergencyContacts.GET("/:id", handler.GetEmergencyContact)
	emergencyContacts.PATCH("/:id", handler.UpdateEmergencyContact)
	emergencyContacts.DELETE("/:id", handler.DeleteEmergencyContact)

	// Product catalog
	categories := protected.Group("/categories")
	categories.GET("", handler.ListCategories)
	categories.POST("", handler.CreateCategory, middleware.AdminOnly)
	categories.GET("/:id", handler.GetCategory)
	categories.PATCH("/:id", handler.UpdateCategory, middleware.AdminOnly)
	categories.DELETE("/:id", handler.DeleteCategory, middleware.AdminOnly)

	products := protected.Group("/products")
	products.GET("", handler.ListProducts)
	products.POST("", handler.CreateProduct)
	products.GET("/stats", handler.ProductStats)
	products.GET("/:id", handler.GetProduct)
	products.PATCH("/:id", handler.UpdateProduct)
	products.DELETE("/:id", handler.DeleteProduct, middleware.AdminOnly)

	// Purchases and reporting queries
	purchases := protected.Group("/purchases")
	purchases.GET("", handler.ListPurchases)
	purchases.POST("", handler.CreatePurchase)
	purchases.GET("/stats", handler.PurchaseStats)
	purchases.GET("/by-product/:productID", handler.PurchasesByProduct)
	purchases.GET("/by-client/:clientID", handler.PurchasesByClient)
	purchases.GET("/by-category/:categoryID", handler.PurchasesByCategory)
	purchases.GET("/by-day/:date", handler.PurchasesByDay)
	purchases.GET("/by-month/:month", handler.PurchasesByMonth)
	purchases.GET("/by-month/:year/:month", handler.PurchasesByYearMonth)
	purchases.GET("/over-price", handler.PurchasesOverPrice)
	purchases.GET("/by-country/:country", handler.PurchasesByCountry)
	purchases.GET("/:id", handler.GetPurchase)
	purchases.PATCH("/:id", handler.UpdatePurchase)
	purchases.DELETE("/:id", handler.DeletePurchase, middleware.AdminOnly)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
