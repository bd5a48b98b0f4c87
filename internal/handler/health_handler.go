package handler

import (
	"net/http"

	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/labstack/echo/v4"
)

// Health reports service and database status
func Health(c echo.Context) error {
	dbStatus := "ok"
	db := database.GetDB()
	if db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unavailable"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}
