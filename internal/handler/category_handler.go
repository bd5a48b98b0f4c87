package handler

import (
	"net/http"
	"time"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/logger"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryRequest is the payload for creating a category
type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CategoryUpdateRequest carries the mutable category fields for partial updates
type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type categoryListItem struct {
	model.Category
	ProductCount int64 `json:"product_count"`
}

// ListCategories returns all categories with their product counts
func ListCategories(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("category", "list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var categories []model.Category
	q := database.GetDB().Model(&model.Category{})
	q = applySearch(q, c.QueryParam("search"), "name")
	if err := q.Order("name ASC").Find(&categories).Error; err != nil {
		log.Error("Failed to list categories", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve categories"})
	}

	out := make([]categoryListItem, 0, len(categories))
	for _, cat := range categories {
		var count int64
		database.GetDB().Model(&model.Product{}).Where("category_id = ?", cat.ID).Count(&count)
		out = append(out, categoryListItem{Category: cat, ProductCount: count})
	}
	return c.JSON(http.StatusOK, out)
}

// CreateCategory creates a category. Admin only.
func CreateCategory(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("category", "create")

	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var existing int64
	database.GetDB().Model(&model.Category{}).Where("name = ?", req.Name).Count(&existing)
	if existing > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "category with this name already exists"})
	}

	category := model.Category{Name: req.Name, Description: req.Description}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&category).Error; err != nil {
		log.Error("Failed to create category", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create category"})
	}

	log.Info("Category created", zap.String("category_id", category.ID), zap.String("name", category.Name))
	return c.JSON(http.StatusCreated, category)
}

// GetCategory returns a single category
func GetCategory(c echo.Context) error {
	prometheus.RecordEntityOperation("category", "get")

	var category model.Category
	if err := database.GetDB().First(&category, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
	}

	var count int64
	database.GetDB().Model(&model.Product{}).Where("category_id = ?", category.ID).Count(&count)
	return c.JSON(http.StatusOK, categoryListItem{Category: category, ProductCount: count})
}

// UpdateCategory applies a partial update to a category. Admin only.
func UpdateCategory(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("category", "update")

	var req CategoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var category model.Category
	if err := database.GetDB().First(&category, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
	}

	if req.Name != nil && *req.Name != category.Name {
		var existing int64
		database.GetDB().Model(&model.Category{}).
			Where("name = ? AND id <> ?", *req.Name, category.ID).
			Count(&existing)
		if existing > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "category with this name already exists"})
		}
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&category).Error; err != nil {
		log.Error("Failed to update category", zap.String("category_id", category.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update category"})
	}

	log.Info("Category updated", zap.String("category_id", category.ID))
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category and detaches its products. Admin only.
func DeleteCategory(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("category", "delete")
	id := c.Param("id")

	var category model.Category
	if err := database.GetDB().First(&category, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Product{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		log.Error("Failed to delete category", zap.String("category_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete category"})
	}

	log.Info("Category deleted", zap.String("category_id", id), zap.String("name", category.Name))
	return c.NoContent(http.StatusNoContent)
}
