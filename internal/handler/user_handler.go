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
	"go.uber.org/zap"
)

// userResponse shapes a user record for API responses
func userResponse(u *model.User) echo.Map {
	return echo.Map{
		"id":          u.ID,
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"full_name":   u.FullName(),
		"is_active":   u.IsActive,
		"is_staff":    u.IsStaff,
		"date_joined": u.CreatedAt,
	}
}

// UserUpdateRequest carries the mutable profile fields
type UserUpdateRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// Me returns the authenticated caller's profile
func Me(c echo.Context) error {
	var user model.User
	if err := database.GetDB().First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, userResponse(&user))
}

// UpdateMe updates the caller's own profile fields
func UpdateMe(c echo.Context) error {
	return updateUserRecord(c, currentUserID(c))
}

// ListUsers returns all user accounts. Admin only.
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if err := database.GetDB().Order("created_at DESC").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve users"})
	}

	out := make([]echo.Map, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// GetUser returns a single user account. Admin only.
func GetUser(c echo.Context) error {
	var user model.User
	if err := database.GetDB().First(&user, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, userResponse(&user))
}

// UpdateUser updates another user's profile. Admin only.
func UpdateUser(c echo.Context) error {
	return updateUserRecord(c, c.Param("id"))
}

// DeleteUser removes a user account. Admin only.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := database.GetDB().Delete(&model.User{}, "id = ?", id)
	if result.Error != nil {
		log.Error("Failed to delete user", zap.String("user_id", id), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	log.Info("User deleted", zap.String("user_id", id))
	return c.NoContent(http.StatusNoContent)
}

func updateUserRecord(c echo.Context, id string) error {
	log := logger.FromContext(c)

	var req UserUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var user model.User
	if err := database.GetDB().First(&user, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != user.Email {
			var count int64
			database.GetDB().Model(&model.User{}).Where("email = ? AND id != ?", email, user.ID).Count(&count)
			if count > 0 {
				return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
			}
			user.Email = email
		}
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&user).Error; err != nil {
		log.Error("Failed to update user", zap.String("user_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}

	log.Info("User updated", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, userResponse(&user))
}
