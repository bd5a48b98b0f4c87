package handler

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/config"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/jwtutil"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/logger"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var refreshTokenLifetime = 168 * time.Hour

// InitAuthHandler configures token lifetimes from the application config
func InitAuthHandler(cfg *config.Config) {
	refreshTokenLifetime = time.Duration(cfg.JWT.RefreshExpirationHours) * time.Hour
}

// RegisterRequest is the payload for creating a new account
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

// LoginRequest is the payload for authenticating
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a user account and immediately issues a token pair
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("invalid_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Password != req.PasswordConfirm {
		log.Warn("Registration password confirmation mismatch", zap.String("email", req.Email))
		prometheus.RecordAuthError("password_mismatch")
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"password": "Passwords do not match."}})
	}
	if msg := validatePasswordStrength(req.Password); msg != "" {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"password": msg}})
	}

	// Check if user already exists
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	database.GetDB().Model(&model.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  string(hashedPassword),
		IsActive:  true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Issue tokens immediately on registration
	access, refresh, err := issueTokenPair(&user)
	if err != nil {
		log.Error("Failed to generate tokens", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"user":    userResponse(&user),
		"access":  access,
		"refresh": refresh,
	})
}

// Login validates credentials and issues an access + refresh token pair
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("Login for unknown user", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !user.IsActive {
		log.Warn("Login for inactive user", zap.String("email", req.Email))
		prometheus.RecordAuthError("inactive_user")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, refresh, err := issueTokenPair(&user)
	if err != nil {
		log.Error("Failed to generate tokens", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.String("email", user.Email))
	return c.JSON(http.StatusOK, echo.Map{
		"user":    userResponse(&user),
		"access":  access,
		"refresh": refresh,
	})
}

// Refresh exchanges a valid refresh token for a new access token
func Refresh(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.TokenRefreshCounter.Inc()

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil || req.Refresh == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var token model.RefreshToken
	result := database.GetDB().Preload("User").Where("token = ?", req.Refresh).First(&token)
	if result.Error != nil || !token.IsValid() {
		log.Warn("Refresh with invalid token")
		prometheus.RecordAuthError("invalid_refresh_token")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	access, err := jwtutil.GenerateToken(token.User.ID, token.User.Email, token.User.FullName(), token.User.IsStaff)
	if err != nil {
		log.Error("Failed to generate access token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Access token refreshed", zap.String("user_id", token.UserID))
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

// Logout revokes the presented refresh token so it cannot be reused.
// Failures stay generic so callers cannot probe which check failed.
func Logout(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil || req.Refresh == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	var token model.RefreshToken
	result := database.GetDB().Where("token = ?", req.Refresh).First(&token)
	if result.Error != nil || !token.IsValid() {
		prometheus.RecordAuthError("invalid_refresh_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&token).Update("revoked", true).Error; err != nil {
		log.Error("Failed to revoke refresh token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}

	prometheus.DecreaseActiveTokens()
	log.Info("User logged out", zap.String("user_id", token.UserID))
	return c.JSON(http.StatusOK, echo.Map{"detail": "Successfully logged out."})
}

// ChangePasswordRequest is the payload for updating the caller's password
type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

// ChangePassword lets the authenticated caller rotate their password
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var user model.User
	if err := database.GetDB().First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		log.Error("Authenticated user not found", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"old_password": "Current password is incorrect."}})
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"new_password": "New passwords do not match."}})
	}
	if msg := validatePasswordStrength(req.NewPassword); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"new_password": msg}})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to update password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}

	log.Info("Password changed", zap.String("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"detail": "Password updated successfully."})
}

// issueTokenPair creates a signed access token and a persisted refresh token
func issueTokenPair(user *model.User) (string, string, error) {
	access, err := jwtutil.GenerateToken(user.ID, user.Email, user.FullName(), user.IsStaff)
	if err != nil {
		return "", "", err
	}

	refresh := model.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(refreshTokenLifetime),
	}
	if err := database.GetDB().Create(&refresh).Error; err != nil {
		return "", "", err
	}

	prometheus.IncreaseActiveTokens()
	return access, refresh.Token, nil
}

// validatePasswordStrength returns a rejection message, or "" when acceptable
func validatePasswordStrength(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters long."
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return "Password cannot be entirely numeric."
	}
	return ""
}
