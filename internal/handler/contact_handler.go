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
)

// ContactRequest is the payload for creating a contact under a client.
// The parent client comes from the URL, never from the body.
type ContactRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	JobTitle  string `json:"job_title"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	IsPrimary bool   `json:"is_primary"`
	Notes     string `json:"notes"`
}

// ContactUpdateRequest carries the mutable contact fields for partial updates
type ContactUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	JobTitle  *string `json:"job_title"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
	IsPrimary *bool   `json:"is_primary"`
	Notes     *string `json:"notes"`
}

// findParentClient resolves the :clientID path segment, 404 on miss
func findParentClient(c echo.Context) (*model.Client, error) {
	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", c.Param("clientID")).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}
	return &client, nil
}

// ListContacts returns a client's contacts, primary first
func ListContacts(c echo.Context) error {
	prometheus.RecordEntityOperation("contact", "list")

	client, err := findParentClient(c)
	if client == nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var contacts []model.Contact
	if err := database.GetDB().
		Where("client_id = ?", client.ID).
		Order("is_primary DESC, last_name ASC").
		Find(&contacts).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve contacts"})
	}
	return c.JSON(http.StatusOK, contacts)
}

// CreateContact attaches a new contact to the client in the URL
func CreateContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("contact", "create")

	client, err := findParentClient(c)
	if client == nil {
		return err
	}

	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	contact := model.Contact{
		ClientID:  client.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		JobTitle:  req.JobTitle,
		Email:     req.Email,
		Phone:     req.Phone,
		IsPrimary: req.IsPrimary,
		Notes:     req.Notes,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&contact).Error; err != nil {
		log.Error("Failed to create contact", zap.String("client_id", client.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create contact"})
	}

	log.Info("Contact created",
		zap.String("contact_id", contact.ID),
		zap.String("client_id", client.ID))
	return c.JSON(http.StatusCreated, contact)
}

// findClientContact looks up a contact scoped to the parent client in the URL,
// so a contact id belonging to another client reads as not found.
func findClientContact(c echo.Context) (*model.Contact, error) {
	client, err := findParentClient(c)
	if client == nil {
		return nil, err
	}
	var contact model.Contact
	if err := database.GetDB().
		Where("id = ? AND client_id = ?", c.Param("id"), client.ID).
		First(&contact).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
	}
	return &contact, nil
}

// GetContact returns a single contact of a client
func GetContact(c echo.Context) error {
	prometheus.RecordEntityOperation("contact", "get")

	contact, err := findClientContact(c)
	if contact == nil {
		return err
	}
	return c.JSON(http.StatusOK, contact)
}

// UpdateContact applies a partial update to a client's contact
func UpdateContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("contact", "update")

	contact, err := findClientContact(c)
	if contact == nil {
		return err
	}

	var req ContactUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	if req.FirstName != nil {
		contact.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		contact.LastName = *req.LastName
	}
	if req.JobTitle != nil {
		contact.JobTitle = *req.JobTitle
	}
	if req.Email != nil {
		contact.Email = *req.Email
	}
	if req.Phone != nil {
		contact.Phone = *req.Phone
	}
	if req.IsPrimary != nil {
		contact.IsPrimary = *req.IsPrimary
	}
	if req.Notes != nil {
		contact.Notes = *req.Notes
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(contact).Error; err != nil {
		log.Error("Failed to update contact", zap.String("contact_id", contact.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update contact"})
	}

	log.Info("Contact updated", zap.String("contact_id", contact.ID))
	return c.JSON(http.StatusOK, contact)
}

// DeleteContact removes a contact from a client
func DeleteContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("contact", "delete")

	contact, err := findClientContact(c)
	if contact == nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Delete(contact).Error; err != nil {
		log.Error("Failed to delete contact", zap.String("contact_id", contact.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete contact"})
	}

	log.Info("Contact deleted", zap.String("contact_id", contact.ID))
	return c.NoContent(http.StatusNoContent)
}
