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

// EmergencyContactRequest is the payload for creating an emergency contact.
// The parent employee comes from the URL, never from the body.
type EmergencyContactRequest struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Relationship string `json:"relationship"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"required"`
	IsPrimary    bool   `json:"is_primary"`
	Notes        string `json:"notes"`
}

// EmergencyContactUpdateRequest carries the mutable fields for partial updates
type EmergencyContactUpdateRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Relationship *string `json:"relationship"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone"`
	IsPrimary    *bool   `json:"is_primary"`
	Notes        *string `json:"notes"`
}

// findParentEmployee resolves the :employeeID path segment, 404 on miss
func findParentEmployee(c echo.Context) (*model.Employee, error) {
	var employee model.Employee
	if err := database.GetDB().First(&employee, "id = ?", c.Param("employeeID")).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}
	return &employee, nil
}

// ListEmergencyContacts returns an employee's emergency contacts, primary first
func ListEmergencyContacts(c echo.Context) error {
	prometheus.RecordEntityOperation("emergency_contact", "list")

	employee, err := findParentEmployee(c)
	if employee == nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var contacts []model.EmergencyContact
	if err := database.GetDB().
		Where("employee_id = ?", employee.ID).
		Order("is_primary DESC, last_name ASC").
		Find(&contacts).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve emergency contacts"})
	}
	return c.JSON(http.StatusOK, contacts)
}

// CreateEmergencyContact attaches a new emergency contact to the employee in the URL
func CreateEmergencyContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("emergency_contact", "create")

	employee, err := findParentEmployee(c)
	if employee == nil {
		return err
	}

	var req EmergencyContactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	contact := model.EmergencyContact{
		EmployeeID:   employee.ID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Relationship: req.Relationship,
		Email:        req.Email,
		Phone:        req.Phone,
		IsPrimary:    req.IsPrimary,
		Notes:        req.Notes,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&contact).Error; err != nil {
		log.Error("Failed to create emergency contact", zap.String("employee_id", employee.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create emergency contact"})
	}

	log.Info("Emergency contact created",
		zap.String("contact_id", contact.ID),
		zap.String("employee_id", employee.ID))
	return c.JSON(http.StatusCreated, contact)
}

// findEmployeeEmergencyContact scopes the lookup to the parent employee in the
// URL, so a contact id belonging to another employee reads as not found.
func findEmployeeEmergencyContact(c echo.Context) (*model.EmergencyContact, error) {
	employee, err := findParentEmployee(c)
	if employee == nil {
		return nil, err
	}
	var contact model.EmergencyContact
	if err := database.GetDB().
		Where("id = ? AND employee_id = ?", c.Param("id"), employee.ID).
		First(&contact).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "emergency contact not found"})
	}
	return &contact, nil
}

// GetEmergencyContact returns a single emergency contact of an employee
func GetEmergencyContact(c echo.Context) error {
	prometheus.RecordEntityOperation("emergency_contact", "get")

	contact, err := findEmployeeEmergencyContact(c)
	if contact == nil {
		return err
	}
	return c.JSON(http.StatusOK, contact)
}

// UpdateEmergencyContact applies a partial update to an employee's emergency contact
func UpdateEmergencyContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("emergency_contact", "update")

	contact, err := findEmployeeEmergencyContact(c)
	if contact == nil {
		return err
	}

	var req EmergencyContactUpdateRequest
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
	if req.Relationship != nil {
		contact.Relationship = *req.Relationship
	}
	if req.Email != nil {
		contact.Email = *req.Email
	}
	if req.Phone != nil {
		if *req.Phone == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"phone": "This field is required."}})
		}
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
		log.Error("Failed to update emergency contact", zap.String("contact_id", contact.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update emergency contact"})
	}

	log.Info("Emergency contact updated", zap.String("contact_id", contact.ID))
	return c.JSON(http.StatusOK, contact)
}

// DeleteEmergencyContact removes an emergency contact from an employee
func DeleteEmergencyContact(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("emergency_contact", "delete")

	contact, err := findEmployeeEmergencyContact(c)
	if contact == nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := database.GetDB().Delete(contact).Error; err != nil {
		log.Error("Failed to delete emergency contact", zap.String("contact_id", contact.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete emergency contact"})
	}

	log.Info("Emergency contact deleted", zap.String("contact_id", contact.ID))
	return c.NoContent(http.StatusNoContent)
}
