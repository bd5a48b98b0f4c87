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

// ClientRequest is the payload for creating a client
type ClientRequest struct {
	Name         string             `json:"name" validate:"required"`
	Status       model.ClientStatus `json:"status" validate:"omitempty,oneof=lead prospect active inactive churned"`
	Industry     model.Industry     `json:"industry" validate:"omitempty,oneof=technology finance healthcare retail manufacturing services other"`
	Email        string             `json:"email" validate:"omitempty,email"`
	Phone        string             `json:"phone"`
	Website      string             `json:"website"`
	AddressLine1 string             `json:"address_line1"`
	AddressLine2 string             `json:"address_line2"`
	City         string             `json:"city"`
	State        string             `json:"state"`
	PostalCode   string             `json:"postal_code"`
	Country      string             `json:"country"`
	Notes        string             `json:"notes"`
	AssignedToID *string            `json:"assigned_to"`
}

// ClientUpdateRequest carries the mutable client fields for partial updates.
// Immutable fields (id, created_by, created_at) are simply absent and thus
// silently ignored if a caller sends them.
type ClientUpdateRequest struct {
	Name         *string             `json:"name"`
	Status       *model.ClientStatus `json:"status" validate:"omitempty,oneof=lead prospect active inactive churned"`
	Industry     *model.Industry     `json:"industry" validate:"omitempty,oneof=technology finance healthcare retail manufacturing services other"`
	Email        *string             `json:"email" validate:"omitempty,email"`
	Phone        *string             `json:"phone"`
	Website      *string             `json:"website"`
	AddressLine1 *string             `json:"address_line1"`
	AddressLine2 *string             `json:"address_line2"`
	City         *string             `json:"city"`
	State        *string             `json:"state"`
	PostalCode   *string             `json:"postal_code"`
	Country      *string             `json:"country"`
	Notes        *string             `json:"notes"`
	AssignedToID optionalRef         `json:"assigned_to"`
}

type clientListItem struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Status          model.ClientStatus `json:"status"`
	Industry        model.Industry     `json:"industry"`
	Email           string             `json:"email"`
	Phone           string             `json:"phone"`
	City            string             `json:"city"`
	Country         string             `json:"country"`
	AssignedTo      *string            `json:"assigned_to"`
	AssignedToEmail string             `json:"assigned_to_email,omitempty"`
	ContactCount    int                `json:"contact_count"`
	CreatedAt       time.Time          `json:"created_at"`
}

type clientDetail struct {
	model.Client
	AssignedToEmail string `json:"assigned_to_email,omitempty"`
	CreatedByEmail  string `json:"created_by_email,omitempty"`
}

var clientOrderings = map[string]string{
	"name":       "name",
	"status":     "status",
	"created_at": "created_at",
}

func clientQuery() *gorm.DB {
	return database.GetDB().Model(&model.Client{}).
		Preload("AssignedTo").
		Preload("CreatedBy").
		Preload("Contacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC, last_name ASC")
		})
}

func clientDetailResponse(cl *model.Client) clientDetail {
	out := clientDetail{Client: *cl}
	if cl.AssignedTo != nil {
		out.AssignedToEmail = cl.AssignedTo.Email
	}
	if cl.CreatedBy != nil {
		out.CreatedByEmail = cl.CreatedBy.Email
	}
	return out
}

// ListClients returns the client list projection with search, filters and ordering
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("client", "list")

	q := clientQuery()
	q = applySearch(q, c.QueryParam("search"), "name", "email", "city", "country")

	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if industry := c.QueryParam("industry"); industry != "" {
		q = q.Where("industry = ?", industry)
	}
	if mine := c.QueryParam("mine"); mine != "" {
		q = q.Where("assigned_to_id = ?", currentUserID(c))
	}

	q = applyOrdering(q, c.QueryParam("ordering"), clientOrderings, "created_at DESC")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var clients []model.Client
	if err := q.Find(&clients).Error; err != nil {
		log.Error("Failed to list clients", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve clients"})
	}

	out := make([]clientListItem, 0, len(clients))
	for i := range clients {
		cl := &clients[i]
		item := clientListItem{
			ID:           cl.ID,
			Name:         cl.Name,
			Status:       cl.Status,
			Industry:     cl.Industry,
			Email:        cl.Email,
			Phone:        cl.Phone,
			City:         cl.City,
			Country:      cl.Country,
			AssignedTo:   cl.AssignedToID,
			ContactCount: len(cl.Contacts),
			CreatedAt:    cl.CreatedAt,
		}
		if cl.AssignedTo != nil {
			item.AssignedToEmail = cl.AssignedTo.Email
		}
		out = append(out, item)
	}

	log.Info("Clients retrieved", zap.Int("count", len(out)))
	return c.JSON(http.StatusOK, out)
}

// CreateClient creates a new client owned by the caller
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("client", "create")

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	if req.AssignedToID != nil {
		var count int64
		database.GetDB().Model(&model.User{}).Where("id = ?", *req.AssignedToID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"assigned_to": "Unknown user."}})
		}
	}

	creator := currentUserID(c)
	client := model.Client{
		Name:         req.Name,
		Status:       req.Status,
		Industry:     req.Industry,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		Notes:        req.Notes,
		AssignedToID: req.AssignedToID,
		CreatedByID:  &creator,
	}
	if client.Status == "" {
		client.Status = model.ClientStatusLead
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&client).Error; err != nil {
		log.Error("Failed to create client", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create client"})
	}

	var created model.Client
	if err := clientQuery().First(&created, "clients.id = ?", client.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create client"})
	}

	log.Info("Client created", zap.String("client_id", created.ID), zap.String("name", created.Name))
	return c.JSON(http.StatusCreated, clientDetailResponse(&created))
}

// GetClient returns the full client detail including its contacts
func GetClient(c echo.Context) error {
	prometheus.RecordEntityOperation("client", "get")

	var client model.Client
	if err := clientQuery().First(&client, "clients.id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}
	return c.JSON(http.StatusOK, clientDetailResponse(&client))
}

// UpdateClient applies a partial update to a client
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("client", "update")

	var req ClientUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	if req.AssignedToID.Set {
		if req.AssignedToID.Value != nil {
			var count int64
			database.GetDB().Model(&model.User{}).Where("id = ?", *req.AssignedToID.Value).Count(&count)
			if count == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"assigned_to": "Unknown user."}})
			}
		}
		// Explicit null clears the assignment
		client.AssignedToID = req.AssignedToID.Value
	}
	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Status != nil {
		client.Status = *req.Status
	}
	if req.Industry != nil {
		client.Industry = *req.Industry
	}
	if req.Email != nil {
		client.Email = *req.Email
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Website != nil {
		client.Website = *req.Website
	}
	if req.AddressLine1 != nil {
		client.AddressLine1 = *req.AddressLine1
	}
	if req.AddressLine2 != nil {
		client.AddressLine2 = *req.AddressLine2
	}
	if req.City != nil {
		client.City = *req.City
	}
	if req.State != nil {
		client.State = *req.State
	}
	if req.PostalCode != nil {
		client.PostalCode = *req.PostalCode
	}
	if req.Country != nil {
		client.Country = *req.Country
	}
	if req.Notes != nil {
		client.Notes = *req.Notes
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&client).Error; err != nil {
		log.Error("Failed to update client", zap.String("client_id", client.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update client"})
	}

	var updated model.Client
	if err := clientQuery().First(&updated, "clients.id = ?", client.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update client"})
	}

	log.Info("Client updated", zap.String("client_id", updated.ID))
	return c.JSON(http.StatusOK, clientDetailResponse(&updated))
}

// DeleteClient removes a client and its contacts. Admin only. Rejected with a
// conflict while purchases reference the client.
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("client", "delete")
	id := c.Param("id")

	var client model.Client
	if err := database.GetDB().First(&client, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	var purchaseCount int64
	database.GetDB().Model(&model.Purchase{}).Where("client_id = ?", id).Count(&purchaseCount)
	if purchaseCount > 0 {
		log.Warn("Client delete blocked by purchases",
			zap.String("client_id", id),
			zap.Int64("purchases", purchaseCount))
		return c.JSON(http.StatusConflict, echo.Map{"error": "client is referenced by existing purchases"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&model.Contact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&client).Error
	})
	if err != nil {
		log.Error("Failed to delete client", zap.String("client_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete client"})
	}

	log.Info("Client deleted", zap.String("client_id", id), zap.String("name", client.Name))
	return c.NoContent(http.StatusNoContent)
}

// ClientStats returns client counts grouped by status
func ClientStats(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var rows []struct {
		Status string
		Count  int64
	}
	if err := database.GetDB().Model(&model.Client{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error; err != nil {
		log.Error("Failed to compute client stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}

	out := echo.Map{}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return c.JSON(http.StatusOK, out)
}
