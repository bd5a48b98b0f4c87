package handler

import (
	"net/http"
	"time"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/logger"
	"github.com/Lazarus-Duchy/kodaro-cmr/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EmployeeRequest is the payload for creating an employee
type EmployeeRequest struct {
	FirstName      string               `json:"first_name" validate:"required"`
	LastName       string               `json:"last_name" validate:"required"`
	Status         model.EmployeeStatus `json:"status" validate:"omitempty,oneof=active inactive on_leave terminated intern"`
	Department     model.Department     `json:"department" validate:"omitempty,oneof=it hr finance sales marketing operations management logistics other"`
	EmploymentType model.EmploymentType `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract intern b2b"`
	Position       string               `json:"position"`
	Email          string               `json:"email" validate:"required,email"`
	Phone          string               `json:"phone"`
	AddressLine1   string               `json:"address_line1"`
	AddressLine2   string               `json:"address_line2"`
	City           string               `json:"city"`
	State          string               `json:"state"`
	PostalCode     string               `json:"postal_code"`
	Country        string               `json:"country"`
	HireDate       *string              `json:"hire_date"`
	Salary         *decimal.Decimal     `json:"salary"`
	Notes          string               `json:"notes"`
	SupervisorID   *string              `json:"supervisor"`
}

// EmployeeUpdateRequest carries the mutable employee fields for partial updates
type EmployeeUpdateRequest struct {
	FirstName       *string               `json:"first_name"`
	LastName        *string               `json:"last_name"`
	Status          *model.EmployeeStatus `json:"status" validate:"omitempty,oneof=active inactive on_leave terminated intern"`
	Department      *model.Department     `json:"department" validate:"omitempty,oneof=it hr finance sales marketing operations management logistics other"`
	EmploymentType  *model.EmploymentType `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract intern b2b"`
	Position        *string               `json:"position"`
	Email           *string               `json:"email" validate:"omitempty,email"`
	Phone           *string               `json:"phone"`
	AddressLine1    *string               `json:"address_line1"`
	AddressLine2    *string               `json:"address_line2"`
	City            *string               `json:"city"`
	State           *string               `json:"state"`
	PostalCode      *string               `json:"postal_code"`
	Country         *string               `json:"country"`
	HireDate        *string               `json:"hire_date"`
	TerminationDate *string               `json:"termination_date"`
	Salary          *decimal.Decimal      `json:"salary"`
	Notes           *string               `json:"notes"`
	SupervisorID    optionalRef           `json:"supervisor"`
}

type employeeListItem struct {
	ID             string               `json:"id"`
	FirstName      string               `json:"first_name"`
	LastName       string               `json:"last_name"`
	FullName       string               `json:"full_name"`
	Status         model.EmployeeStatus `json:"status"`
	Department     model.Department     `json:"department"`
	EmploymentType model.EmploymentType `json:"employment_type"`
	Position       string               `json:"position"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone"`
	Supervisor     *string              `json:"supervisor"`
	SupervisorName string               `json:"supervisor_name,omitempty"`
	HireDate       *string              `json:"hire_date"`
	CreatedAt      time.Time            `json:"created_at"`
}

type employeeDetail struct {
	model.Employee
	FullName       string `json:"full_name"`
	SupervisorName string `json:"supervisor_name,omitempty"`
}

var employeeOrderings = map[string]string{
	"last_name":  "last_name",
	"first_name": "first_name",
	"status":     "status",
	"department": "department",
	"hire_date":  "hire_date",
	"created_at": "created_at",
}

func employeeQuery() *gorm.DB {
	return database.GetDB().Model(&model.Employee{}).
		Preload("Supervisor").
		Preload("EmergencyContacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC, last_name ASC")
		})
}

func employeeDetailResponse(e *model.Employee) employeeDetail {
	out := employeeDetail{Employee: *e, FullName: e.FullName()}
	if e.Supervisor != nil {
		out.SupervisorName = e.Supervisor.FullName()
	}
	return out
}

// parseOptionalDate validates a YYYY-MM-DD body field, nil pointer passes through
func parseOptionalDate(value *string, field string) (*time.Time, echo.Map) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, *value, time.UTC)
	if err != nil {
		return nil, echo.Map{field: "Date must use the YYYY-MM-DD format."}
	}
	return &d, nil
}

// ListEmployees returns the employee list projection with search, filters and ordering
func ListEmployees(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("employee", "list")

	q := employeeQuery()
	q = applySearch(q, c.QueryParam("search"), "first_name", "last_name", "email", "position", "city", "country")

	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if department := c.QueryParam("department"); department != "" {
		q = q.Where("department = ?", department)
	}
	if employmentType := c.QueryParam("employment_type"); employmentType != "" {
		q = q.Where("employment_type = ?", employmentType)
	}
	if supervisor := c.QueryParam("supervisor"); supervisor != "" {
		q = q.Where("supervisor_id = ?", supervisor)
	}
	if mine := c.QueryParam("mine"); mine != "" {
		q = q.Where("created_by_id = ?", currentUserID(c))
	}

	q = applyOrdering(q, c.QueryParam("ordering"), employeeOrderings, "last_name ASC")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var employees []model.Employee
	if err := q.Find(&employees).Error; err != nil {
		log.Error("Failed to list employees", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve employees"})
	}

	out := make([]employeeListItem, 0, len(employees))
	for i := range employees {
		e := &employees[i]
		item := employeeListItem{
			ID:             e.ID,
			FirstName:      e.FirstName,
			LastName:       e.LastName,
			FullName:       e.FullName(),
			Status:         e.Status,
			Department:     e.Department,
			EmploymentType: e.EmploymentType,
			Position:       e.Position,
			Email:          e.Email,
			Phone:          e.Phone,
			Supervisor:     e.SupervisorID,
			CreatedAt:      e.CreatedAt,
		}
		if e.Supervisor != nil {
			item.SupervisorName = e.Supervisor.FullName()
		}
		if e.HireDate != nil {
			hd := formatDate(*e.HireDate)
			item.HireDate = &hd
		}
		out = append(out, item)
	}

	log.Info("Employees retrieved", zap.Int("count", len(out)))
	return c.JSON(http.StatusOK, out)
}

// CreateEmployee creates a new employee record
func CreateEmployee(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("employee", "create")

	var req EmployeeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	hireDate, fieldErr := parseOptionalDate(req.HireDate, "hire_date")
	if fieldErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErr})
	}

	var existing int64
	database.GetDB().Model(&model.Employee{}).Where("email = ?", req.Email).Count(&existing)
	if existing > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "employee with this email already exists"})
	}

	if req.SupervisorID != nil {
		var count int64
		database.GetDB().Model(&model.Employee{}).Where("id = ?", *req.SupervisorID).Count(&count)
		if count == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"supervisor": "Unknown employee."}})
		}
	}

	creator := currentUserID(c)
	employee := model.Employee{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Status:         req.Status,
		Department:     req.Department,
		EmploymentType: req.EmploymentType,
		Position:       req.Position,
		Email:          req.Email,
		Phone:          req.Phone,
		AddressLine1:   req.AddressLine1,
		AddressLine2:   req.AddressLine2,
		City:           req.City,
		State:          req.State,
		PostalCode:     req.PostalCode,
		Country:        req.Country,
		HireDate:       hireDate,
		Salary:         req.Salary,
		Notes:          req.Notes,
		SupervisorID:   req.SupervisorID,
		CreatedByID:    &creator,
	}
	if employee.Status == "" {
		employee.Status = model.EmployeeStatusActive
	}
	if employee.Department == "" {
		employee.Department = model.DepartmentOther
	}
	if employee.EmploymentType == "" {
		employee.EmploymentType = model.EmploymentFullTime
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&employee).Error; err != nil {
		log.Error("Failed to create employee", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create employee"})
	}

	var created model.Employee
	if err := employeeQuery().First(&created, "employees.id = ?", employee.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create employee"})
	}

	log.Info("Employee created",
		zap.String("employee_id", created.ID),
		zap.String("email", created.Email))
	return c.JSON(http.StatusCreated, employeeDetailResponse(&created))
}

// GetEmployee returns the full employee detail including emergency contacts
func GetEmployee(c echo.Context) error {
	prometheus.RecordEntityOperation("employee", "get")

	var employee model.Employee
	if err := employeeQuery().First(&employee, "employees.id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}
	return c.JSON(http.StatusOK, employeeDetailResponse(&employee))
}

// UpdateEmployee applies a partial update to an employee
func UpdateEmployee(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("employee", "update")

	var req EmployeeUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErrors(err)})
	}

	var employee model.Employee
	if err := database.GetDB().First(&employee, "id = ?", c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}

	if req.Email != nil && *req.Email != employee.Email {
		var existing int64
		database.GetDB().Model(&model.Employee{}).
			Where("email = ? AND id <> ?", *req.Email, employee.ID).
			Count(&existing)
		if existing > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "employee with this email already exists"})
		}
		employee.Email = *req.Email
	}
	if req.SupervisorID.Set {
		if req.SupervisorID.Value != nil {
			if *req.SupervisorID.Value == employee.ID {
				return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"supervisor": "An employee cannot supervise themselves."}})
			}
			var count int64
			database.GetDB().Model(&model.Employee{}).Where("id = ?", *req.SupervisorID.Value).Count(&count)
			if count == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"errors": echo.Map{"supervisor": "Unknown employee."}})
			}
		}
		// Explicit null clears the supervisor
		employee.SupervisorID = req.SupervisorID.Value
	}

	hireDate, fieldErr := parseOptionalDate(req.HireDate, "hire_date")
	if fieldErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErr})
	}
	if hireDate != nil {
		employee.HireDate = hireDate
	}
	terminationDate, fieldErr := parseOptionalDate(req.TerminationDate, "termination_date")
	if fieldErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": fieldErr})
	}
	if terminationDate != nil {
		employee.TerminationDate = terminationDate
	}

	if req.FirstName != nil {
		employee.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		employee.LastName = *req.LastName
	}
	if req.Status != nil {
		employee.Status = *req.Status
	}
	if req.Department != nil {
		employee.Department = *req.Department
	}
	if req.EmploymentType != nil {
		employee.EmploymentType = *req.EmploymentType
	}
	if req.Position != nil {
		employee.Position = *req.Position
	}
	if req.Phone != nil {
		employee.Phone = *req.Phone
	}
	if req.AddressLine1 != nil {
		employee.AddressLine1 = *req.AddressLine1
	}
	if req.AddressLine2 != nil {
		employee.AddressLine2 = *req.AddressLine2
	}
	if req.City != nil {
		employee.City = *req.City
	}
	if req.State != nil {
		employee.State = *req.State
	}
	if req.PostalCode != nil {
		employee.PostalCode = *req.PostalCode
	}
	if req.Country != nil {
		employee.Country = *req.Country
	}
	if req.Salary != nil {
		employee.Salary = req.Salary
	}
	if req.Notes != nil {
		employee.Notes = *req.Notes
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(&employee).Error; err != nil {
		log.Error("Failed to update employee", zap.String("employee_id", employee.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update employee"})
	}

	var updated model.Employee
	if err := employeeQuery().First(&updated, "employees.id = ?", employee.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update employee"})
	}

	log.Info("Employee updated", zap.String("employee_id", updated.ID))
	return c.JSON(http.StatusOK, employeeDetailResponse(&updated))
}

// DeleteEmployee removes an employee, cascading emergency contacts and
// detaching subordinates. Admin only.
func DeleteEmployee(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("employee", "delete")
	id := c.Param("id")

	var employee model.Employee
	if err := database.GetDB().First(&employee, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "employee not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Employee{}).
			Where("supervisor_id = ?", id).
			Update("supervisor_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ?", id).Delete(&model.EmergencyContact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&employee).Error
	})
	if err != nil {
		log.Error("Failed to delete employee", zap.String("employee_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete employee"})
	}

	log.Info("Employee deleted", zap.String("employee_id", id), zap.String("email", employee.Email))
	return c.NoContent(http.StatusNoContent)
}

// EmployeeStats returns employee counts grouped by status and department
func EmployeeStats(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())

	groupCounts := func(column string) (echo.Map, error) {
		var rows []struct {
			Key   string
			Count int64
		}
		err := database.GetDB().Model(&model.Employee{}).
			Select(column + " AS key, COUNT(*) AS count").
			Group(column).
			Order(column).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		out := echo.Map{}
		for _, row := range rows {
			out[row.Key] = row.Count
		}
		return out, nil
	}

	byStatus, err := groupCounts("status")
	if err != nil {
		log.Error("Failed to compute employee stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}
	byDepartment, err := groupCounts("department")
	if err != nil {
		log.Error("Failed to compute employee stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"by_status":     byStatus,
		"by_department": byDepartment,
	})
}
