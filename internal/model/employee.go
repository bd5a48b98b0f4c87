package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmployeeStatus describes an employee's current standing
type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "active"
	EmployeeStatusInactive   EmployeeStatus = "inactive"
	EmployeeStatusOnLeave    EmployeeStatus = "on_leave"
	EmployeeStatusTerminated EmployeeStatus = "terminated"
	EmployeeStatusIntern     EmployeeStatus = "intern"
)

// Department groups employees by business function
type Department string

const (
	DepartmentIT         Department = "it"
	DepartmentHR         Department = "hr"
	DepartmentFinance    Department = "finance"
	DepartmentSales      Department = "sales"
	DepartmentMarketing  Department = "marketing"
	DepartmentOperations Department = "operations"
	DepartmentManagement Department = "management"
	DepartmentLogistics  Department = "logistics"
	DepartmentOther      Department = "other"
)

// EmploymentType is the contractual arrangement
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentContract EmploymentType = "contract"
	EmploymentIntern   EmploymentType = "intern"
	EmploymentB2B      EmploymentType = "b2b"
)

// Employee represents a staff member
type Employee struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName      string         `json:"first_name" gorm:"type:varchar(150);not null"`
	LastName       string         `json:"last_name" gorm:"type:varchar(150);not null;index"`
	Status         EmployeeStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Department     Department     `json:"department" gorm:"type:varchar(50);default:'other';index"`
	EmploymentType EmploymentType `json:"employment_type" gorm:"type:varchar(20);default:'full_time'"`
	Position       string         `json:"position" gorm:"type:varchar(150)"`

	// Contact info
	Email string `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Phone string `json:"phone" gorm:"type:varchar(30)"`

	// Address
	AddressLine1 string `json:"address_line1" gorm:"type:varchar(255)"`
	AddressLine2 string `json:"address_line2" gorm:"type:varchar(255)"`
	City         string `json:"city" gorm:"type:varchar(100)"`
	State        string `json:"state" gorm:"type:varchar(100)"`
	PostalCode   string `json:"postal_code" gorm:"type:varchar(20)"`
	Country      string `json:"country" gorm:"type:varchar(100)"`

	// Employment
	HireDate        *time.Time       `json:"hire_date" gorm:"type:date"`
	TerminationDate *time.Time       `json:"termination_date" gorm:"type:date"`
	Salary          *decimal.Decimal `json:"salary" gorm:"type:decimal(10,2)"`

	Notes string `json:"notes" gorm:"type:text"`

	SupervisorID *string   `json:"supervisor" gorm:"type:uuid;index"`
	Supervisor   *Employee `json:"-" gorm:"foreignKey:SupervisorID;constraint:OnDelete:SET NULL"`
	CreatedByID  *string   `json:"created_by" gorm:"type:uuid"`
	CreatedBy    *User     `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`

	EmergencyContacts []EmergencyContact `json:"emergency_contacts" gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// FullName returns the employee's display name
func (e *Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// EmergencyContact is a person to notify about an employee.
// Deleted together with the employee.
type EmergencyContact struct {
	ID           string `json:"id" gorm:"type:uuid;primaryKey"`
	EmployeeID   string `json:"employee" gorm:"type:uuid;index;not null"`
	FirstName    string `json:"first_name" gorm:"type:varchar(150);not null"`
	LastName     string `json:"last_name" gorm:"type:varchar(150);not null"`
	Relationship string `json:"relationship" gorm:"type:varchar(100)"`
	Email        string `json:"email" gorm:"type:varchar(100)"`
	Phone        string `json:"phone" gorm:"type:varchar(30);not null"`
	IsPrimary    bool   `json:"is_primary" gorm:"default:false"`
	Notes        string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (c *EmergencyContact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// FullName returns the contact's display name
func (c *EmergencyContact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
