package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientStatus describes where a client sits in the sales lifecycle
type ClientStatus string

const (
	ClientStatusLead     ClientStatus = "lead"
	ClientStatusProspect ClientStatus = "prospect"
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusChurned  ClientStatus = "churned"
)

// Industry buckets for client segmentation
type Industry string

const (
	IndustryTechnology    Industry = "technology"
	IndustryFinance       Industry = "finance"
	IndustryHealthcare    Industry = "healthcare"
	IndustryRetail        Industry = "retail"
	IndustryManufacturing Industry = "manufacturing"
	IndustryServices      Industry = "services"
	IndustryOther         Industry = "other"
)

// Client represents a customer organization
type Client struct {
	ID       string       `json:"id" gorm:"type:uuid;primaryKey"`
	Name     string       `json:"name" gorm:"type:varchar(255);not null;index"`
	Status   ClientStatus `json:"status" gorm:"type:varchar(20);default:'lead';index"`
	Industry Industry     `json:"industry" gorm:"type:varchar(50);index"`

	// Contact info
	Email   string `json:"email" gorm:"type:varchar(100)"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Website string `json:"website" gorm:"type:varchar(255)"`

	// Address
	AddressLine1 string `json:"address_line1" gorm:"type:varchar(255)"`
	AddressLine2 string `json:"address_line2" gorm:"type:varchar(255)"`
	City         string `json:"city" gorm:"type:varchar(100)"`
	State        string `json:"state" gorm:"type:varchar(100)"`
	PostalCode   string `json:"postal_code" gorm:"type:varchar(20)"`
	Country      string `json:"country" gorm:"type:varchar(100)"`

	Notes string `json:"notes" gorm:"type:text"`

	AssignedToID *string `json:"assigned_to" gorm:"type:uuid;index"`
	AssignedTo   *User   `json:"-" gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	CreatedByID  *string `json:"created_by" gorm:"type:uuid"` // set at creation, never mutated afterward
	CreatedBy    *User   `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`

	Contacts []Contact `json:"contacts" gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Contact is a person attached to a client. Deleted together with the client.
type Contact struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey"`
	ClientID  string `json:"client" gorm:"type:uuid;index;not null"`
	FirstName string `json:"first_name" gorm:"type:varchar(150);not null"`
	LastName  string `json:"last_name" gorm:"type:varchar(150);not null"`
	JobTitle  string `json:"job_title" gorm:"type:varchar(150)"`
	Email     string `json:"email" gorm:"type:varchar(100)"`
	Phone     string `json:"phone" gorm:"type:varchar(30)"`
	IsPrimary bool   `json:"is_primary" gorm:"default:false"`
	Notes     string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// FullName returns the contact's display name
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
