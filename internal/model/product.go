package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStatus describes whether a product is sellable
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// Currency codes accepted for pricing
type Currency string

const (
	CurrencyPLN Currency = "PLN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Category groups products
type Category struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(150);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Product represents a sellable item
type Product struct {
	ID          string        `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string        `json:"name" gorm:"type:varchar(255);not null;index"`
	SKU         *string       `json:"sku" gorm:"type:varchar(100);uniqueIndex"` // Stock Keeping Unit, optional
	Description string        `json:"description" gorm:"type:text"`
	Status      ProductStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`

	CategoryID *string   `json:"category" gorm:"type:uuid;index"`
	Category   *Category `json:"-" gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`

	// Pricing. TaxRate is a percentage, e.g. 23.00 for 23% VAT.
	Price    decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Currency Currency        `json:"currency" gorm:"type:varchar(3);default:'PLN'"`
	TaxRate  decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);default:0"`

	CreatedByID *string `json:"created_by" gorm:"type:uuid"`
	CreatedBy   *User   `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PriceWithTax returns price * (1 + tax_rate/100) rounded to 2 decimal places
func (p *Product) PriceWithTax() decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(p.TaxRate.Div(decimal.NewFromInt(100)))
	return p.Price.Mul(factor).Round(2)
}
