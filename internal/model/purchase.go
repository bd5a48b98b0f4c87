package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase records a client buying a product. UnitPrice, Currency and TaxRate
// are snapshotted from the product at creation time so historical records stay
// accurate even if the product price changes later. The referenced product and
// client cannot be deleted while purchases point at them.
type Purchase struct {
	ID   string    `json:"id" gorm:"type:uuid;primaryKey"`
	Date time.Time `json:"date" gorm:"type:date;index;not null"`

	ProductID string  `json:"product" gorm:"type:uuid;index;not null"`
	Product   Product `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	ClientID  string  `json:"client" gorm:"type:uuid;index;not null"`
	Client    Client  `json:"-" gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT"`

	Quantity int `json:"quantity" gorm:"not null;default:1"`

	// Price snapshot, immutable after first save
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Currency  Currency        `json:"currency" gorm:"type:varchar(3);not null"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key and defaults the date to today
func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Date.IsZero() {
		now := time.Now()
		p.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// TotalNet returns unit_price * quantity rounded to 2 decimal places
func (p *Purchase) TotalNet() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))).Round(2)
}

// TotalGross returns total_net * (1 + tax_rate/100) rounded to 2 decimal places
func (p *Purchase) TotalGross() decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(p.TaxRate.Div(decimal.NewFromInt(100)))
	return p.TotalNet().Mul(factor).Round(2)
}
