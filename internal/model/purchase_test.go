package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPurchaseTotals(t *testing.T) {
	p := Purchase{
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("49.99"),
		TaxRate:   decimal.RequireFromString("23"),
	}

	assert.Equal(t, "149.97", p.TotalNet().String())
	// 149.97 * 1.23 = 184.4631
	assert.Equal(t, "184.46", p.TotalGross().String())
}

func TestPurchaseTotalsZeroTax(t *testing.T) {
	p := Purchase{
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("10.005"),
	}

	// Rounding applies to the net total
	assert.Equal(t, "20.01", p.TotalNet().String())
	assert.True(t, p.TotalNet().Equal(p.TotalGross()))
}

func TestProductPriceWithTax(t *testing.T) {
	p := Product{
		Price:   decimal.RequireFromString("100.00"),
		TaxRate: decimal.RequireFromString("23"),
	}
	assert.Equal(t, "123", p.PriceWithTax().String())

	free := Product{Price: decimal.RequireFromString("0")}
	assert.True(t, free.PriceWithTax().IsZero())
}
