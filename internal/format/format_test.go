package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	assert.Equal(t, "$1,234,568", Currency(1234567.8))
	assert.Equal(t, "$0", Currency(0))
	assert.Equal(t, "-$50", Currency(-50))
	assert.Equal(t, NA, Currency(math.NaN()))
}

func TestNumberAndPercentage(t *testing.T) {
	assert.Equal(t, "12,000", Number(12000, 0))
	assert.Equal(t, "3.14", Number(3.14159, 2))
	assert.Equal(t, "2.5%", Percentage(2.5, 1))
	assert.Equal(t, NA, Percentage(math.Inf(1), 1))
	assert.Equal(t, "5,000 sq ft", Sqft(5000))
	assert.Equal(t, "$0.13", Dollars(0.1333))
}

func TestTaxChange(t *testing.T) {
	tests := []struct {
		name             string
		current, shifted float64
		want             string
	}{
		{"increase", 1000, 1100, "↑ +$100 (+10.0%)"},
		{"decrease", 1000, 750, "↓ $250 (-25.0%)"},
		{"unchanged", 1000, 1000, "No change"},
		{"no current taxes", 0, 100, "N/A (no current taxes)"},
		{"missing", math.NaN(), 100, NA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TaxChange(tt.current, tt.shifted))
		})
	}
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "123 N Main St Unit 4", Address(AddressParts{
		HouseNumber: "123", StreetDir: "N", StreetName: "Main", StreetType: "St", Unit: "4",
	}))
	assert.Equal(t, "9 Elm", Address(AddressParts{HouseNumber: "9", StreetDir: " ", StreetName: "Elm"}))
	assert.Equal(t, NA, Address(AddressParts{}))
}
