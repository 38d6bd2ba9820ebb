// Package format turns raw numbers into display strings. Every function
// renders a missing value (NaN or Inf) as "N/A".
package format

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NA is the placeholder for missing values.
const NA = "N/A"

var printer = message.NewPrinter(language.English)

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Currency formats v as whole dollars with thousands separators.
func Currency(v float64) string {
	if missing(v) {
		return NA
	}
	if v < 0 {
		return "-" + printer.Sprintf("$%.0f", -v)
	}
	return printer.Sprintf("$%.0f", v)
}

// Dollars formats v as dollars with two decimals, for per-sqft values.
func Dollars(v float64) string {
	if missing(v) {
		return NA
	}
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// Percentage formats v, already scaled to 0-100, with the given decimals.
func Percentage(v float64, decimals int) string {
	if missing(v) {
		return NA
	}
	return printer.Sprintf(verb(decimals)+"%%", v)
}

// Number formats v with thousands separators and the given decimals.
func Number(v float64, decimals int) string {
	if missing(v) {
		return NA
	}
	return printer.Sprintf(verb(decimals), v)
}

// verb builds a fixed-precision float verb such as "%.2f".
func verb(decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return "%." + strconv.Itoa(decimals) + "f"
}

// Sqft formats a lot size.
func Sqft(v float64) string {
	if missing(v) {
		return NA
	}
	return Number(v, 0) + " sq ft"
}

// TaxChange describes moving from current to shifted taxes, e.g.
// "↑ +$120 (+4.0%)". A zero difference is reported as "No change".
func TaxChange(current, shifted float64) string {
	if missing(current) || missing(shifted) {
		return NA
	}
	diff := shifted - current
	if current == 0 {
		return "N/A (no current taxes)"
	}
	pct := diff / current * 100
	switch {
	case diff > 0:
		return printer.Sprintf("↑ +$%.0f (+%.1f%%)", diff, pct)
	case diff < 0:
		return printer.Sprintf("↓ $%.0f (%.1f%%)", -diff, pct)
	}
	return "No change"
}

// AddressParts are the address columns of a parcel record.
type AddressParts struct {
	HouseNumber string
	StreetDir   string
	StreetName  string
	StreetType  string
	Unit        string
}

// Address joins the non-blank parts into "123 N Main St Unit 4".
func Address(p AddressParts) string {
	var parts []string
	for _, s := range []string{p.HouseNumber, p.StreetDir, p.StreetName, p.StreetType} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if u := strings.TrimSpace(p.Unit); u != "" {
		parts = append(parts, "Unit "+u)
	}
	if len(parts) == 0 {
		return NA
	}
	return strings.Join(parts, " ")
}
