package discovery

import (
	"strings"

	"github.com/sammcj/mcp-sheets/internal/sheets"
)

// ColumnType is the primitive type inferred for a column
type ColumnType string

const (
	TypeBoolean ColumnType = "BOOLEAN"
	TypeInteger ColumnType = "INTEGER"
	TypeDecimal ColumnType = "DECIMAL"
	TypeDate    ColumnType = "DATE"
	TypeText    ColumnType = "TEXT"
)

// Constraints carries type specific details such as decimal precision
type Constraints map[string]any

const (
	decimalPrecision = 2
	// share of numeric values that must carry a '.' for DECIMAL. A column
	// like 10, 20, 30.5, 40 (25%) is DECIMAL, so shares from 25% up to 30%
	// are DECIMAL too, e.g. 2 of 7.
	decimalSharePct = 25
)

var (
	booleanWords = map[string]bool{
		"true": true, "false": true, "yes": true, "no": true, "1": true, "0": true,
	}
	monthAbbreviations = []string{
		"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
	}
	numberSeparators = strings.NewReplacer(".", "", "-", "", ",", "")
)

// InferType infers a column type from its values. Empty values are ignored.
// Rules are checked in order: BOOLEAN, DATE, numeric (DECIMAL or INTEGER), TEXT.
func InferType(values []sheets.Cell) (ColumnType, Constraints) {
	var texts []string
	for _, v := range values {
		if !v.IsEmpty() {
			texts = append(texts, strings.TrimSpace(v.String()))
		}
	}
	if len(texts) == 0 {
		return TypeText, Constraints{}
	}

	booleans, dates := 0, 0
	for _, s := range texts {
		lower := strings.ToLower(s)
		if booleanWords[lower] {
			booleans++
		}
		if looksLikeDate(lower) {
			dates++
		}
	}
	if atLeast(booleans, len(texts), 80) {
		return TypeBoolean, Constraints{}
	}
	if atLeast(dates, len(texts), 60) {
		return TypeDate, Constraints{}
	}

	numeric, decimals := 0, 0
	for _, s := range texts {
		if !allDigits(numberSeparators.Replace(s)) {
			continue
		}
		numeric++
		if strings.Contains(s, ".") {
			decimals++
		}
	}
	if atLeast(numeric, len(texts), 80) {
		if atLeast(decimals, numeric, decimalSharePct) {
			return TypeDecimal, Constraints{"precision": decimalPrecision}
		}
		return TypeInteger, Constraints{}
	}

	return TypeText, Constraints{}
}

func looksLikeDate(lower string) bool {
	if strings.ContainsAny(lower, "/-") {
		return true
	}
	for _, m := range monthAbbreviations {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
