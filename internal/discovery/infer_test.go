package discovery

import (
	"testing"

	"github.com/sammcj/mcp-sheets/internal/sheets"
	"github.com/stretchr/testify/assert"
)

func cells(values ...any) []sheets.Cell {
	out := make([]sheets.Cell, len(values))
	for i, v := range values {
		out[i] = sheets.NewCell(v)
	}
	return out
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name        string
		values      []sheets.Cell
		expected    ColumnType
		constraints Constraints
	}{
		{"decimal", cells("10", "20", "30.5", "40"), TypeDecimal, Constraints{"precision": 2}},
		{"decimal below thirty percent", cells("12", "34.5", "56", "78", "90.5", "11", "22"), TypeDecimal, Constraints{"precision": 2}},
		{"integer below decimal share", cells("12", "34.5", "56", "78", "90"), TypeInteger, Constraints{}},
		{"boolean words", cells("true", "false", "yes", "no"), TypeBoolean, Constraints{}},
		{"boolean mixed case", cells("TRUE", " False ", "Yes", "NO", "maybe"), TypeBoolean, Constraints{}},
		{"typed booleans", cells(true, false, true), TypeBoolean, Constraints{}},
		{"integer", cells("10", "200", "3,000", "42"), TypeInteger, Constraints{}},
		{"typed numbers", cells(10, 20.5, 30.25), TypeDecimal, Constraints{"precision": 2}},
		{"slash dates", cells("01/02/2024", "03/04/2024", "05/06/2024"), TypeDate, Constraints{}},
		{"month names", cells("Jan 5", "Feb 6", "March 7", "note"), TypeDate, Constraints{}},
		{"iso dates", cells("2024-01-15", "2024-02-20"), TypeDate, Constraints{}},
		{"text", cells("alpha", "beta", "gamma"), TypeText, Constraints{}},
		{"mostly text", cells("1", "2", "three", "four"), TypeText, Constraints{}},
		{"empty input", nil, TypeText, Constraints{}},
		{"blanks only", cells("", "  ", nil), TypeText, Constraints{}},
		{"blanks ignored", cells("", "5", nil, "6"), TypeInteger, Constraints{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inferred, constraints := InferType(tt.values)
			assert.Equal(t, tt.expected, inferred)
			assert.Equal(t, tt.constraints, constraints)
		})
	}
}

func TestInferType_PrecedenceIsPreserved(t *testing.T) {
	// small integer flags are caught by the boolean rule first
	inferred, _ := InferType(cells("0", "1", "1", "0", "1"))
	assert.Equal(t, TypeBoolean, inferred)

	// dashed numbers are caught by the date rule first
	inferred, _ = InferType(cells("555-1234", "555-9876", "555-0000"))
	assert.Equal(t, TypeDate, inferred)

	// negative numbers carry a '-' too
	inferred, _ = InferType(cells("-1", "-2", "-3"))
	assert.Equal(t, TypeDate, inferred)
}

func TestInferType_Idempotent(t *testing.T) {
	inputs := [][]sheets.Cell{
		cells("10", "20", "30.5", "40"),
		cells("true", "no", "x"),
		cells("Jan", "Feb"),
		cells("a", "", "b"),
	}

	for _, values := range inputs {
		firstType, firstConstraints := InferType(values)
		secondType, secondConstraints := InferType(values)
		assert.Equal(t, firstType, secondType)
		assert.Equal(t, firstConstraints, secondConstraints)
	}
}
