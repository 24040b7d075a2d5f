package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{
		0:     "A",
		1:     "B",
		25:    "Z",
		26:    "AA",
		27:    "AB",
		51:    "AZ",
		52:    "BA",
		701:   "ZZ",
		702:   "AAA",
		16383: "XFD",
	}

	for index, expected := range tests {
		assert.Equal(t, expected, ColumnLetter(index), "index %d", index)
	}
	assert.Equal(t, "", ColumnLetter(-1))
	assert.Equal(t, "", ColumnLetter(16384))
}

func TestRangeNotation(t *testing.T) {
	assert.Equal(t, "Sales!A1:Z100", RangeNotation("Sales", Region{StartRow: 0, EndRow: 99, StartColumn: 0, EndColumn: 25}))
	assert.Equal(t, "Q1 Data!C4:E10", RangeNotation("Q1 Data", Region{StartRow: 3, EndRow: 9, StartColumn: 2, EndColumn: 4}))
	assert.Equal(t, "Sales!A1:Z100", sampleRange("Sales"))
}
