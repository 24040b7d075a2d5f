package discovery

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ColumnLetter converts a 0-based column index to its A1 letters
// (0 is A, 25 is Z, 26 is AA). Indexes are bounded by the worksheet column
// limit: anything below 0 or past 16383 (XFD) yields "".
func ColumnLetter(index int) string {
	name, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return ""
	}
	return name
}

// RangeNotation renders a region of a sheet as `{sheet}!{A1}:{A1}` with 1-based rows
func RangeNotation(sheetTitle string, r Region) string {
	return fmt.Sprintf("%s!%s%d:%s%d",
		sheetTitle,
		ColumnLetter(r.StartColumn), r.StartRow+1,
		ColumnLetter(r.EndColumn), r.EndRow+1,
	)
}
