package types

// Table is a decoded spreadsheet: one header row and the data rows below it.
// Every row is aligned to Headers; readers pad short rows with empty cells.
type Table struct {
	Sheet     string
	Headers   []string
	Rows      [][]string
	HeaderRow int
}

// ColumnIndex returns the index of the header named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so appended columns never alias the input.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return &Table{
		Sheet:     t.Sheet,
		Headers:   append([]string(nil), t.Headers...),
		Rows:      rows,
		HeaderRow: t.HeaderRow,
	}
}

// RowFailure records why a single row produced empty output coordinates.
// Row is the 1-based position of the row in the input table.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ConversionResult struct {
	InputFile  string
	OutputFile string

	XColumn   string
	YColumn   string
	SourceCRS string
	TargetCRS string

	// OutputColumns holds the indices of the two appended columns in Table.
	OutputColumns [2]int
	Table         *Table

	RowsRead      int
	RowsProcessed int
	RowsConverted int
	RowsFailed    int
	RowsDropped   int
	Failures      []RowFailure
}
