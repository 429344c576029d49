package converter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/geoshift/internal/types"

	"github.com/xuri/excelize/v2"
)

const RowDetectionLimit = 10

// ReadFileData reads a CSV or XLSX file into a table.
func ReadFileData(filePath string) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &IngestionError{File: filePath, Err: err}
	}
	defer file.Close()

	return Read(file, filePath)
}

// Read decodes r according to the extension of name.
func Read(r io.Reader, name string) (*types.Table, error) {
	var (
		table *types.Table
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		table, err = readCSVData(r)
	case ".xlsx":
		table, err = readXLSXData(r)
	default:
		err = fmt.Errorf("unsupported file type: %q", ext)
	}
	if err != nil {
		return nil, &IngestionError{File: filepath.Base(name), Err: err}
	}
	return table, nil
}

func readCSVData(r io.Reader) (*types.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	records = dropBlankRows(records)
	if len(records) == 0 {
		return nil, errors.New("empty file")
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	headers, rows := alignRows(headers, records[1:])
	return &types.Table{
		Headers: headers,
		Rows:    rows,
	}, nil
}

func readXLSXData(r io.Reader) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)

	// Stored values, not the display format: a cell styled 0.00 must not
	// lose the digits of its coordinate.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}

	headerRowIdx := findHeaderRow(rows)
	if headerRowIdx == -1 {
		return nil, errors.New("could not find header row")
	}

	headers, data := alignRows(rows[headerRowIdx], dropBlankRows(rows[headerRowIdx+1:]))
	return &types.Table{
		Sheet:     sheetName,
		Headers:   headers,
		Rows:      data,
		HeaderRow: headerRowIdx,
	}, nil
}

// findHeaderRow picks, among the first 2*RowDetectionLimit rows, the one
// with the most filled cells that holds at least two cells and some text.
// Only worksheets go through it: spreadsheets often carry a title block
// above the table, while a CSV header is always its first record.
func findHeaderRow(rows [][]string) int {
	best, header := 0, -1

	for i, row := range rows[:min(len(rows), RowDetectionLimit*2)] {
		filled, labelled := 0, false
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			filled++
			labelled = labelled || hasLetter(cell)
		}

		if filled >= 2 && labelled && filled > best {
			best, header = filled, i
		}
	}

	return header
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
}

func dropBlankRows(rows [][]string) [][]string {
	kept := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				kept = append(kept, row)
				break
			}
		}
	}
	return kept
}

// alignRows makes every row as wide as the headers. Cells past the last
// header get blank header names rather than being dropped, so appended
// columns always land after existing data.
func alignRows(headers []string, rows [][]string) ([]string, [][]string) {
	width := len(headers)
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width > len(headers) {
		headers = append(headers[:len(headers):len(headers)], make([]string, width-len(headers))...)
	}

	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]string, width-len(row))...)
		}
	}
	return headers, rows
}
