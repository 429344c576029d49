package converter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nconklindev/geoshift/internal/types"

	"github.com/xuri/excelize/v2"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx", with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", &ConfigurationError{Field: "format", Value: s, Err: fmt.Errorf("unsupported output format")}
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string { return "." + string(f) }

// ContentType returns the MIME type used when serving f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// WriteFile writes the result table to path.
func WriteFile(path string, format Format, res *types.ConversionResult) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(out, format, res); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Write encodes the result table. In XLSX output the converted columns are
// stored as numbers.
func Write(w io.Writer, format Format, res *types.ConversionResult) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, res.Table)
	case FormatXLSX:
		return WriteXLSX(w, res.Table, res.OutputColumns[:]...)
	default:
		return &ConfigurationError{Field: "format", Value: string(format), Err: fmt.Errorf("unsupported output format")}
	}
}

func WriteCSV(w io.Writer, t *types.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Headers); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteXLSX writes t to a single sheet. Cells in numericCols that parse as
// numbers are written as numeric cells; everything else stays text.
func WriteXLSX(w io.Writer, t *types.Table, numericCols ...int) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	numeric := make(map[int]bool, len(numericCols))
	for _, c := range numericCols {
		numeric[c] = true
	}

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
			if numeric[j] && cell != "" {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					cells[j] = v
				}
			}
		}

		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cellName, cells); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}
