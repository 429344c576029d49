package converter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nconklindev/geoshift/internal/types"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffName,Latitude,Longitude\nA,-41,174\n\n,,\nB,-36\n"

	table, err := Read(strings.NewReader(input), "points.csv")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if table.Headers[0] != "Name" {
		t.Errorf("byte order mark not stripped: %q", table.Headers[0])
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(table.Rows), table.Rows)
	}
	if len(table.Rows[1]) != 3 || table.Rows[1][2] != "" {
		t.Errorf("short row not padded: %v", table.Rows[1])
	}
}

func TestReadCSVHeaderIsFirstRecord(t *testing.T) {
	table, err := Read(strings.NewReader("Report\nlat,lon\n-41,174\n"), "points.csv")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if table.Headers[0] != "Report" || table.HeaderRow != 0 || len(table.Rows) != 2 {
		t.Errorf("headers = %q, header row = %d, rows = %v", table.Headers, table.HeaderRow, table.Rows)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		file  string
	}{
		{"Empty CSV", "", "empty.csv"},
		{"Blank CSV", "\n\n", "blank.csv"},
		{"Unsupported extension", "a,b\n", "points.txt"},
		{"Broken XLSX", "not a zip", "points.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.file)
			if !errors.Is(err, ErrIngestion) {
				t.Errorf("Read() error = %v; want ErrIngestion", err)
			}
		})
	}
}

func TestReadFileDataMissingFile(t *testing.T) {
	_, err := ReadFileData(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrIngestion) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFileData() error = %v", err)
	}
}

func TestReadXLSXFindsHeaderRow(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "Survey export")
	f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Site", "Easting", "Northing"})
	f.SetSheetRow("Sheet1", "A4", &[]interface{}{"P1", 1748735.55, 5427916.48})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	table, err := Read(&buf, "survey.xlsx")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if table.HeaderRow != 2 || table.Sheet != "Sheet1" {
		t.Errorf("HeaderRow = %d, Sheet = %s; want 2, Sheet1", table.HeaderRow, table.Sheet)
	}
	if len(table.Rows) != 1 || table.Rows[0][1] != "1748735.55" {
		t.Errorf("rows = %v", table.Rows)
	}
}

func TestReadXLSXUsesStoredValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Latitude", "Longitude"})
	f.SetSheetRow("Sheet1", "A2", &[]interface{}{-41.2865, 174.7762})
	style, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle("Sheet1", "A2", "B2", style); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	table, err := Read(&buf, "points.xlsx")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := table.Rows[0]; got[0] != "-41.2865" || got[1] != "174.7762" {
		t.Errorf("row = %v; want [-41.2865 174.7762], not the 0.00 display format", got)
	}
}

func TestReadKeepsCellsPastLastHeader(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		input := "Latitude,Longitude\n-41.2865,174.7762,keepme,alsokeep\n-36.8485,174.7633\n"

		table, err := Read(strings.NewReader(input), "points.csv")
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}

		want := []string{"Latitude", "Longitude", "", ""}
		if len(table.Headers) != len(want) {
			t.Fatalf("headers = %q; want %q", table.Headers, want)
		}
		if table.Rows[0][2] != "keepme" || table.Rows[0][3] != "alsokeep" {
			t.Errorf("row 1 = %v", table.Rows[0])
		}
		if len(table.Rows[1]) != 4 {
			t.Errorf("row 2 not padded to 4 cells: %v", table.Rows[1])
		}
	})

	t.Run("XLSX", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()

		f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Latitude", "Longitude"})
		f.SetSheetRow("Sheet1", "A2", &[]interface{}{-41.2865, 174.7762, "note"})

		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			t.Fatal(err)
		}

		table, err := Read(&buf, "points.xlsx")
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if len(table.Headers) != 3 || table.Rows[0][2] != "note" {
			t.Errorf("headers = %q, rows = %v", table.Headers, table.Rows)
		}
	})
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		expected int
	}{
		{"First row", [][]string{{"lat", "lon"}, {"1", "2"}}, 0},
		{"After title", [][]string{{"Report"}, {}, {"lat", "lon", "name"}}, 2},
		{"Numbers only", [][]string{{"1", "2"}, {"3", "4"}}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderRow(tt.rows); got != tt.expected {
				t.Errorf("findHeaderRow() = %d; want %d", got, tt.expected)
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Name", "Note"},
		Rows:    [][]string{{"A", "has, comma"}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	expected := "Name,Note\nA,\"has, comma\"\n"
	if buf.String() != expected {
		t.Errorf("WriteCSV() = %q; want %q", buf.String(), expected)
	}
}

func TestWriteXLSXNumericColumns(t *testing.T) {
	table := &types.Table{
		Sheet:   "Points",
		Headers: []string{"Name", "X"},
		Rows:    [][]string{{"A", "1748735.55"}, {"B", ""}},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, table, 1); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != "Points" {
		t.Errorf("sheet = %s; want Points", name)
	}
	cellType, err := f.GetCellType("Points", "B2")
	if err != nil {
		t.Fatal(err)
	}
	if cellType == excelize.CellTypeSharedString || cellType == excelize.CellTypeInlineString {
		t.Errorf("B2 stored as text; want number")
	}
	if v, _ := f.GetCellValue("Points", "A3"); v != "B" {
		t.Errorf("A3 = %q; want B", v)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"csv", FormatCSV, false},
		{".XLSX", FormatXLSX, false},
		{"json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr || got != tt.expected {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.input, got, err)
			}
		})
	}
}
