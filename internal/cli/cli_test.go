package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
)

const pointsCSV = "Name,Latitude,Longitude\nWellington,-41.2865,174.7762\nUnknown,,174\n"

const mountEdenWorkflow = `
source_crs: WGS84
target_crs: MTEDEN
drop_missing_rows: true
extra_crs:
  - name: Mount Eden 2000
    code: EPSG:2105
    short: MTEDEN
    datum:
      name: New Zealand Geodetic Datum 2000
      ellipsoid:
        name: GRS 1980
        semi_major: 6378137
        inv_flattening: 298.257222101
    projection:
      central_meridian: 174.764166666667
      latitude_of_origin: -36.8797222222222
      scale_factor: 0.9999
      false_easting: 400000
      false_northing: 800000
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "geoshift 1.2.3")
	assert.Contains(t, out, "commit: abc123")
	assert.Contains(t, out, "built: 2026-01-02")
}

func TestCRSList(t *testing.T) {
	out, err := run(t, "crs")
	require.NoError(t, err)

	for _, want := range []string{crs.WGS84, crs.NZTM2000, crs.NZGD2000, crs.NZGD1949, "Easting / Northing"} {
		assert.Contains(t, out, want)
	}
}

func TestCRSListIncludesWorkflowSystems(t *testing.T) {
	wf := writeFile(t, "nz.yaml", mountEdenWorkflow)

	out, err := run(t, "crs", "--json", "--workflow", wf)
	require.NoError(t, err)

	var defs []crs.Definition
	require.NoError(t, json.Unmarshal([]byte(out), &defs), out)
	require.Len(t, defs, 5)
	assert.Equal(t, "EPSG:2105", defs[4].Code)
}

func TestConvertCommand(t *testing.T) {
	in := writeFile(t, "points.csv", pointsCSV)

	out, err := run(t, "convert", in, "--from", "WGS84", "--to", "NZTM", "--precision", "2")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Rows: 2 read, 1 converted, 1 failed, 0 dropped")
	assert.Contains(t, out, "row 2:")

	result := filepath.Join(filepath.Dir(in), "points_converted.csv")
	assert.Contains(t, out, result)

	table, err := converter.ReadFileData(result)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Latitude", "Longitude", "NZTM_X", "NZTM_Y"}, table.Headers)

	x, err := strconv.ParseFloat(table.Rows[0][3], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1748735.55, x, 1)
}

func TestConvertFormatFlag(t *testing.T) {
	in := writeFile(t, "points.csv", pointsCSV)

	_, err := run(t, "convert", in, "--from", "WGS84", "--to", "NZTM", "--format", "xlsx", "--drop-missing")
	require.NoError(t, err)

	table, err := converter.ReadFileData(filepath.Join(filepath.Dir(in), "points_converted.xlsx"))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestConvertExplicitOutput(t *testing.T) {
	in := writeFile(t, "points.csv", pointsCSV)
	dest := filepath.Join(t.TempDir(), "out.csv")

	_, err := run(t, "convert", in, "--x", "Longitude", "--y", "Latitude",
		"--from", "WGS84", "--to", "NZTM", "-o", dest, "--out-x", "E", "--out-y", "N")
	require.NoError(t, err)

	table, err := converter.ReadFileData(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Latitude", "Longitude", "E", "N"}, table.Headers)
}

func TestConvertWorkflowDefaults(t *testing.T) {
	in := writeFile(t, "points.csv", pointsCSV)
	wf := writeFile(t, "nz.yaml", mountEdenWorkflow)

	out, err := run(t, "convert", in, "--workflow", wf)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 dropped")

	table, err := converter.ReadFileData(filepath.Join(filepath.Dir(in), "points_converted.csv"))
	require.NoError(t, err)
	assert.Contains(t, table.Headers, "MTEDEN_X")

	// Flags override the workflow.
	out, err = run(t, "convert", in, "--workflow", wf, "--to", "NZTM", "--drop-missing=false")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 dropped")

	table, err = converter.ReadFileData(filepath.Join(filepath.Dir(in), "points_converted.csv"))
	require.NoError(t, err)
	assert.Contains(t, table.Headers, "NZTM_X")
}

func TestConvertErrors(t *testing.T) {
	in := writeFile(t, "points.csv", pointsCSV)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing systems",
			args: []string{"convert", in, "--from", "WGS84"},
			want: "--from and --to are required",
		},
		{
			name: "unknown system",
			args: []string{"convert", in, "--from", "WGS84", "--to", "EPSG:1"},
			want: "EPSG:1",
		},
		{
			name: "format mismatch",
			args: []string{"convert", in, "--from", "WGS84", "--to", "NZTM", "--format", "xlsx", "-o", "out.csv"},
			want: "does not match output file",
		},
		{
			name: "missing file",
			args: []string{"convert", filepath.Join(t.TempDir(), "nope.csv"), "--from", "WGS84", "--to", "NZTM"},
			want: "nope.csv",
		},
		{
			name: "no file argument",
			args: []string{"convert", "--from", "WGS84", "--to", "NZTM"},
			want: "accepts 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStrictFlagCoversBothSystems(t *testing.T) {
	flag := convertCmd(&globalFlags{}).Flags().Lookup("strict")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "either system")
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		out     string
		format  string
		want    string
		wantErr bool
	}{
		{name: "default", input: "data/points.csv", want: filepath.Join("data", "points_converted.csv")},
		{name: "explicit", input: "points.csv", out: "x.xlsx", want: "x.xlsx"},
		{name: "format changes default", input: "data/points.xlsx", format: "csv", want: filepath.Join("data", "points_converted.csv")},
		{name: "format matches out", input: "points.csv", out: "x.xlsx", format: "XLSX", want: "x.xlsx"},
		{name: "format mismatch", input: "points.csv", out: "x.csv", format: "xlsx", wantErr: true},
		{name: "unknown format", input: "points.csv", format: "json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputPath(tt.input, tt.out, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
