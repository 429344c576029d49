package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
)

const mountEdenWorkflow = `
source_crs: MTEDEN
target_crs: EPSG:4326
x_column: E
y_column: N
precision: 6
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

func TestParseWorkflow(t *testing.T) {
	w, err := ParseWorkflow([]byte(`
source_crs: EPSG:4326
target_crs: NZTM
drop_missing_rows: true
precision: 2
workers: 4
`))
	require.NoError(t, err)

	opts := w.Options()
	assert.Equal(t, converter.Options{
		SourceCRS:       "EPSG:4326",
		TargetCRS:       "NZTM",
		DropMissingRows: true,
		Precision:       2,
		Workers:         4,
	}, opts)
}

func TestParseWorkflowRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"missing target", "source_crs: WGS84\n", "target_crs failed required"},
		{"precision too large", "source_crs: a\ntarget_crs: b\nprecision: 20\n", "precision failed lte=12"},
		{"only one column", "source_crs: a\ntarget_crs: b\nx_column: lon\n", "y_column failed required_with"},
		{"unknown field", "source_crs: a\ntarget_crs: b\ndrop_mising_rows: true\n", "drop_mising_rows"},
		{"bad extra ellipsoid", "source_crs: a\ntarget_crs: b\nextra_crs:\n  - name: x\n    code: X:1\n", "semi_major failed gt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflow([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestWorkflowApplyRegistersExtraCRS(t *testing.T) {
	w, err := ParseWorkflow([]byte(mountEdenWorkflow))
	require.NoError(t, err)

	reg := crs.NewRegistry()
	require.NoError(t, w.Apply(reg))

	def, err := reg.Lookup("2105")
	require.NoError(t, err)
	assert.Equal(t, crs.EastNorth, def.Axes)
	assert.Equal(t, "MTEDEN", def.Short)
}

func TestWorkflowApplyUnknownCRS(t *testing.T) {
	w, err := ParseWorkflow([]byte("source_crs: EPSG:4326\ntarget_crs: EPSG:27200\n"))
	require.NoError(t, err)

	err = w.Apply(crs.NewRegistry())
	assert.ErrorIs(t, err, converter.ErrConfiguration)
	assert.ErrorIs(t, err, crs.ErrUnknownCRS)
}

func TestWorkflowApplyRejectsBuiltinOverride(t *testing.T) {
	w, err := ParseWorkflow([]byte(`
source_crs: WGS84
target_crs: NZTM
extra_crs:
  - name: My NZTM
    code: EPSG:2193
    datum:
      ellipsoid: {semi_major: 6378137, inv_flattening: 298.257222101}
`))
	require.NoError(t, err)

	err = w.Apply(crs.NewRegistry())
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func TestLoadWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mountEdenWorkflow), 0o644))

	w, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "E", w.XColumn)
	assert.Len(t, w.ExtraCRS, 1)

	_, err = LoadWorkflow(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadServiceDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadService()
	require.NoError(t, err)
	assert.Equal(t, DefaultService(), cfg)
}

func TestLoadServiceEnvironment(t *testing.T) {
	t.Setenv("GEOSHIFT_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("GEOSHIFT_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("GEOSHIFT_RATE_LIMIT_RPS", "2.5")
	t.Setenv("GEOSHIFT_LOGGING_FORMAT", "text")

	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "GEOSHIFT_SERVER_ADDR=:1\nGEOSHIFT_WORKERS=8\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))
	t.Cleanup(func() { os.Unsetenv("GEOSHIFT_WORKERS") })

	cfg, err := LoadService(envFile)
	require.NoError(t, err)

	// The environment wins over the dotenv file.
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadServiceInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEOSHIFT_LOGGING_OUTPUT", "syslog")

	_, err := LoadService()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Logging.Output")
}

func TestLoadServiceMissingEnvFile(t *testing.T) {
	_, err := LoadService(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}
