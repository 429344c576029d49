package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/types"
)

func TestObserveConversion(t *testing.T) {
	r := NewRecorder()

	r.ObserveConversion(&types.ConversionResult{RowsConverted: 5, RowsFailed: 2, RowsDropped: 1}, time.Millisecond, nil)
	r.ObserveConversion(nil, time.Millisecond, &converter.ColumnResolutionError{})
	r.ObserveConversion(nil, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.conversions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conversions.WithLabelValues("column_resolution_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conversions.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.rows.WithLabelValues("converted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rows.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rows.WithLabelValues("dropped")))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "success"},
		{&converter.IngestionError{Err: errors.New("x")}, "ingestion_error"},
		{&converter.ConfigurationError{Field: "source_crs", Err: errors.New("x")}, "configuration_error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, outcome(tt.err))
		})
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveRequest("/api/v1/crs", http.StatusOK, 5*time.Millisecond)
	r.ObserveConversion(&types.ConversionResult{RowsConverted: 1}, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `geoshift_http_requests_total{code="200",route="/api/v1/crs"} 1`), body)
	assert.Contains(t, body, `geoshift_conversions_total{outcome="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
