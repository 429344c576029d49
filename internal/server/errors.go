package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/logging"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	RequestID  string      `json:"request_id,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	e.RequestID = logging.RequestID(r.Context())
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newAPIError(status int, code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// apiError maps an error from the conversion pipeline to its HTTP form.
func apiError(err error) *APIError {
	var (
		apiErr   *APIError
		colErr   *converter.ColumnResolutionError
		cfgErr   *converter.ConfigurationError
		maxErr   *http.MaxBytesError
		validErr validator.ValidationErrors
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &colErr):
		return newAPIError(http.StatusUnprocessableEntity, "COLUMN_RESOLUTION_FAILED", colErr.Error(), map[string]interface{}{
			"headers":   colErr.Headers,
			"x_matches": colErr.XMatches,
			"y_matches": colErr.YMatches,
		})
	case errors.As(err, &maxErr):
		return newAPIError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit), nil)
	case errors.Is(err, converter.ErrIngestion):
		return newAPIError(http.StatusBadRequest, "INGESTION_FAILED", err.Error(), nil)
	case errors.As(err, &cfgErr):
		return newAPIError(http.StatusBadRequest, "INVALID_CONFIGURATION", cfgErr.Error(), ValidationError{
			Field:   cfgErr.Field,
			Message: cfgErr.Err.Error(),
		})
	case errors.As(err, &validErr):
		details := make([]ValidationError, 0, len(validErr))
		for _, fe := range validErr {
			details = append(details, ValidationError{Field: fe.Field(), Message: validationMessage(fe)})
		}
		return newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", details)
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "is required when the other column is given"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)

	level := slog.LevelWarn
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error_code", apiErr.ErrorCode),
		slog.String("error", err.Error()),
	)

	render.Render(w, r, apiErr)
}
