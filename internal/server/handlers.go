package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/types"
)

const (
	previewRows      = 10
	multipartMemory  = 8 << 20
	uploadFieldName  = "file"
	downloadBaseName = "converted"
)

type crsResponse struct {
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Short      string     `json:"short"`
	XAxis      string     `json:"x_axis"`
	YAxis      string     `json:"y_axis"`
	Geographic bool       `json:"geographic"`
	AreaOfUse  crs.Bounds `json:"area_of_use"`
}

type columnsResponse struct {
	File      string     `json:"file"`
	Sheet     string     `json:"sheet,omitempty"`
	Headers   []string   `json:"headers"`
	XColumn   string     `json:"suggested_x_column"`
	YColumn   string     `json:"suggested_y_column"`
	Rows      int        `json:"rows"`
	Preview   [][]string `json:"preview"`
	Resolved  bool       `json:"resolved"`
	Ambiguity string     `json:"ambiguity,omitempty"`
}

// convertRequest holds the form fields of POST /api/v1/convert.
type convertRequest struct {
	XColumn         string `json:"x_column" validate:"required_with=YColumn"`
	YColumn         string `json:"y_column" validate:"required_with=XColumn"`
	SourceCRS       string `json:"source_crs" validate:"required"`
	TargetCRS       string `json:"target_crs" validate:"required"`
	DropMissingRows bool   `json:"drop_missing_rows"`
	Format          string `json:"format" validate:"omitempty,oneof=csv xlsx"`
	OutputX         string `json:"output_x"`
	OutputY         string `json:"output_y"`
	Precision       int    `json:"precision" validate:"gte=0,lte=12"`
	Strict          bool   `json:"strict"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleListCRS(w http.ResponseWriter, r *http.Request) {
	defs := s.converter.Registry().All()

	resp := make([]crsResponse, 0, len(defs))
	for _, d := range defs {
		x, y := d.Axes.Labels()
		resp = append(resp, crsResponse{
			Name:       d.Name,
			Code:       d.Code,
			Short:      d.Short,
			XAxis:      x,
			YAxis:      y,
			Geographic: d.Geographic(),
			AreaOfUse:  d.AreaOfUse,
		})
	}
	render.JSON(w, r, resp)
}

// handleColumns reads an upload and reports its headers with the columns
// the heuristic would pick, so a client can confirm or override them.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	table, name, err := s.readUpload(w, r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := columnsResponse{
		File:    name,
		Sheet:   table.Sheet,
		Headers: table.Headers,
		Rows:    len(table.Rows),
		Preview: table.Rows[:min(previewRows, len(table.Rows))],
	}
	resp.XColumn, resp.YColumn, err = converter.ResolveColumns(table.Headers)
	if err != nil {
		resp.XColumn, resp.YColumn = converter.SuggestColumns(table.Headers)
		resp.Ambiguity = err.Error()
	} else {
		resp.Resolved = true
	}

	render.JSON(w, r, resp)
}

// handleConvert converts an upload and streams the result back as an
// attachment. Row counters travel in response headers.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	table, name, err := s.readUpload(w, r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	req, err := parseConvertRequest(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.renderError(w, r, err)
		return
	}

	format := converter.Format(req.Format)
	if format == "" {
		// readUpload only accepts .csv and .xlsx, so this cannot fail.
		format, _ = converter.FormatFromPath(name)
	}

	res, err := s.converter.Convert(r.Context(), table, converter.Options{
		XColumn:         req.XColumn,
		YColumn:         req.YColumn,
		SourceCRS:       req.SourceCRS,
		TargetCRS:       req.TargetCRS,
		DropMissingRows: req.DropMissingRows,
		OutputX:         req.OutputX,
		OutputY:         req.OutputY,
		Precision:       req.Precision,
		Workers:         s.cfg.Workers,
		Strict:          req.Strict,
	}, nil)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, downloadBaseName, format.Extension()))
	h.Set("X-Rows-Read", strconv.Itoa(res.RowsRead))
	h.Set("X-Rows-Converted", strconv.Itoa(res.RowsConverted))
	h.Set("X-Rows-Failed", strconv.Itoa(res.RowsFailed))
	h.Set("X-Rows-Dropped", strconv.Itoa(res.RowsDropped))
	h.Set("X-Source-CRS", res.SourceCRS)
	h.Set("X-Target-CRS", res.TargetCRS)

	if err := converter.Write(w, format, res); err != nil {
		// Headers are already out; all that is left is to log.
		s.logger.ErrorContext(r.Context(), "failed to write download",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
}

// readUpload enforces the upload limit and decodes the multipart file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*types.Table, string, error) {
	limit := s.cfg.Server.MaxUploadBytes
	if r.ContentLength > limit {
		return nil, "", &http.MaxBytesError{Limit: limit}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", err
		}
		return nil, "", &converter.IngestionError{Err: fmt.Errorf("invalid multipart form: %w", err)}
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		return nil, "", &converter.IngestionError{Err: fmt.Errorf("missing %q upload: %w", uploadFieldName, err)}
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	table, err := converter.Read(file, name)
	if err != nil {
		return nil, "", err
	}
	return table, name, nil
}

func parseConvertRequest(r *http.Request) (*convertRequest, error) {
	req := &convertRequest{
		XColumn:   r.FormValue("x_column"),
		YColumn:   r.FormValue("y_column"),
		SourceCRS: r.FormValue("source_crs"),
		TargetCRS: r.FormValue("target_crs"),
		Format:    strings.ToLower(r.FormValue("format")),
		OutputX:   r.FormValue("output_x"),
		OutputY:   r.FormValue("output_y"),
	}

	var err error
	if req.DropMissingRows, err = formBool(r, "drop_missing_rows"); err != nil {
		return nil, err
	}
	if req.Strict, err = formBool(r, "strict"); err != nil {
		return nil, err
	}
	if v := r.FormValue("precision"); v != "" {
		if req.Precision, err = strconv.Atoi(v); err != nil {
			return nil, invalidField("precision", "must be an integer")
		}
	}
	return req, nil
}

func formBool(r *http.Request, field string) (bool, error) {
	v := r.FormValue(field)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalidField(field, "must be true or false")
	}
	return b, nil
}

func invalidField(field, message string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		[]ValidationError{{Field: field, Message: message}})
}
