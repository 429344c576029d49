package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/geodesy"
	"github.com/nconklindev/geoshift/internal/types"
)

const (
	// MaxFailureSamples caps the row failures kept on a result.
	MaxFailureSamples = 50
	// MaxPrecision is the largest supported number of decimals.
	MaxPrecision = 12
	// rowsPerWorker is the smallest table worth spreading across goroutines.
	rowsPerWorker = 256
)

// Options selects columns, systems and policies for one run.
type Options struct {
	// XColumn and YColumn name the easting-like and northing-like columns.
	// Leave both empty to infer them from the headers.
	XColumn string
	YColumn string

	SourceCRS string
	TargetCRS string

	// DropMissingRows removes rows lacking either coordinate before
	// conversion. Otherwise such rows stay and get empty outputs.
	DropMissingRows bool

	// OutputX and OutputY name the appended columns. They default to the
	// target's short name with an _X / _Y suffix.
	OutputX string
	OutputY string
	// Overwrite lets the appended columns replace existing columns of the
	// same name instead of taking a numbered suffix.
	Overwrite bool

	// Precision is the number of decimals written; 0 keeps the shortest
	// representation that round-trips.
	Precision int
	// Workers above 1 spreads large tables across that many goroutines.
	Workers int
	// Strict rejects points outside the area of use of either system.
	Strict bool
}

// Observer is told about every finished run, successful or not.
type Observer interface {
	ObserveConversion(res *types.ConversionResult, elapsed time.Duration, err error)
}

type Converter struct {
	registry *crs.Registry
	logger   *slog.Logger
	observer Observer
}

type Option func(*Converter)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(c *Converter) { c.observer = o }
}

func New(registry *crs.Registry, opts ...Option) *Converter {
	c := &Converter{
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "converter"))
	return c
}

func (c *Converter) Registry() *crs.Registry { return c.registry }

type rowOutcome struct {
	point geodesy.Point
	err   error
}

// Convert appends converted coordinates to a copy of table. Halting problems
// (columns, systems, options) return an error before any row is touched;
// a row that cannot be converted gets empty outputs and a RowFailure.
func (c *Converter) Convert(ctx context.Context, table *types.Table, opts Options, progressChan chan<- float64) (res *types.ConversionResult, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveConversion(res, time.Since(start), err)
		}
	}()

	if table == nil {
		return nil, &IngestionError{Err: errors.New("no table")}
	}

	xColumn, yColumn, err := resolveOptionColumns(table.Headers, opts)
	if err != nil {
		return nil, err
	}
	transformer, err := c.transformer(opts)
	if err != nil {
		return nil, err
	}
	outX, outY, err := outputNames(opts, transformer.Target())
	if err != nil {
		return nil, err
	}
	if opts.Precision < 0 || opts.Precision > MaxPrecision {
		return nil, &ConfigurationError{Field: "precision", Value: strconv.Itoa(opts.Precision),
			Err: fmt.Errorf("must be between 0 and %d", MaxPrecision)}
	}

	xIdx, yIdx := table.ColumnIndex(xColumn), table.ColumnIndex(yColumn)

	out := table.Clone()
	out.Headers, out.Rows = alignRows(out.Headers, out.Rows)
	rowNumbers := make([]int, 0, len(out.Rows))
	if opts.DropMissingRows {
		kept := out.Rows[:0]
		for i, row := range out.Rows {
			if IsMissing(row[xIdx]) || IsMissing(row[yIdx]) {
				continue
			}
			kept = append(kept, row)
			rowNumbers = append(rowNumbers, i+1)
		}
		out.Rows = kept
	} else {
		for i := range out.Rows {
			rowNumbers = append(rowNumbers, i+1)
		}
	}

	outcomes := make([]rowOutcome, len(out.Rows))
	if err := transformRows(ctx, out.Rows, xIdx, yIdx, transformer, opts.Workers, outcomes, progressChan); err != nil {
		return nil, err
	}

	cols := appendColumns(out, outX, outY, opts.Overwrite)

	res = &types.ConversionResult{
		XColumn:       xColumn,
		YColumn:       yColumn,
		SourceCRS:     transformer.Source().Code,
		TargetCRS:     transformer.Target().Code,
		OutputColumns: cols,
		Table:         out,
		RowsRead:      len(table.Rows),
		RowsProcessed: len(out.Rows),
		RowsDropped:   len(table.Rows) - len(out.Rows),
	}

	for i, o := range outcomes {
		row := out.Rows[i]
		if o.err != nil {
			row[cols[0]], row[cols[1]] = "", ""
			res.RowsFailed++
			if len(res.Failures) < MaxFailureSamples {
				res.Failures = append(res.Failures, types.RowFailure{Row: rowNumbers[i], Reason: o.err.Error()})
			}
			continue
		}
		row[cols[0]] = FormatCoordinate(o.point.X, opts.Precision)
		row[cols[1]] = FormatCoordinate(o.point.Y, opts.Precision)
		res.RowsConverted++
	}

	c.logger.InfoContext(ctx, "conversion finished",
		slog.String("x_column", xColumn),
		slog.String("y_column", yColumn),
		slog.String("source_crs", res.SourceCRS),
		slog.String("target_crs", res.TargetCRS),
		slog.Int("rows_read", res.RowsRead),
		slog.Int("rows_converted", res.RowsConverted),
		slog.Int("rows_failed", res.RowsFailed),
		slog.Int("rows_dropped", res.RowsDropped),
		slog.Duration("elapsed", time.Since(start)),
	)
	for _, f := range res.Failures {
		c.logger.DebugContext(ctx, "row not converted", slog.Int("row", f.Row), slog.String("reason", f.Reason))
	}

	return res, nil
}

// ConvertFile reads inputFile, converts it and writes the result to
// outputFile in the format implied by its extension.
func (c *Converter) ConvertFile(ctx context.Context, inputFile, outputFile string, opts Options, progressChan chan<- float64) (*types.ConversionResult, error) {
	format, err := FormatFromPath(outputFile)
	if err != nil {
		return nil, err
	}

	table, err := ReadFileData(inputFile)
	if err != nil {
		return nil, err
	}

	res, err := c.Convert(ctx, table, opts, progressChan)
	if err != nil {
		return nil, err
	}

	if err := WriteFile(outputFile, format, res); err != nil {
		return nil, fmt.Errorf("write %s: %w", outputFile, err)
	}

	res.InputFile = inputFile
	res.OutputFile = outputFile
	return res, nil
}

// DefaultOutputPath places the result next to the input: data.csv becomes
// data_converted.csv.
func DefaultOutputPath(inputFile string) string {
	ext := filepath.Ext(inputFile)
	base := strings.TrimSuffix(inputFile, ext)
	return base + "_converted" + strings.ToLower(ext)
}

func (c *Converter) transformer(opts Options) (*geodesy.Transformer, error) {
	src, err := c.lookup("source_crs", opts.SourceCRS)
	if err != nil {
		return nil, err
	}
	dst, err := c.lookup("target_crs", opts.TargetCRS)
	if err != nil {
		return nil, err
	}

	t, err := geodesy.NewTransformer(src, dst, geodesy.WithStrictArea(opts.Strict))
	if err != nil {
		return nil, &ConfigurationError{Field: "source_crs", Value: opts.SourceCRS, Err: err}
	}
	return t, nil
}

func (c *Converter) lookup(field, key string) (*crs.Definition, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &ConfigurationError{Field: field, Value: key, Err: errors.New("coordinate reference system is required")}
	}
	def, err := c.registry.Lookup(key)
	if err != nil {
		return nil, &ConfigurationError{Field: field, Value: key, Err: err}
	}
	return def, nil
}

func resolveOptionColumns(headers []string, opts Options) (string, string, error) {
	if opts.XColumn == "" && opts.YColumn == "" {
		return ResolveColumns(headers)
	}
	if err := ValidateColumns(headers, opts.XColumn, opts.YColumn); err != nil {
		return "", "", err
	}
	return opts.XColumn, opts.YColumn, nil
}

func outputNames(opts Options, target *crs.Definition) (string, string, error) {
	x, y := opts.OutputX, opts.OutputY
	if x == "" {
		x = target.Short + "_X"
	}
	if y == "" {
		y = target.Short + "_Y"
	}
	if x == y {
		return "", "", &ConfigurationError{Field: "output_y", Value: y, Err: errors.New("must differ from output_x")}
	}
	return x, y, nil
}

// transformRows fills outcomes[i] for every row. Work is split into chunks
// when workers > 1; each goroutine writes only its own slice of outcomes.
func transformRows(ctx context.Context, rows [][]string, xIdx, yIdx int, t *geodesy.Transformer, workers int, outcomes []rowOutcome, progressChan chan<- float64) error {
	total := len(rows)
	if total == 0 {
		reportProgress(progressChan, 1)
		return nil
	}

	if workers <= 1 || total < rowsPerWorker*2 {
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := convertRow(row, xIdx, yIdx, t)
			outcomes[i] = rowOutcome{point: p, err: err}
			reportProgress(progressChan, float64(i+1)/float64(total))
		}
		return nil
	}

	chunk := max(rowsPerWorker, (total+workers*4-1)/(workers*4))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < total; start += chunk {
		end := min(start+chunk, total)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := convertRow(rows[i], xIdx, yIdx, t)
				outcomes[i] = rowOutcome{point: p, err: err}
			}
			reportProgress(progressChan, float64(done.Add(int64(end-start)))/float64(total))
			return nil
		})
	}
	return g.Wait()
}

// convertRow builds the (x, y) pair from the two designated cells, in that
// order, and transforms it.
func convertRow(row []string, xIdx, yIdx int, t *geodesy.Transformer) (geodesy.Point, error) {
	xs, ys := row[xIdx], row[yIdx]
	if IsMissing(xs) || IsMissing(ys) {
		return geodesy.Point{}, errMissingCoordinate
	}

	x, err := ParseCoordinate(xs)
	if err != nil {
		return geodesy.Point{}, err
	}
	y, err := ParseCoordinate(ys)
	if err != nil {
		return geodesy.Point{}, err
	}

	return t.Transform(geodesy.Point{X: x, Y: y})
}

// ParseCoordinate reads a decimal number from a cell.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", errNotNumeric, s)
	}
	return v, nil
}

// FormatCoordinate renders v with the given number of decimals, or in its
// shortest exact form when precision is 0.
func FormatCoordinate(v float64, precision int) string {
	if precision <= 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// appendColumns adds the two output columns and returns their indices.
// Existing names are reused only when overwrite is set; otherwise the new
// column takes the first free numbered suffix.
func appendColumns(t *types.Table, xName, yName string, overwrite bool) [2]int {
	var idx [2]int
	for i, name := range []string{xName, yName} {
		if overwrite {
			if existing := t.ColumnIndex(name); existing >= 0 {
				idx[i] = existing
				continue
			}
		} else {
			name = uniqueName(t.Headers, name)
		}
		t.Headers = append(t.Headers, name)
		idx[i] = len(t.Headers) - 1
	}

	width := len(t.Headers)
	for i, row := range t.Rows {
		if len(row) < width {
			t.Rows[i] = append(row, make([]string, width-len(row))...)
		}
	}
	return idx
}

func uniqueName(headers []string, name string) string {
	taken := func(n string) bool {
		for _, h := range headers {
			if h == n {
				return true
			}
		}
		return false
	}

	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// reportProgress never blocks the conversion on a slow reader.
func reportProgress(progressChan chan<- float64, p float64) {
	if progressChan == nil {
		return
	}
	select {
	case progressChan <- p:
	default:
	}
}
