package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/types"
)

// summaryFailures limits the row failures printed after a conversion.
const summaryFailures = 10

func convertCmd(g *globalFlags) *cobra.Command {
	var (
		opts   converter.Options
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert the coordinates in a CSV or XLSX file",
		Long: `Convert reads FILE, converts the X/Y coordinate columns from one system
to another and writes a copy with two appended columns.

Without --x and --y the columns are chosen from the header names; the
command refuses when that is ambiguous.`,
		Example: `  geoshift convert points.csv --from WGS84 --to NZTM
  geoshift convert survey.xlsx --x Easting --y Northing --from NZTM --to EPSG:4326 --format csv
  geoshift convert points.csv --workflow nz.yaml --drop-missing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runConvert(ctx, cmd, g, args[0], opts, out, format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.XColumn, "x", "", "X column (longitude or easting)")
	f.StringVar(&opts.YColumn, "y", "", "Y column (latitude or northing)")
	f.StringVar(&opts.SourceCRS, "from", "", "source system, e.g. WGS84 or EPSG:4326")
	f.StringVar(&opts.TargetCRS, "to", "", "target system, e.g. NZTM or EPSG:2193")
	f.BoolVar(&opts.DropMissingRows, "drop-missing", false, "drop rows with a missing coordinate")
	f.StringVar(&opts.OutputX, "out-x", "", "name of the appended X column")
	f.StringVar(&opts.OutputY, "out-y", "", "name of the appended Y column")
	f.BoolVar(&opts.Overwrite, "overwrite", false, "replace existing output columns instead of suffixing")
	f.IntVar(&opts.Precision, "precision", 0, "decimal places in the output (0 for shortest)")
	f.IntVar(&opts.Workers, "workers", runtime.NumCPU(), "rows converted in parallel")
	f.BoolVar(&opts.Strict, "strict", false, "fail rows outside the area of use of either system")
	f.StringVarP(&out, "out", "o", "", "output file (default <input>_converted<ext>)")
	f.StringVar(&format, "format", "", "output format: csv or xlsx (default from --out or input)")

	return cmd
}

func runConvert(ctx context.Context, cmd *cobra.Command, g *globalFlags, input string, flags converter.Options, out, format string) error {
	logger, closeLog, err := g.logger("stderr")
	if err != nil {
		return err
	}
	defer closeLog()

	reg, wf, err := g.registry()
	if err != nil {
		return err
	}

	opts := flags
	if wf != nil {
		opts = mergeOptions(wf.Options(), flags, cmd)
	}
	if opts.SourceCRS == "" || opts.TargetCRS == "" {
		return fmt.Errorf("--from and --to are required unless --workflow sets them")
	}

	output, err := outputPath(input, out, format)
	if err != nil {
		return err
	}

	conv := converter.New(reg, converter.WithLogger(logger))
	res, err := conv.ConvertFile(ctx, input, output, opts, nil)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), res)
	return nil
}

// mergeOptions starts from the workflow and applies the flags that were
// set on the command line.
func mergeOptions(base, flags converter.Options, cmd *cobra.Command) converter.Options {
	changed := cmd.Flags().Changed

	if changed("x") {
		base.XColumn = flags.XColumn
	}
	if changed("y") {
		base.YColumn = flags.YColumn
	}
	if changed("from") {
		base.SourceCRS = flags.SourceCRS
	}
	if changed("to") {
		base.TargetCRS = flags.TargetCRS
	}
	if changed("drop-missing") {
		base.DropMissingRows = flags.DropMissingRows
	}
	if changed("out-x") {
		base.OutputX = flags.OutputX
	}
	if changed("out-y") {
		base.OutputY = flags.OutputY
	}
	if changed("overwrite") {
		base.Overwrite = flags.Overwrite
	}
	if changed("precision") {
		base.Precision = flags.Precision
	}
	if changed("workers") || base.Workers == 0 {
		base.Workers = flags.Workers
	}
	if changed("strict") {
		base.Strict = flags.Strict
	}
	return base
}

// outputPath picks the output file. --format changes the extension of the
// default path; with an explicit --out the two must agree.
func outputPath(input, out, format string) (string, error) {
	if format == "" {
		if out == "" {
			return converter.DefaultOutputPath(input), nil
		}
		return out, nil
	}

	f, err := converter.ParseFormat(format)
	if err != nil {
		return "", err
	}

	if out == "" {
		def := converter.DefaultOutputPath(input)
		return strings.TrimSuffix(def, filepath.Ext(def)) + f.Extension(), nil
	}

	if got, err := converter.FormatFromPath(out); err != nil || got != f {
		return "", &converter.ConfigurationError{
			Field: "format",
			Value: format,
			Err:   fmt.Errorf("does not match output file %s", filepath.Base(out)),
		}
	}
	return out, nil
}

func printSummary(w io.Writer, res *types.ConversionResult) {
	fmt.Fprintf(w, "Converted %s -> %s (X=%s, Y=%s)\n", res.SourceCRS, res.TargetCRS, res.XColumn, res.YColumn)
	fmt.Fprintf(w, "Rows: %d read, %d converted, %d failed, %d dropped\n",
		res.RowsRead, res.RowsConverted, res.RowsFailed, res.RowsDropped)

	for i, f := range res.Failures {
		if i == summaryFailures {
			fmt.Fprintf(w, "  ... %d more failed rows\n", res.RowsFailed-summaryFailures)
			break
		}
		fmt.Fprintf(w, "  row %d: %s\n", f.Row, f.Reason)
	}

	fmt.Fprintf(w, "Output: %s\n", res.OutputFile)
}
