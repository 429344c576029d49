package cli

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nconklindev/geoshift/internal/config"
	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/logging"
	"github.com/nconklindev/geoshift/internal/ui"
)

// BuildInfo is stamped in by the release build.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// globalFlags are shared by every command.
type globalFlags struct {
	logFile  string
	logLevel string
	workflow string
}

func Execute(info BuildInfo) error {
	return newRootCmd(info).Execute()
}

func newRootCmd(info BuildInfo) *cobra.Command {
	g := &globalFlags{}
	var tui tuiOptions

	root := &cobra.Command{
		Use:           "geoshift",
		Short:         "Convert point coordinates in spreadsheets between coordinate systems",
		Version:       info.Version,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(g, tui, info)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("geoshift {{.Version}}\ncommit: %s\nbuilt: %s\n", info.Commit, info.Date))

	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "write logs to this file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&g.workflow, "workflow", "w", "", "YAML workflow with options and extra systems")

	root.Flags().StringVar(&tui.from, "from", "", "preselected source system")
	root.Flags().StringVar(&tui.to, "to", "", "preselected target system")
	root.Flags().BoolVar(&tui.dropMissing, "drop-missing", false, "start with missing-row dropping enabled")

	root.AddCommand(convertCmd(g), crsCmd(g), serveCmd(g))
	return root
}

type tuiOptions struct {
	from        string
	to          string
	dropMissing bool
}

func runTUI(g *globalFlags, tui tuiOptions, info BuildInfo) error {
	// The TUI owns the terminal, so logs go to a file or nowhere.
	logger, closeLog, err := g.logger("discard")
	if err != nil {
		return err
	}
	defer closeLog()

	reg, wf, err := g.registry()
	if err != nil {
		return err
	}

	cfg := ui.Config{
		Title:           "🧭 geoshift - Spreadsheet Coordinate Converter",
		Byline:          "Lat/Lon, NZTM and NZGD conversions • ",
		Link:            "github.com/nconklindev/geoshift",
		Version:         info.Version,
		SourceCRS:       crs.WGS84,
		TargetCRS:       crs.NZTM2000,
		DropMissingRows: tui.dropMissing,
	}
	if wf != nil {
		cfg.SourceCRS = wf.SourceCRS
		cfg.TargetCRS = wf.TargetCRS
		cfg.DropMissingRows = cfg.DropMissingRows || wf.DropMissingRows
		cfg.Precision = wf.Precision
		cfg.Workers = wf.Workers
		cfg.Strict = wf.Strict
	}
	if tui.from != "" {
		cfg.SourceCRS = tui.from
	}
	if tui.to != "" {
		cfg.TargetCRS = tui.to
	}

	conv := converter.New(reg, converter.WithLogger(logger))
	p := tea.NewProgram(ui.New(conv, cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

// logger builds a text logger at the requested level. --log-file wins
// over defaultOutput.
func (g *globalFlags) logger(defaultOutput string) (*slog.Logger, func() error, error) {
	cfg := config.LoggingConfig{
		Level:  g.logLevel,
		Format: "text",
		Output: defaultOutput,
	}
	if g.logFile != "" {
		cfg.Output = "file"
		cfg.FilePath = g.logFile
	}
	return logging.New(cfg)
}

// registry returns the builtin registry, extended by --workflow when set.
// The workflow is returned so callers can take its options as defaults.
func (g *globalFlags) registry() (*crs.Registry, *config.Workflow, error) {
	reg := crs.NewRegistry()
	if g.workflow == "" {
		return reg, nil, nil
	}

	wf, err := config.LoadWorkflow(g.workflow)
	if err != nil {
		return nil, nil, err
	}
	if err := wf.Apply(reg); err != nil {
		return nil, nil, err
	}
	return reg, wf, nil
}
