package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nconklindev/geoshift/internal/config"
	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/logging"
	"github.com/nconklindev/geoshift/internal/metrics"
	"github.com/nconklindev/geoshift/internal/server"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		addr     string
		workers  int
		envFiles []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP API",
		Long: `Serve exposes the converter over HTTP. Configuration comes from
GEOSHIFT_* environment variables, optionally loaded from .env files;
flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadService(envFiles...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if g.logFile != "" {
				cfg.Logging.Output = "file"
				cfg.Logging.FilePath = g.logFile
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = g.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closeLog, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			reg, _, err := g.registry()
			if err != nil {
				return err
			}

			rec := metrics.NewRecorder()
			conv := converter.New(reg, converter.WithLogger(logger), converter.WithObserver(rec))
			srv := server.New(cfg, conv, rec, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting geoshift service",
				slog.String("addr", cfg.Server.Addr),
				slog.Int("workers", cfg.Workers),
				slog.Bool("rate_limit", cfg.RateLimit.Enabled),
			)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&workers, "workers", 4, "rows converted in parallel per request")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env if present)")

	return cmd
}
