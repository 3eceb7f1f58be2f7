package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hotprices/internal/config"
	"hotprices/internal/logger"
	"hotprices/internal/metrics"
	"hotprices/internal/notify"
	"hotprices/internal/pipeline"
	"hotprices/internal/pricedb"
	"hotprices/internal/rawdata"
	"hotprices/internal/sites"
	"hotprices/internal/snapshot"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "hotprices.yaml"

// connectTimeout bounds dialing the optional NATS and Postgres sinks.
const connectTimeout = 10 * time.Second

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	outputDir  string
	dataDir    string
}

// app is what a subcommand needs after flags and config are resolved.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *sites.Registry
	out      io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "hotprices",
		Short:         "Grocery price history pipeline",
		Long:          "hotprices canonicalizes scraped store listings, deduplicates them and merges the observed prices into a persisted price history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config YAML (defaults to ./"+defaultConfigFile+" when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Directory holding raw inputs and the snapshot")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory receiving the published store slices")

	root.AddCommand(
		newTransformCmd(opts),
		newPublishCmd(opts),
		newVerifyCmd(opts),
		newWatchCmd(opts),
		newStoresCmd(opts),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the config file, then applies flag overrides and validates.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg := config.DefaultConfig()

	if path != "" {
		loaded, err := config.ReadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	if o.outputDir != "" {
		cfg.Paths.OutputDir = o.outputDir
	}

	if o.dataDir != "" {
		cfg.Paths.DataDir = o.dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (o *globalOptions) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      logger.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format),
		registry: sites.Default(),
		out:      cmd.OutOrStdout(),
	}, nil
}

func (a *app) snapshots() *snapshot.Store {
	return snapshot.NewStore(
		a.cfg.Paths.OutputDir,
		a.cfg.Paths.DataDir,
		a.cfg.Paths.SnapshotFile,
		a.cfg.Publish.Concurrency,
		a.log,
	)
}

// buildPipeline wires the pipeline and its optional sinks. The returned
// cleanup closes whatever connections were opened.
func (a *app) buildPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := pipeline.Deps{
		Registry:    a.registry,
		Raw:         rawdata.NewLoader(a.cfg.Paths.OutputDir, a.cfg.Paths.RawPattern),
		Snapshots:   a.snapshots(),
		Log:         a.log,
		Enabled:     a.cfg.StoreEnabled,
		Manifest:    a.cfg.Publish.Manifest,
		MetricsFile: a.cfg.Metrics.Textfile,
	}

	if a.cfg.Metrics.Textfile != "" {
		deps.Metrics = metrics.NewRecorder()
	}

	if a.cfg.Notify.NATSURL != "" {
		n, err := notify.Connect(a.cfg.Notify.NATSURL, a.cfg.Notify.Subject)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		closers = append(closers, func() {
			if err := n.Close(); err != nil {
				a.log.Warn("Failed to close NATS connection", "error", err)
			}
		})
		deps.Notifier = n
	}

	if a.cfg.Database.URL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		db, err := pricedb.Connect(dialCtx, a.cfg.Database.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		closers = append(closers, db.Close)

		if err := db.EnsureSchema(dialCtx); err != nil {
			cleanup()
			return nil, nil, err
		}

		deps.Mirror = db
	}

	return pipeline.New(deps), cleanup, nil
}

// errVerifyFailed makes verify exit non-zero after printing the mismatches.
var errVerifyFailed = errors.New("verification failed")
