package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-publisher/internal/blob"
	"github.com/jonathan/content-publisher/internal/config"
	"github.com/jonathan/content-publisher/internal/db"
	"github.com/jonathan/content-publisher/internal/errlog"
	"github.com/jonathan/content-publisher/internal/formatting"
	"github.com/jonathan/content-publisher/internal/logging"
	"github.com/jonathan/content-publisher/internal/publishing"
	"github.com/jonathan/content-publisher/internal/ratelimit"
	"github.com/jonathan/content-publisher/internal/rendering"
)

// siteDir is the folder under the output directory mirroring uploaded pages
const siteDir = "site"

var (
	flagConfigPath  string
	flagDatabaseURL string
	flagOutputDir   string
	flagBlobBackend string
	flagBoltPath    string
	flagLogLevel    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVar(&flagDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	pf.StringVarP(&flagOutputDir, "output-dir", "o", config.DefaultOutputDir, "Directory for manifests, error log and page mirror")
	pf.StringVar(&flagBlobBackend, "blob-backend", config.DefaultBlobBackend, "Blob storage backend: postgres or bolt")
	pf.StringVar(&flagBoltPath, "bolt-path", config.DefaultBoltPath, "bbolt file used by the bolt backend")
	pf.StringVar(&flagLogLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
}

// loadConfig layers the config file, environment and defaults, then applies
// the persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Resolve(flagConfigPath, os.LookupEnv)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flagOutputDir
	}
	if flags.Changed("blob-backend") {
		cfg.BlobBackend = flagBlobBackend
	}
	if flags.Changed("bolt-path") {
		cfg.BoltPath = flagBoltPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// app holds the connections a command works with
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *db.DB
	blob    blob.Store
	closers []func()
}

// openDB connects to the content database named by cfg
func openDB(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required: set --db-url or %s", config.EnvDatabaseURL)
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// connect opens the content database and the configured blob store
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	database, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: database}
	a.closers = append(a.closers, database.Close)

	if err := a.openBlob(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openBlobOnly opens the blob store without a database when the backend allows it
func openBlobOnly(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	if cfg.BlobBackend != config.BlobBackendBolt {
		return connect(ctx, cfg, logger)
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.openBlob(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openBlob() error {
	switch a.cfg.BlobBackend {
	case config.BlobBackendBolt:
		store, err := blob.OpenBoltStore(a.cfg.BoltPath)
		if err != nil {
			return err
		}
		a.blob = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	default:
		if a.db == nil {
			return fmt.Errorf("blob backend %q needs a database connection", a.cfg.BlobBackend)
		}
		a.blob = a.db
	}
	return nil
}

// Close releases connections in reverse order of opening
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// storage returns the page storage for a run
func (a *app) storage(isDryRun bool) *rendering.ContentStorage {
	opts := rendering.Options{
		IsDryRun:  isDryRun,
		OutputDir: filepath.Join(a.cfg.OutputDir, siteDir),
		Logger:    a.logger.With("component", "storage"),
	}
	if a.db != nil {
		opts.Metadata = a.db
	}
	return rendering.NewContentStorage(a.blob, opts)
}

// newEngine wires a publishing engine for runID
func (a *app) newEngine(runID string, isDryRun, includeRetry bool) (*publishing.Engine, error) {
	errLog, err := errlog.New(a.cfg.OutputDir, errlog.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	fmtOpts := formatting.Options{}
	if a.cfg.FormattingOptions != "" {
		fmtOpts, err = formatting.LoadOptions(a.cfg.FormattingOptions)
		if err != nil {
			return nil, err
		}
	}

	return publishing.NewEngine(publishing.EngineDeps{
		Store:       a.db,
		Storage:     a.storage(isDryRun),
		Formatter:   formatting.NewDispatcher(fmtOpts),
		Broadcaster: publishing.NewOutboxBroadcaster(a.blob).WithLimiter(ratelimit.NewLimiter(ratelimit.LoadConfig())),
		ErrorLogger: errLog,
		Logger:      a.logger,
	}, publishing.Options{
		RunID:        runID,
		OutputDir:    a.cfg.OutputDir,
		IsDryRun:     isDryRun,
		IncludeRetry: includeRetry,
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}
