// Package daemon provides the blocklist ingest command.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/decorate"

	"github.com/keerthanak2k4/blocklist-ingest/internal/cli"
	"github.com/keerthanak2k4/blocklist-ingest/internal/constants"
	"github.com/keerthanak2k4/blocklist-ingest/internal/database"
	"github.com/keerthanak2k4/blocklist-ingest/internal/feeds"
	"github.com/keerthanak2k4/blocklist-ingest/internal/fetcher"
	"github.com/keerthanak2k4/blocklist-ingest/internal/pipeline"
)

// ErrAllFeedsFailed is returned when not a single feed of the run could be
// ingested. Partial failure is not an error so that scheduled invocations do
// not flap on single-feed outages.
var ErrAllFeedsFailed = errors.New("all feeds failed")

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx    context.Context
	cancel context.CancelFunc
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	DB    database.Config
	Fetch fetcher.Config
	Feeds feedsConfig

	ConfigPath string
}

// feedsConfig tunes the feed registry and the pacing between feeds.
type feedsConfig struct {
	// File optionally points at a TOML feeds file replacing the built-in registry.
	File string
	// Delay is the pause between consecutive feed downloads.
	Delay time.Duration
}

// New creates a new App instance with default values.
func New() (*App, error) {
	// Resolve a .env file first so its variables take part in viper's
	// environment binding, the same way the process environment does.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using process environment only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := App{ctx: ctx, cancel: cancel}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Ingest blocklist.de IP reputation feeds into PostgreSQL",
		Long: `Blocklist ingest fetches the public blocklist.de plaintext IP lists,
parses each line into a structured record and bulk-inserts the records into
one PostgreSQL table per feed, tagged with the source feed, a run id and the
fetch timestamp.

The process runs the full pipeline once per invocation and exits. Settings are
taken from the environment, e.g.:

	BLOCKLIST_INGEST_DB_URI    PostgreSQL connection URI
	BLOCKLIST_INGEST_DB_NAME   target database name`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			// Environment variables surface as strings; decode them
			// leniently into the typed config.
			if err := a.viper.Unmarshal(&a.config, func(dc *mapstructure.DecoderConfig) {
				dc.WeaklyTypedInput = true
			}); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	// All domain settings come from the environment (or a .env file); the
	// command line only carries the ambient flags above.
	app.viper.SetDefault("fetch.timeout", constants.DefaultRequestTimeout)
	app.viper.SetDefault("fetch.retries", constants.DefaultMaxRetries)
	app.viper.SetDefault("fetch.backoff", constants.DefaultBackoffFactor)
	app.viper.SetDefault("feeds.delay", constants.DefaultFeedDelay)
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Quit aborts the running pipeline.
func (a *App) Quit() {
	a.cancel()
}

func (a *App) run() (err error) {
	defer decorate.OnError(&err, "ingest run failed")
	defer a.cancel()

	registry, err := a.registry()
	if err != nil {
		return err
	}

	if err := database.Migrate(a.config.DB); err != nil {
		return err
	}

	db, err := database.Connect(a.ctx, a.config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			slog.Error("Failed to close database connection", "error", cErr)
		}
	}()

	orchestrator := pipeline.New(
		registry,
		fetcher.New(a.config.Fetch),
		db,
		pipeline.WithFeedDelay(a.config.Feeds.Delay),
	)

	summary := orchestrator.Run(a.ctx)
	if summary.AllFailed() {
		return ErrAllFeedsFailed
	}
	return nil
}

// registry resolves the feed registry for this run.
func (a *App) registry() ([]feeds.Descriptor, error) {
	if a.config.Feeds.File == "" {
		return feeds.Default(), nil
	}

	slog.Info("Using feeds file instead of built-in registry", "file", a.config.Feeds.File)
	return feeds.Load(a.config.Feeds.File)
}
