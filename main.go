package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cueline/internal/app"
	"github.com/colonyops/cueline/internal/commands"
	"github.com/colonyops/cueline/internal/core/config"
	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/logging"
	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/data/db"
	"github.com/colonyops/cueline/internal/data/stores"
	"github.com/colonyops/cueline/internal/metrics"
	"github.com/colonyops/cueline/internal/notify/line"
	"github.com/colonyops/cueline/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		cueApp    = &app.App{}
		database  *db.DB
	)

	flags := &commands.Flags{}

	root := &cli.Command{
		Name:      "cueline",
		Usage:     "Coordinate timed rehearsal run-sheets",
		UsageText: "cueline [global options] command [command options]",
		Description: `Cueline runs a rehearsal run-sheet: an ordered list of timed slots, each
staffed by three responsible members. It counts each slot down, advances
automatically when time runs out, streams every change to connected
observers, and notifies members over LINE at schedule milestones.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CUELINE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stdout)",
				Sources:     cli.EnvVars("CUELINE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CUELINE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CUELINE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			if err := os.MkdirAll(flags.DataDir, 0o755); err != nil {
				return ctx, fmt.Errorf("create data directory: %w", err)
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Open database connection
			dbOpts := db.OpenOptions{
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
				BusyTimeout:  cfg.Database.BusyTimeoutMS,
			}
			database, err = db.Open(cfg.DataDir, dbOpts)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			// Create stores
			slotStore := stores.NewSlotStore(database)
			memberStore := stores.NewMemberStore(database)
			notifyStore := stores.NewNotifyStore(database)

			collector := metrics.NewCollector(prometheus.DefaultRegisterer)

			bus := eventbus.New(64)
			bus.OnPublish(func(ev eventbus.Event, _ any) {
				collector.RecordBroadcast(string(ev))
			})
			bus.OnDrop(func(_ eventbus.Event, _ any) {
				collector.RecordDropped()
			})
			eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

			var notifier milestone.Notifier = milestone.NopNotifier{}
			var webhook *line.WebhookHandler
			if cfg.Line.Enabled {
				client := line.NewClient(cfg.Line.ChannelAccessToken, logging.Component("line"))
				notifier = client
				webhook = line.NewWebhookHandler(cfg.Line.ChannelSecret, memberStore, client, logging.Component("webhook"))
			}

			detector := milestone.NewDetector(
				slotStore,
				memberStore,
				notifyStore,
				&app.InstrumentedNotifier{Inner: notifier, Collector: collector},
				time.Now,
				logging.Component("milestone"),
			)

			svc := runsheet.New(slotStore, memberStore, detector, bus, logging.Component("runsheet"))

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*cueApp = app.App{
				Config:   cfg,
				DB:       database,
				Slots:    slotStore,
				Members:  memberStore,
				Records:  notifyStore,
				Bus:      bus,
				Runsheet: svc,
				Metrics:  collector,
			}
			if webhook != nil {
				cueApp.Webhook = webhook
			}

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Close database connection
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	root = commands.NewServeCmd(flags, cueApp).Register(root)
	root = commands.NewWatchCmd(flags, cueApp).Register(root)
	root = commands.NewMemberCmd(flags, cueApp).Register(root)

	exitCode := 0
	runErr := root.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
