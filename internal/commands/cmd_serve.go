package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cueline/internal/app"
	"github.com/colonyops/cueline/internal/core/logging"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/metrics"
	"github.com/colonyops/cueline/internal/server"
)

type ServeCmd struct {
	flags *Flags
	app   *app.App

	// flags
	addr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, a *app.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: a}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the coordinator and API server",
		UsageText: "cueline serve [--addr host:port]",
		Description: `Starts the run-sheet coordinator: the once-per-second heartbeat, the HTTP
API, the live event stream, and (when configured) the metrics endpoint and
the chat webhook. Runs until interrupted.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides config)",
				Sources:     cli.EnvVars("CUELINE_ADDR"),
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})

	return root
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := cmd.flags.Config

	go cmd.app.Bus.Run(ctx)

	observe := func(d time.Duration) {
		if cmd.app.Metrics != nil {
			cmd.app.Metrics.RecordTick(d)
		}
	}
	ticker := runsheet.NewTicker(cmd.app.Runsheet, cfg.Ticker.Interval(), observe, logging.Component("ticker"))
	go ticker.Run(ctx)

	addr := cfg.Server.Addr
	if cmd.addr != "" {
		addr = cmd.addr
	}

	apiServer := server.New(addr, server.Deps{
		Runsheet: cmd.app.Runsheet,
		Members:  cmd.app.Members,
		Bus:      cmd.app.Bus,
		Metrics:  cmd.app.Metrics,
		Webhook:  cmd.app.Webhook,
		Log:      logging.Component("server"),
	})
	if err := apiServer.Start(ctx); err != nil {
		return err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr)
		if err := metricsServer.Start(ctx); err != nil {
			return err
		}
	}

	log.Info().Str("addr", apiServer.Addr()).Msg("cueline is running")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown api server")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}

	return nil
}
