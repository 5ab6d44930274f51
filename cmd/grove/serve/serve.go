// Package servecmder provides the serve command running the grove HTTP API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/grove/api"
	"github.com/papercomputeco/grove/cmd/grove/app"
	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/logger"
)

// shutdownTimeout bounds the final flush and server drain.
const shutdownTimeout = 15 * time.Second

type serveCommander struct {
	flags   app.Flags
	listen  string
	debug   bool
	json    bool
	logFile string

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the grove HTTP API.

The server holds one session: the conversation tree of the signed in
identity. Changes are saved to the configured store after a quiet period
(sync.debounce_ms) and on shutdown.

Examples:
  grove serve --user alice
  grove serve --storage postgres --postgres postgres://localhost/grove
  grove serve --storage redis --redis localhost:6379 --event-stream kafka --brokers localhost:9092`

const serveShortDesc string = "Run the grove HTTP API"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, _, err = app.LoadConfig(cmd, append([]string{config.FlagListen}, app.SharedFlags...))
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	cmder.flags.Register(cmd)
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Log as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs at debug level to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.json),
		logger.WithPretty(!c.json),
	)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithWriter(f),
			logger.WithJSON(true),
			logger.WithDebug(true),
		))
	}

	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Metrics:    a.Metrics,
	}, a.Session, a.Turns, c.logger)
	if err != nil {
		return errors.Join(err, a.Close(context.Background()))
	}

	c.logger.Info("session ready",
		"storage", c.cfg.Storage.Provider,
		"user", a.Session.Owner(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			server.Shutdown(shutdownCtx),
			a.Close(shutdownCtx),
		)
	})

	return g.Wait()
}
