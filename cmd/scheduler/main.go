package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RezaEskandarii/cronhook/app"
	"github.com/RezaEskandarii/cronhook/internal/constants"
	"github.com/RezaEskandarii/cronhook/internal/logger"
	"github.com/RezaEskandarii/cronhook/internal/message_broaker"
	"github.com/RezaEskandarii/cronhook/types/config"
	"github.com/RezaEskandarii/cronhook/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Fire HTTP requests on cron schedules across a cluster of instances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the job API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(cmd.Context(), configFile, serve)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the storage schema and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(cmd.Context(), configFile, app.Migrate)
			},
		},
		&cobra.Command{
			Use:   "events",
			Short: "Print run events published by the scheduler",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(cmd.Context(), configFile, printEvents)
			},
		},
	)
	return root
}

type commandFunc func(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger) error

func withConfig(parent context.Context, configFile string, run commandFunc) error {
	v, err := newViper(configFile)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger) error {
	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error("failed to close connections", zap.Error(err))
		}
	}()

	var srv *http.Server
	if cfg.HTTPPort > 0 {
		srv = web.NewServer(cfg.HTTPPort, web.NewRouteHandler(c.Jobs, cfg.Instance, c.Logger).Handler())
	}
	return c.Run(ctx, srv)
}

func printEvents(ctx context.Context, cfg *config.CronhookConfig, log *zap.Logger) error {
	if !cfg.EventsEnabled() {
		return errors.New("rabbitmq.url is not set")
	}
	mq := cfg.RabbitMQConfig
	broker, err := message_broaker.NewRabbitMQ(mq.URL, mq.Exchange, mq.Queue, mq.RoutingKey)
	if err != nil {
		return err
	}
	defer broker.Close()

	msgs, err := broker.Consume(ctx, "")
	if err != nil {
		return err
	}
	for msg := range msgs {
		event, err := message_broaker.DecodeRunEvent(msg)
		if err != nil {
			log.Warn("skipping malformed run event", zap.Error(err))
			continue
		}
		log.Info("run finished",
			zap.String(logger.FieldInstance, event.Instance),
			zap.String(logger.FieldJobID, event.JobID),
			zap.String(logger.FieldRunID, event.Run.ID),
			zap.String(logger.FieldStatus, event.Run.Status.String()),
			zap.Time(logger.FieldScheduledFor, event.Run.ScheduledFor),
		)
	}
	return nil
}
