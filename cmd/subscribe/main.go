// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Command subscribe prints every delivery of a queue and acknowledges it.
// It runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	rabbit "github.com/GwynCerbin/rabbit_tools"
	"github.com/GwynCerbin/rabbit_tools/pkg/adapter"
	"github.com/GwynCerbin/rabbit_tools/pkg/config"
	"github.com/GwynCerbin/rabbit_tools/pkg/logger"
	"github.com/GwynCerbin/rabbit_tools/pkg/metrics"
	"github.com/GwynCerbin/rabbit_tools/pkg/shutdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type subscribeOptions struct {
	configFile   string
	url          string
	queue        string
	workers      int
	prefetch     int
	strict       bool
	drainTimeout time.Duration
	logLevel     string
	logEncoding  string
	metricsAddr  string
	flags        *pflag.FlagSet

	out       io.Writer
	dialOpts  []adapter.Option
	coordOpts []shutdown.Option
}

func newSubscribeCommand() *cobra.Command {
	opts := subscribeOptions{out: os.Stdout}

	cmd := &cobra.Command{
		Use:           "subscribe [OPTIONS]",
		Short:         "Print and acknowledge every message of an AMQP queue.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.flags = cmd.Flags()

			return runSubscribe(cmd.Context(), opts)
		},
	}

	opts.installFlags(cmd.Flags())

	return cmd
}

// installFlags registers the command line flags on flags.
func (o *subscribeOptions) installFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.configFile, "config", "", "YAML configuration file")
	flags.StringVarP(&o.url, "url", "u", adapter.DefaultURL, "Broker address (env AMQP_ADDR)")
	flags.StringVarP(&o.queue, "queue", "q", "", "Queue to consume (env SUB_QUEUE)")
	flags.IntVar(&o.workers, "workers", 1, "Deliveries handled concurrently, 1 keeps arrival order")
	flags.IntVar(&o.prefetch, "prefetch", 0, "Unacknowledged deliveries the broker may push, 0 is unlimited")
	flags.BoolVar(&o.strict, "strict", false, "Stop on the first delivery that cannot be handled instead of rejecting it")
	flags.DurationVar(&o.drainTimeout, "drain-timeout", config.DefaultDrainTimeout, "Wait this long for in-flight deliveries on shutdown")
	flags.StringVar(&o.logLevel, "log-level", "debug", "Log level: debug, info, warn or error (env LOG_LEVEL)")
	flags.StringVar(&o.logEncoding, "log-encoding", "console", "Log encoding: console or json")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, empty disables")
}

func runSubscribe(ctx context.Context, opts subscribeOptions) error {
	cfg, err := config.LoadSubscribe(opts.configFile)
	if err != nil {
		return err
	}

	config.Overrides{
		"url":           func() { cfg.Client.URL = opts.url },
		"queue":         func() { cfg.Consumer.QueueName = opts.queue },
		"workers":       func() { cfg.Workers = opts.workers },
		"prefetch":      func() { cfg.Consumer.Prefetch = opts.prefetch },
		"strict":        func() { cfg.Strict = opts.strict },
		"drain-timeout": func() { cfg.DrainTimeout = opts.drainTimeout },
		"log-level":     func() { cfg.Log.Level = opts.logLevel },
		"log-encoding":  func() { cfg.Log.Encoding = opts.logEncoding },
		"metrics-addr":  func() { cfg.MetricsAddr = opts.metricsAddr },
	}.Apply(opts.flags)

	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	defer func() {
		_ = log.Sync()
	}()

	reg := prometheus.NewRegistry()

	m, err := metrics.NewMetrics(reg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		metrics.NewServer(cfg.MetricsAddr, reg, log).Start(ctx)
	}

	session, err := adapter.Dial(&cfg.Client, append([]adapter.Option{adapter.WithLogger(log)}, opts.dialOpts...)...)
	if err != nil {
		log.Error("connection failed", zap.Error(err))

		return err
	}

	consumer, err := adapter.NewConsumer(session, &cfg.Consumer)
	if err != nil {
		log.Error("subscription failed", zap.Error(err))

		if cerr := session.Close(); cerr != nil {
			log.Warn("close session", zap.Error(cerr))
		}

		return err
	}

	listener := rabbit.NewListener(consumer)
	if err = listener.SetConcurrency(cfg.Workers); err != nil {
		_ = consumer.Close()

		return err
	}

	listener.SetStrict(cfg.Strict)
	listener.SetLogger(log)
	listener.SetMetrics(m)

	router := rabbit.NewRouter()
	router.Fallback(rabbit.NewPrinter(opts.out, log))

	instance := listener.Init(router)

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- instance.ListenAndServe(ctx)

		cancel()
	}()

	coordinator := shutdown.New(log, append([]shutdown.Option{shutdown.WithDrainTimeout(cfg.DrainTimeout)}, opts.coordOpts...)...)

	err = coordinator.Run(ctx, instance.Shutdown, consumer)

	cancel()

	return multierr.Combine(err, <-serveErr)
}

func main() {
	cmd := newSubscribeCommand()
	cmd.SetOut(os.Stdout)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
