// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Command publish sends operator confirmed messages to an exchange and reports
// whether the broker accepted each of them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	rabbit "github.com/GwynCerbin/rabbit_tools"
	"github.com/GwynCerbin/rabbit_tools/pkg/adapter"
	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/GwynCerbin/rabbit_tools/pkg/config"
	"github.com/GwynCerbin/rabbit_tools/pkg/headers"
	"github.com/GwynCerbin/rabbit_tools/pkg/logger"
	"github.com/GwynCerbin/rabbit_tools/pkg/metrics"
	"github.com/GwynCerbin/rabbit_tools/pkg/operator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type publishOptions struct {
	configFile     string
	url            string
	exchange       string
	routingKey     string
	headers        string
	count          int
	confirmTimeout time.Duration
	logLevel       string
	logEncoding    string
	metricsAddr    string
	flags          *pflag.FlagSet

	in       io.Reader
	out      io.Writer
	dialOpts []adapter.Option
}

func newPublishCommand() *cobra.Command {
	opts := publishOptions{in: os.Stdin, out: os.Stderr}

	cmd := &cobra.Command{
		Use:           "publish [OPTIONS]",
		Short:         "Publish messages to an AMQP exchange with publisher confirms.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.flags = cmd.Flags()

			return runPublish(cmd.Context(), opts)
		},
	}

	opts.installFlags(cmd.Flags())

	return cmd
}

// installFlags registers the command line flags on flags.
func (o *publishOptions) installFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.configFile, "config", "", "YAML configuration file")
	flags.StringVarP(&o.url, "url", "u", adapter.DefaultURL, "Broker address (env AMQP_ADDR)")
	flags.StringVarP(&o.exchange, "exchange", "x", "", "Exchange to publish to (env PUB_EXCHANGE)")
	flags.StringVarP(&o.routingKey, "routing-key", "r", "", "Routing key (env PUB_ROUTING)")
	flags.StringVarP(&o.headers, "headers", "p", "", "Comma separated key=value headers (env PUB_HEADERS)")
	flags.IntVarP(&o.count, "count", "n", 0, "Send this many messages without asking, 0 asks before each one")
	flags.DurationVar(&o.confirmTimeout, "confirm-timeout", 0, "Give up waiting for a confirmation after this long, 0 waits forever")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error (env LOG_LEVEL)")
	flags.StringVar(&o.logEncoding, "log-encoding", "console", "Log encoding: console or json")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, empty disables")
}

func runPublish(ctx context.Context, opts publishOptions) error {
	cfg, err := config.LoadPublish(opts.configFile)
	if err != nil {
		return err
	}

	config.Overrides{
		"url":             func() { cfg.Client.URL = opts.url },
		"exchange":        func() { cfg.Publisher.ExchangeName = opts.exchange },
		"routing-key":     func() { cfg.Publisher.RoutingKey = opts.routingKey },
		"headers":         func() { cfg.Headers = opts.headers },
		"count":           func() { cfg.Count = opts.count },
		"confirm-timeout": func() { cfg.Publisher.ConfirmTimeout = opts.confirmTimeout },
		"log-level":       func() { cfg.Log.Level = opts.logLevel },
		"log-encoding":    func() { cfg.Log.Encoding = opts.logEncoding },
		"metrics-addr":    func() { cfg.MetricsAddr = opts.metricsAddr },
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

	table, invalid := headers.Parse(headers.Split(cfg.Headers))
	for _, entry := range invalid {
		log.Warn("ignoring header without '='", zap.String("entry", entry))
	}

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

	publisher, err := adapter.NewConfirmPublisher(session, &cfg.Publisher)
	if err != nil {
		log.Error("publisher setup failed", zap.Error(err))

		if cerr := session.Close(); cerr != nil {
			log.Warn("close session", zap.Error(cerr))
		}

		return err
	}

	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("close publisher", zap.Error(err))
		}
	}()

	var loop broker.OperatorLoop = operator.NewPrompt(opts.in, opts.out, "")
	if cfg.Count > 0 {
		loop = operator.NewCount(cfg.Count)
	}

	sender := rabbit.NewSender(publisher, loop, rabbit.SenderConfig{
		Exchange:   cfg.Publisher.ExchangeName,
		RoutingKey: cfg.Publisher.RoutingKey,
		Headers:    table,
	})
	sender.SetLogger(log)
	sender.SetMetrics(m)

	if err = sender.Run(ctx); err != nil {
		log.Error("publish failed", zap.Error(err))

		return err
	}

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := newPublishCommand()
	cmd.SetOut(os.Stdout)

	err := cmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
