// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package config resolves the settings of the publish and subscribe tools.
//
// Values are layered, later layers winning: built-in defaults, an optional
// YAML file, the environment (a .env file in the working directory is loaded
// first without overriding variables already set) and finally command line
// flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/GwynCerbin/rabbit_tools/pkg/adapter"
	"github.com/GwynCerbin/rabbit_tools/pkg/logger"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultDrainTimeout bounds the wait for in-flight deliveries on shutdown.
const DefaultDrainTimeout = 5 * time.Second

// Publish configures the publish tool.
type Publish struct {
	Client    adapter.Client          `yaml:"client"`
	Publisher adapter.PublisherConfig `yaml:"publisher"`
	// Headers is a comma separated key=value list attached to every message.
	Headers string `env:"PUB_HEADERS" yaml:"headers"`
	// Count sends that many messages without asking. Zero asks before each one.
	Count       int           `env:"PUB_COUNT" yaml:"count"`
	Log         logger.Config `yaml:"log"`
	MetricsAddr string        `env:"METRICS_ADDR" yaml:"metrics_addr"`
}

// Subscribe configures the subscribe tool.
type Subscribe struct {
	Client   adapter.Client         `yaml:"client"`
	Consumer adapter.ConsumerConfig `yaml:"consumer"`
	Workers  int                    `env:"SUB_WORKERS" yaml:"workers"`
	// Strict stops the subscriber on the first delivery it cannot handle.
	Strict       bool          `env:"SUB_STRICT" yaml:"strict"`
	DrainTimeout time.Duration `env:"SUB_DRAIN_TIMEOUT" yaml:"drain_timeout"`
	Log          logger.Config `yaml:"log"`
	MetricsAddr  string        `env:"METRICS_ADDR" yaml:"metrics_addr"`
}

func defaultClient() adapter.Client {
	return adapter.Client{URL: adapter.DefaultURL}
}

func defaultLog(level string) logger.Config {
	return logger.Config{
		Level:      level,
		Encoding:   "console",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
	}
}

// LoadPublish resolves the publish settings from defaults, the YAML file at
// path (skipped when empty) and the environment.
func LoadPublish(path string) (*Publish, error) {
	cfg := &Publish{
		Client: defaultClient(),
		Log:    defaultLog("info"),
	}

	cfg.Client.ConnectionName = "publish"

	if err := load(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadSubscribe resolves the subscribe settings from defaults, the YAML file
// at path (skipped when empty) and the environment.
func LoadSubscribe(path string) (*Subscribe, error) {
	cfg := &Subscribe{
		Client:       defaultClient(),
		Workers:      1,
		DrainTimeout: DefaultDrainTimeout,
		Log:          defaultLog("debug"),
	}

	cfg.Client.ConnectionName = "subscribe"

	if err := load(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func load(path string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		if err = yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	return nil
}

// Overrides maps flag names to setters run for flags set on the command line.
type Overrides map[string]func()

// Apply runs the setter of every flag in fs that was set explicitly.
func (o Overrides) Apply(fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if set, ok := o[f.Name]; ok {
			set()
		}
	})
}

// Validate checks the publish settings.
func (c *Publish) Validate() error {
	var errs []error

	errs = append(errs, validateClient(&c.Client), validateLog(&c.Log))

	if c.Publisher.ExchangeName == "" {
		errs = append(errs, errors.New("exchange is required"))
	}

	if c.Count < 0 {
		errs = append(errs, fmt.Errorf("count must not be negative, got %d", c.Count))
	}

	if c.Publisher.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("confirm timeout must not be negative, got %s", c.Publisher.ConfirmTimeout))
	}

	return errors.Join(errs...)
}

// Validate checks the subscribe settings.
func (c *Subscribe) Validate() error {
	var errs []error

	errs = append(errs, validateClient(&c.Client), validateLog(&c.Log))

	if c.Consumer.QueueName == "" {
		errs = append(errs, errors.New("queue is required"))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	if c.Consumer.Prefetch < 0 {
		errs = append(errs, fmt.Errorf("prefetch must not be negative, got %d", c.Consumer.Prefetch))
	}

	if c.DrainTimeout < 0 {
		errs = append(errs, fmt.Errorf("drain timeout must not be negative, got %s", c.DrainTimeout))
	}

	return errors.Join(errs...)
}

func validateClient(c *adapter.Client) error {
	if _, err := amqp091.ParseURI(c.URL); err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}

	return nil
}

func validateLog(c *logger.Config) error {
	if _, err := logger.ParseLevel(c.Level); err != nil {
		return err
	}

	switch c.Encoding {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid log encoding %q", c.Encoding)
	}
}
