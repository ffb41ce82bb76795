// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const mimeReadLimit = 512 //bytes that mime will read

// DefaultURL is the broker address used when none is configured.
const DefaultURL = "amqp://localhost:5672"

type Client struct {
	URL            string        `env:"AMQP_ADDR" yaml:"url"`
	TcpHeartBeat   time.Duration `env:"AMQP_HEARTBEAT" yaml:"tcp_heartbeat"`
	ConnectionName string        `env:"AMQP_CONNECTION_NAME" yaml:"connection_name"`
	Properties     amqp091.Table `yaml:"properties"`
}

type ConsumerConfig struct {
	QueueName string        `env:"SUB_QUEUE" yaml:"queue"`
	Prefetch  int           `env:"SUB_PREFETCH" yaml:"prefetch"`
	Exclusive bool          `env:"SUB_EXCLUSIVE" yaml:"exclusive"`
	Args      amqp091.Table `yaml:"args"`
}

type PublisherConfig struct {
	ExchangeName      string        `env:"PUB_EXCHANGE" yaml:"exchange"`
	RoutingKey        string        `env:"PUB_ROUTING" yaml:"routing_key"`
	MessagePersistent bool          `env:"PUB_PERSISTENT" yaml:"is_persistent"`
	AppId             string        `env:"PUB_APP_ID" yaml:"app_id"`
	ConfirmTimeout    time.Duration `env:"PUB_CONFIRM_TIMEOUT" yaml:"confirm_timeout"`
}

type ExchangeDeclare struct {
	Name       string        `env:"NAME" yaml:"name"`
	Type       string        `env:"TYPE" yaml:"type"`
	Durable    bool          `env:"DURABLE" yaml:"durable"`
	AutoDelete bool          `env:"AUTO_DELETE" yaml:"auto_delete"`
	Internal   bool          `env:"INTERNAL" yaml:"internal"`
	Args       amqp091.Table `env:"ARGS" yaml:"args"`
}
type QueueDeclareAndBind struct {
	Name         string        `env:"NAME" yaml:"name"`
	NoBind       bool          `env:"NO_BIND" yaml:"no_bind"`
	RoutingKey   string        `env:"ROUTING_KEY" yaml:"routing_key"`
	ExchangeName string        `env:"EXCHANGE_NAME" yaml:"exchange_name"`
	BindArgs     amqp091.Table `env:"BIND_ARGS" yaml:"bind_args"`
	Durable      bool          `env:"DURABLE" yaml:"durable"`
	AutoDelete   bool          `env:"AUTO_DELETE" yaml:"auto_delete"`
	Exclusive    bool          `env:"EXCLUSIVE" yaml:"exclusive"`
	Args         amqp091.Table `env:"ARGS" yaml:"args"`
}

// amqpConfig maps Client into the amqp091 dial configuration.
func (c *Client) amqpConfig() amqp091.Config {
	cfg := amqp091.Config{
		Heartbeat:  c.TcpHeartBeat,
		Properties: amqp091.NewConnectionProperties(),
	}

	for k, v := range c.Properties {
		cfg.Properties[k] = v
	}

	if c.ConnectionName != "" {
		cfg.Properties.SetClientConnectionName(c.ConnectionName)
	}

	return cfg
}
