// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Session owns one AMQP connection and the single channel opened on it.
// It is exclusively used by one publisher or one consumer for its whole lifetime.
type Session struct {
	// connection holds the active AMQP connection.
	connection Connection
	// channel is the channel every publish or consume goes through.
	channel Channel
	// url is the redacted broker URI, safe to log.
	url string
	// log receives lifecycle events.
	log *zap.Logger
	// confirms is set once confirm mode has been enabled.
	confirms atomic.Bool
	// published is set by the first publish on the channel.
	published atomic.Bool
	// closed makes Close idempotent.
	closed atomic.Bool
	// mute serializes channel access for operations racing with Close.
	mute sync.Mutex
}

type options struct {
	log  *zap.Logger
	dial DialFunc
}

// Option customizes Dial.
type Option func(*options)

// WithLogger sets the logger used by the session and everything built on it.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithDialer replaces the amqp091 dialer.
func WithDialer(dial DialFunc) Option {
	return func(o *options) {
		o.dial = dial
	}
}

// Dial connects to the broker and opens a channel. There is no retry: a failed
// connect yields *ConnectionError, a failed channel open yields *ChannelError
// and the freshly opened connection is closed again.
func Dial(cfg *Client, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, ConConfEmptyError{}
	}

	o := options{log: zap.NewNop(), dial: dialAMQP}
	for _, opt := range opts {
		opt(&o)
	}

	uri := cfg.URL
	if uri == "" {
		uri = DefaultURL
	}

	safe := redact(uri)

	o.log.Info("connecting to broker", zap.String("url", safe))

	con, err := o.dial(uri, cfg.amqpConfig())
	if err != nil {
		return nil, &ConnectionError{URL: safe, Err: err}
	}

	o.log.Debug("connection", zap.Bool("open", !con.IsClosed()))

	ch, err := con.Channel()
	if err != nil {
		if cerr := con.Close(); cerr != nil {
			o.log.Warn("close connection after channel failure", zap.Error(cerr))
		}

		return nil, &ChannelError{Err: err}
	}

	o.log.Debug("channel", zap.Bool("open", !ch.IsClosed()))

	return &Session{
		connection: con,
		channel:    ch,
		url:        safe,
		log:        o.log,
	}, nil
}

// redact strips the password from a broker URI so it can be logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	return u.Redacted()
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger {
	return s.log
}

// URL returns the redacted broker URI.
func (s *Session) URL() string {
	return s.url
}

// ch returns the channel if the session is still usable.
func (s *Session) ch() (Channel, error) {
	if s == nil || s.connection == nil {
		return nil, SessionNotOpenError{}
	}

	if s.closed.Load() || s.connection.IsClosed() || s.channel.IsClosed() {
		return nil, SessionClosedError{}
	}

	return s.channel, nil
}

// EnableConfirms switches the channel into confirm mode. It must be called
// exactly once, before the first publish.
func (s *Session) EnableConfirms() error {
	ch, err := s.ch()
	if err != nil {
		return err
	}

	if s.published.Load() || !s.confirms.CompareAndSwap(false, true) {
		return ConfirmModeError{}
	}

	if err = ch.Confirm(false); err != nil {
		s.confirms.Store(false)

		return &ChannelError{Err: fmt.Errorf("enable confirms: %w", err)}
	}

	s.log.Debug("confirm mode enabled")

	return nil
}

// ConfirmsEnabled reports whether the channel is in confirm mode.
func (s *Session) ConfirmsEnabled() bool {
	return s.confirms.Load()
}

// SetQos limits the number of unacknowledged deliveries on the channel.
func (s *Session) SetQos(prefetch int) error {
	ch, err := s.ch()
	if err != nil {
		return err
	}

	if err = ch.Qos(prefetch, 0, false); err != nil {
		return &ChannelError{Err: fmt.Errorf("set qos: %w", err)}
	}

	return nil
}

// Close closes the channel and then the connection. Both steps are always
// attempted. Calling Close again is a no-op.
func (s *Session) Close() error {
	if s == nil || s.connection == nil {
		return SessionNotOpenError{}
	}

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mute.Lock()
	defer s.mute.Unlock()

	var err error

	if cerr := s.channel.Close(); cerr != nil && !errors.Is(cerr, amqp091.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("close channel: %w", cerr))
	}

	if cerr := s.connection.Close(); cerr != nil && !errors.Is(cerr, amqp091.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("close connection: %w", cerr))
	}

	s.log.Info("session closed", zap.String("url", s.url), zap.Error(err))

	return err
}

// withChannel runs fn with the session channel while holding the session lock,
// so it never interleaves with Close.
func (s *Session) withChannel(fn func(Channel) error) error {
	if s == nil || s.connection == nil {
		return SessionNotOpenError{}
	}

	s.mute.Lock()
	defer s.mute.Unlock()

	ch, err := s.ch()
	if err != nil {
		return err
	}

	return fn(ch)
}

// tempChannel opens a short-lived channel for topology operations.
func (s *Session) tempChannel() (Channel, func(), error) {
	if _, err := s.ch(); err != nil {
		return nil, nil, err
	}

	ch, err := s.connection.Channel()
	if err != nil {
		return nil, nil, &ChannelError{Err: err}
	}

	return ch, func() {
		if err := ch.Close(); err != nil {
			s.log.Warn("close channel", zap.Error(err))
		}
	}, nil
}

// DeclareExchange opens a channel, declares an exchange, and closes the channel.
func (s *Session) DeclareExchange(cfg *ExchangeDeclare) error {
	ch, done, err := s.tempChannel()
	if err != nil {
		return err
	}

	defer done()

	if err = ch.ExchangeDeclare(cfg.Name, cfg.Type, cfg.Durable, cfg.AutoDelete, cfg.Internal, false, cfg.Args); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	return nil
}

// QueueDeclareAndBind declares a queue and optionally binds it to an exchange.
// It returns the queue name, which the broker picks when cfg.Name is empty.
func (s *Session) QueueDeclareAndBind(cfg *QueueDeclareAndBind) (string, error) {
	ch, done, err := s.tempChannel()
	if err != nil {
		return "", err
	}

	defer done()

	queue, err := ch.QueueDeclare(cfg.Name, cfg.Durable, cfg.AutoDelete, cfg.Exclusive, false, cfg.Args)
	if err != nil {
		return "", fmt.Errorf("create queue: %w", err)
	}

	if cfg.NoBind {
		return queue.Name, nil
	}

	if err = ch.QueueBind(queue.Name, cfg.RoutingKey, cfg.ExchangeName, false, cfg.BindArgs); err != nil {
		return "", fmt.Errorf("create queue binding: %w", err)
	}

	return queue.Name, nil
}

// DeleteExchange removes an existing exchange by name.
func (s *Session) DeleteExchange(name string) error {
	ch, done, err := s.tempChannel()
	if err != nil {
		return err
	}

	defer done()

	if err = ch.ExchangeDelete(name, false, false); err != nil {
		return fmt.Errorf("delete exchange: %w", err)
	}

	return nil
}

// DeleteQueue removes an existing queue by name.
func (s *Session) DeleteQueue(name string) error {
	ch, done, err := s.tempChannel()
	if err != nil {
		return err
	}

	defer done()

	if _, err = ch.QueueDelete(name, false, false, false); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}

	return nil
}
