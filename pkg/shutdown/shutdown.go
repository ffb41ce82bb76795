// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package shutdown turns an interrupt into an orderly stop:
// Running, then Draining while in-flight work settles, then Stopped once
// the broker session is closed.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// State is the coordinator lifecycle position.
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "stopped"
	}
}

// DefaultDrainTimeout bounds how long in-flight work may take after an interrupt.
const DefaultDrainTimeout = 5 * time.Second

// Notifier registers a channel for process signals.
type Notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal) error
	Stop(c chan<- os.Signal)
}

type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) error {
	signal.Notify(c, sig...)

	return nil
}

func (osNotifier) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// SignalError is returned when the interrupt listener cannot be registered.
type SignalError struct {
	Err error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("register interrupt listener: %v", e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// Coordinator waits for SIGINT or SIGTERM and then stops the subscriber.
type Coordinator struct {
	log          *zap.Logger
	notifier     Notifier
	drainTimeout time.Duration
	state        atomic.Int32
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithNotifier replaces the os/signal based notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithDrainTimeout bounds the Draining state. Zero or less keeps the default.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// New returns a Coordinator in the Running state.
func New(log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}

	c := &Coordinator{
		log:          log,
		notifier:     osNotifier{},
		drainTimeout: DefaultDrainTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Wait blocks until an interrupt arrives or ctx is done. It returns the
// signal, or nil when ctx ended the wait. A failed registration is returned
// as *SignalError and moves the coordinator straight to Stopped.
func (c *Coordinator) Wait(ctx context.Context) (os.Signal, error) {
	sigCh := make(chan os.Signal, 1)

	if err := c.notifier.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM); err != nil {
		c.state.Store(int32(Stopped))
		c.log.Error("interrupt listener unavailable, no graceful close will be attempted", zap.Error(err))

		return nil, &SignalError{Err: err}
	}

	defer c.notifier.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sig, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Run waits for an interrupt, drains in-flight work within the drain timeout
// and closes closer. The close itself is awaited without a deadline.
// Only a signal registration failure or a close failure is returned; a drain
// that runs out of time is logged and the close goes ahead.
func (c *Coordinator) Run(ctx context.Context, drain func(context.Context) error, closer io.Closer) error {
	sig, err := c.Wait(ctx)
	if err != nil {
		return err
	}

	c.state.Store(int32(Draining))

	if sig != nil {
		c.log.Info("interrupt received, shutting down", zap.Stringer("signal", sig))
	} else {
		c.log.Info("shutting down")
	}

	if drain != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), c.drainTimeout)

		if err = drain(drainCtx); err != nil {
			c.log.Warn("in-flight work abandoned", zap.Duration("timeout", c.drainTimeout), zap.Error(err))
		}

		cancel()
	}

	defer func() {
		c.state.Store(int32(Stopped))
		c.log.Info("stopped")
	}()

	if closer == nil {
		return nil
	}

	if err = closer.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}
