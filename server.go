// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/GwynCerbin/rabbit_tools/pkg/adapter"
	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/GwynCerbin/rabbit_tools/pkg/metrics"
	"go.uber.org/zap"
)

// Listener encapsulates common parameters of a message‑queue subscriber.
//   - consumer: an object that implements the broker.Consumer interface.
//   - gos: desired number of concurrent goroutines used by an Instance.
//   - strict: whether a handler error stops the subscriber.
//
// Listener itself does not process messages; it acts as a factory that
// creates an Instance where the real work happens.
type Listener struct {
	consumer broker.Consumer
	gos      int
	strict   bool
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewListener constructs a Listener with a default parallelism level of 1,
// which handles deliveries strictly in arrival order.
func NewListener(consumer broker.Consumer) *Listener {
	return &Listener{
		gos:      1,
		consumer: consumer,
		log:      zap.NewNop(),
	}
}

// SetConcurrency sets the number of goroutines that will be spawned later
// inside an Instance. It validates the input (n >= 1) and clamps the value
// by runtime.GOMAXPROCS(0).
func (l *Listener) SetConcurrency(n int) error {
	if n < 1 {
		return fmt.Errorf("invalid goroutines count: %d", n)
	}

	l.gos = min(n, runtime.GOMAXPROCS(0))

	return nil
}

// SetStrict makes a handler error fatal. By default the delivery is rejected
// without requeue and the loop continues.
func (l *Listener) SetStrict(strict bool) {
	l.strict = strict
}

// SetLogger overrides the default no-op logger.
func (l *Listener) SetLogger(log *zap.Logger) {
	if log != nil {
		l.log = log
	}
}

// SetMetrics sets the collectors updated per delivery.
func (l *Listener) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// Instance is a running listener created from Listener.
//   - workChan: unbuffered channel through which the dispatcher feeds
//     handler calls to the workers.
//   - wg:       tracks workers, each of them owns at most one delivery.
//   - quit:     closed by Shutdown or a fatal worker error to stop intake.
//   - fatal:    first fatal error raised by a worker.
type Instance struct {
	workChan chan func()
	wg       sync.WaitGroup
	gos      int
	handler  broker.Handler
	consumer broker.Consumer
	strict   bool
	log      *zap.Logger
	metrics  *metrics.Metrics

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	fatal    chan error

	mu      sync.Mutex
	started bool
}

// Init binds a handler and returns a ready‑to‑run Instance.
// To start with another handler, create a new Instance instead of mutating the old one.
func (l *Listener) Init(handler broker.Handler) *Instance {
	return &Instance{
		workChan: make(chan func()),
		gos:      l.gos,
		handler:  handler,
		consumer: l.consumer,
		strict:   l.strict,
		log:      l.log,
		metrics:  l.metrics,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		fatal:    make(chan error, 1),
	}
}

// ListenAndServe starts the worker pool and pulls deliveries from the consumer
// until ctx is done, Shutdown is called or the subscription ends.
// Each delivery is handled and then acknowledged exactly once.
//
// It returns nil on a requested stop, the consumer error when the broker
// cancelled the subscription, and the first fatal worker error (an
// acknowledgment failure, or a handler failure in strict mode).
// Workers may still be finishing when it returns; Shutdown waits for them.
func (l *Instance) ListenAndServe(ctx context.Context) error {
	if l.handler == nil {
		return EmptyHandlerError{}
	}

	l.mu.Lock()
	if l.started {
		l.mu.Unlock()

		return errors.New("listener already started")
	}

	l.started = true
	l.mu.Unlock()

	handlerCtx := context.WithoutCancel(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-l.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for i := 0; i < l.gos; i++ {
		l.wg.Add(1)

		go runner(l.workChan, &l.wg)
	}

	defer func() {
		close(l.workChan)

		go func() {
			l.wg.Wait()
			close(l.done)
		}()
	}()

	for {
		msg, err := l.consumer.Consume(ctx)
		if err != nil {
			if ferr := l.fatalErr(); ferr != nil {
				return ferr
			}

			var delErr *adapter.DeliveryError

			switch {
			case ctx.Err() != nil, errors.Is(err, adapter.ConsumerClosedError{}):
				l.log.Info("delivery loop stopped")

				return nil
			case errors.As(err, &delErr):
				l.log.Warn("skipping delivery", zap.Error(err))

				continue
			default:
				l.log.Error("delivery stream ended", zap.Error(err))

				return err
			}
		}

		l.metrics.IncDeliveries()

		select {
		case l.workChan <- func() { l.process(handlerCtx, msg) }:
		case <-ctx.Done():
			// never handed to a worker; the broker redelivers it once the channel closes
			l.log.Debug("delivery left unacknowledged", zap.Uint64("delivery_tag", msg.DeliveryTag()))

			if ferr := l.fatalErr(); ferr != nil {
				return ferr
			}

			return nil
		}
	}
}

// process handles one delivery and settles it.
func (l *Instance) process(ctx context.Context, msg broker.Message) {
	l.metrics.AddInFlight(1)
	defer l.metrics.AddInFlight(-1)

	if err := l.handler.Handle(ctx, msg); err != nil {
		l.metrics.IncHandlerErrors()

		if l.strict {
			l.fail(&HandlerError{DeliveryTag: msg.DeliveryTag(), RoutingKey: msg.RoutingKey(), Err: err})

			return
		}

		l.log.Warn("handler failed, rejecting delivery",
			zap.Uint64("delivery_tag", msg.DeliveryTag()),
			zap.String("routing_key", msg.RoutingKey()),
			zap.Error(err))

		if err = msg.Reject(); err != nil {
			l.fail(err)

			return
		}

		l.metrics.IncSettled("reject")

		return
	}

	if err := msg.Ack(); err != nil {
		l.fail(err)

		return
	}

	l.metrics.IncSettled("ack")
}

// fail records the first fatal error and stops intake.
func (l *Instance) fail(err error) {
	l.log.Error("fatal delivery error", zap.Error(err))

	select {
	case l.fatal <- err:
	default:
	}

	l.stop()
}

func (l *Instance) fatalErr() error {
	select {
	case err := <-l.fatal:
		return err
	default:
		return nil
	}
}

func (l *Instance) stop() {
	l.quitOnce.Do(func() {
		close(l.quit)
	})
}

// Shutdown stops intake and waits until in-flight deliveries are settled or
// ctx is done, whichever comes first. It does not close the consumer.
func (l *Instance) Shutdown(ctx context.Context) error {
	l.stop()

	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain in-flight deliveries: %w", ctx.Err())
	}
}

// runner executes tasks from workChan and signals completion via WaitGroup.
func runner(workChan chan func(), wg *sync.WaitGroup) {
	for work := range workChan {
		work()
	}

	wg.Done()
}
