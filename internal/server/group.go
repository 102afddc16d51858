// Package server coordinates the long-running pieces of a process. A
// Group starts its components together, waits for the first failure or
// a termination signal, and winds the components down in reverse order
// under a stop deadline.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultStopTimeout bounds each component's Stop call when the Group
// was built without an explicit timeout.
const DefaultStopTimeout = 15 * time.Second

// Component is a long-running piece of the process. Start blocks until
// the component exits or fails. Stop asks it to wind down; ctx carries
// the stop deadline.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

// Funcs adapts a pair of functions into a Component. A nil function is
// a no-op for that phase.
type Funcs struct {
	OnStart func() error
	OnStop  func(ctx context.Context) error
}

// Start runs the OnStart hook when one is set.
func (f *Funcs) Start() error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart()
}

// Stop runs the OnStop hook when one is set.
func (f *Funcs) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Group owns a set of named components and runs them as one unit.
// Components start concurrently in registration order and stop in
// reverse registration order.
type Group struct {
	logger      *zap.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	members []member
}

type member struct {
	name string
	comp Component
}

// NewGroup creates a Group. stopTimeout bounds each component's Stop
// call during shutdown; a non-positive value falls back to
// DefaultStopTimeout.
//
// Precondition: logger must be non-nil.
func NewGroup(logger *zap.Logger, stopTimeout time.Duration) *Group {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Group{logger: logger, stopTimeout: stopTimeout}
}

// Add registers a named component. Components must be added before Run
// is called.
//
// Precondition: name must be non-empty; comp must be non-nil.
func (g *Group) Add(name string, comp Component) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, member{name: name, comp: comp})
}

// Run starts every component and blocks until one of them fails, ctx is
// cancelled, or the process receives SIGINT or SIGTERM. It then stops
// the components in reverse order. A component whose Start returns nil
// is treated as finished and does not trigger shutdown.
//
// Postcondition: Every component's Stop has returned when Run returns.
// Run returns the failure that triggered shutdown, or nil when shutdown
// was requested by signal or context cancellation.
func (g *Group) Run(ctx context.Context) error {
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan error, len(g.members))
	for _, m := range g.members {
		go func() {
			g.logger.Info("component starting",
				zap.String("component", m.name),
			)
			if err := m.comp.Start(); err != nil {
				failures <- fmt.Errorf("server: component %s: %w", m.name, err)
				cancel()
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	var cause error
	select {
	case sig := <-signals:
		g.logger.Info("signal received, stopping",
			zap.String("signal", sig.String()),
		)
	case cause = <-failures:
		g.logger.Error("component failed, stopping", zap.Error(cause))
	case <-ctx.Done():
		// A failing component cancels ctx right after reporting, so
		// prefer the failure when both are pending.
		select {
		case cause = <-failures:
			g.logger.Error("component failed, stopping", zap.Error(cause))
		default:
			g.logger.Info("context cancelled, stopping")
		}
	}

	g.stopAll()

	g.logger.Info("stopped",
		zap.Int("components", len(g.members)),
		zap.Duration("uptime", time.Since(started)),
	)
	return cause
}

func (g *Group) stopAll() {
	for i := len(g.members) - 1; i >= 0; i-- {
		m := g.members[i]
		begin := time.Now()
		stopCtx, cancel := context.WithTimeout(context.Background(), g.stopTimeout)
		if err := m.comp.Stop(stopCtx); err != nil {
			g.logger.Warn("component stop failed",
				zap.String("component", m.name),
				zap.Error(err),
			)
		} else {
			g.logger.Info("component stopped",
				zap.String("component", m.name),
				zap.Duration("elapsed", time.Since(begin)),
			)
		}
		cancel()
	}
}
