package provisioning

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/swarm"
)

// RuntimeFactory builds the swarm runtime once the deployer keypair is known.
type RuntimeFactory func(kp *Keypair) (swarm.Runtime, error)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Timeouts *config.Timeouts
	State    *State
	Engine   cloud.Engine
	Broker   *secrets.Broker
	Observer Observer
	Metrics  Metrics
	Log      logr.Logger

	runtime        swarm.Runtime
	runtimeFactory RuntimeFactory
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithTimeouts overrides the environment-derived timeouts.
func WithTimeouts(t *config.Timeouts) ContextOption {
	return func(c *Context) { c.Timeouts = t }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) ContextOption {
	return func(c *Context) { c.Observer = o }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ContextOption {
	return func(c *Context) { c.Metrics = m }
}

// WithLogger sets the logger. The default observer logs through it.
func WithLogger(l logr.Logger) ContextOption {
	return func(c *Context) { c.Log = l }
}

// WithRuntime sets a fixed swarm runtime.
func WithRuntime(r swarm.Runtime) ContextOption {
	return func(c *Context) { c.runtime = r }
}

// WithRuntimeFactory sets how the runtime is built from the keypair.
func WithRuntimeFactory(f RuntimeFactory) ContextOption {
	return func(c *Context) { c.runtimeFactory = f }
}

// NewContext creates a new provisioning context.
func NewContext(ctx context.Context, cfg *config.Config, engine cloud.Engine, broker *secrets.Broker, opts ...ContextOption) *Context {
	c := &Context{
		Context: ctx,
		Config:  cfg,
		State:   NewState(),
		Engine:  engine,
		Broker:  broker,
		Metrics: NopMetrics{},
		Log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Timeouts == nil {
		c.Timeouts = config.LoadTimeouts()
	}
	if c.Observer == nil {
		c.Observer = NewLogrObserver(c.Log)
	}

	metrics := c.Metrics
	observer := c.Observer
	c.State.Deployment.OnTransition(func(t Transition) {
		metrics.SetDeploymentState(t.To)
		observer.Event(Event{
			Type:    EventStateChanged,
			Message: fmt.Sprintf("%s -> %s", t.From, t.To),
			Fields:  map[string]string{"from": string(t.From), "to": string(t.To)},
		})
	})
	metrics.SetDeploymentState(StateStart)
	return c
}

// Runtime returns the swarm runtime, building it from the keypair on first use.
func (c *Context) Runtime() (swarm.Runtime, error) {
	if c.runtime != nil {
		return c.runtime, nil
	}
	if c.runtimeFactory == nil {
		return nil, fmt.Errorf("no swarm runtime configured")
	}
	if c.State.Keypair == nil {
		return nil, fmt.Errorf("swarm runtime requires the deployer keypair")
	}
	r, err := c.runtimeFactory(c.State.Keypair)
	if err != nil {
		return nil, fmt.Errorf("failed to build swarm runtime: %w", err)
	}
	c.runtime = r
	return r, nil
}

// Transition moves the deployment to state.
func (c *Context) Transition(state DeploymentState) error {
	return c.State.Deployment.Transition(state)
}
