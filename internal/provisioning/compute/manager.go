package compute

import (
	"context"
	"errors"
	"time"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/util/retry"
)

// InitResult is the outcome of the manager initialization.
type InitResult struct {
	Token secrets.Token
	// AlreadyInitialized is true when the manager was active before this apply.
	AlreadyInitialized bool
}

// ProvisionManager ensures node 0, waits for its Docker engine and
// initializes the swarm on it. It returns the result of the initialization.
func (p *Provisioner) ProvisionManager(ctx *provisioning.Context, shape cloud.NodeTemplateSpec) (*InitResult, error) {
	if err := ctx.Transition(provisioning.StateManagerCreating); err != nil {
		return nil, err
	}

	status, err := p.ensureNode(ctx, ManagerIndex, nil, shape)
	ctx.State.Cluster.Manager = status
	if err != nil {
		status.Err = err
		return nil, err
	}

	if err := ctx.Transition(provisioning.StateManagerInitializing); err != nil {
		return nil, err
	}

	res, err := p.initManager(ctx, status.Node)
	if err != nil {
		status.Err = err
		return nil, &provisioning.BootstrapError{Index: ManagerIndex, State: provisioning.StateManagerInitializing, Err: err}
	}
	status.Joined = true
	status.AlreadyJoined = res.AlreadyInitialized
	return res, nil
}

func (p *Provisioner) initManager(ctx *provisioning.Context, node *cloud.Node) (*InitResult, error) {
	rt, err := ctx.Runtime()
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.DockerReady)
	err = rt.WaitReady(readyCtx, node)
	cancel()
	if err != nil {
		return nil, err
	}

	res := &InitResult{}
	err = retry.WithExponentialBackoff(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.ManagerInit)
		defer cancel()

		token, already, err := rt.InitManager(attemptCtx, node)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				ctx.Metrics.ManagerInitAttempt("timeout")
			} else {
				ctx.Metrics.ManagerInitAttempt("error")
			}
			return err
		}
		ctx.Metrics.ManagerInitAttempt("ok")
		res.Token, res.AlreadyInitialized = token, already
		return nil
	},
		retry.WithMaxAttempts(ctx.Timeouts.ManagerInitAttempts),
		retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay),
		retry.WithMaxDelay(ctx.Timeouts.RetryMaxDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			ctx.Observer.Printf("[%s] Swarm init on %s failed (attempt %d/%d), retrying in %v: %v",
				phase, node.Name, attempt, ctx.Timeouts.ManagerInitAttempts, delay, err)
		}),
	)
	if err != nil {
		return nil, err
	}

	if res.AlreadyInitialized {
		ctx.Observer.Printf("[%s] Swarm already initialized on %s", phase, node.Name)
	} else {
		ctx.Observer.Printf("[%s] Swarm initialized on %s", phase, node.Name)
	}
	return res, nil
}
