package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/swarm"
	"github.com/imamik/swarmzner/internal/util/async"
	"github.com/imamik/swarmzner/internal/util/naming"
	"github.com/imamik/swarmzner/internal/util/retry"
)

// ProvisionWorkers creates nodes 1..n-1 from the worker template and joins
// them to the swarm. A single-node deployment has no workers and returns
// immediately.
func (p *Provisioner) ProvisionWorkers(ctx *provisioning.Context, shape cloud.NodeTemplateSpec) error {
	count := ctx.Config.WorkerCount()
	if count == 0 {
		ctx.Observer.Printf("[%s] No workers configured", phase)
		return nil
	}

	if err := ctx.Transition(provisioning.StateWorkersCreating); err != nil {
		return err
	}

	tmpl, err := ctx.Engine.EnsureNodeTemplate(ctx, shape)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "node template", shape.Name, err)
		return provisioning.NewProvisioningError(provisioning.KindTemplate, shape.Name, err)
	}

	statuses := p.createWorkers(ctx, tmpl, count)
	ctx.State.Cluster.Workers = statuses

	if err := ctx.Transition(provisioning.StateWorkersJoining); err != nil {
		return err
	}
	p.joinWorkers(ctx, statuses)

	var failures []provisioning.Failure
	for _, st := range statuses {
		if st.Err != nil {
			failures = append(failures, provisioning.FailureFor(st.Err))
		}
	}
	if len(failures) > 0 {
		return &provisioning.DeploymentError{State: provisioning.StateWorkersJoining, Failures: failures}
	}
	return nil
}

// createWorkers ensures every worker node in parallel. Failed creations are
// recorded on the returned statuses.
func (p *Provisioner) createWorkers(ctx *provisioning.Context, tmpl *cloud.NodeTemplate, count int) []*provisioning.NodeStatus {
	statuses := make([]*provisioning.NodeStatus, count)
	tasks := make([]async.Task, count)
	for i := range count {
		index := i + 1
		tasks[i] = async.Task{
			Name: naming.Node(ctx.Config.Name, index),
			Func: func(_ context.Context) error {
				st, err := p.ensureNode(ctx, index, tmpl, cloud.NodeTemplateSpec{})
				st.Err = err
				statuses[index-1] = st
				return err
			},
		}
	}

	ctx.Observer.Printf("[%s] Creating %d workers (parallelism %d)...", phase, count, ctx.Timeouts.Parallelism)
	results := async.RunBounded(ctx, tasks, ctx.Timeouts.Parallelism)
	for i, r := range results {
		// tasks skipped after cancellation never ran
		if statuses[i] == nil {
			statuses[i] = &provisioning.NodeStatus{Index: i + 1, Role: RoleOf(i + 1), Err: provisioning.NewProvisioningError(provisioning.KindNode, r.Name, r.Err)}
		}
	}
	return statuses
}

// joinWorkers joins every created worker in parallel.
func (p *Provisioner) joinWorkers(ctx *provisioning.Context, statuses []*provisioning.NodeStatus) {
	manager := ctx.State.Cluster.Manager.Node
	managerAddr := swarm.ManagerAddr(manager)

	rt, rtErr := ctx.Runtime()

	var tasks []async.Task
	for _, st := range statuses {
		if st.Err != nil {
			continue
		}
		tasks = append(tasks, async.Task{
			Name: st.Node.Name,
			Func: func(_ context.Context) error {
				err := rtErr
				if err == nil {
					err = p.joinWorker(ctx, rt, st, managerAddr)
				}
				if err != nil {
					st.Err = &provisioning.BootstrapError{Index: st.Index, State: provisioning.StateWorkersJoining, Err: err}
					provisioning.LogResourceFailed(ctx.Observer, phase, "worker", st.Node.Name, err)
				}
				return st.Err
			},
		})
	}

	results := async.RunBounded(ctx, tasks, ctx.Timeouts.Parallelism)
	done := len(tasks) - len(async.Failed(results))
	ctx.Observer.Progress(phase, done, len(statuses))
}

// joinWorker waits for the node's engine, then reads the latest token and
// joins. Each retry re-reads the token so a republished version is used.
func (p *Provisioner) joinWorker(ctx *provisioning.Context, rt swarm.Runtime, st *provisioning.NodeStatus, managerAddr string) error {
	readyCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.DockerReady)
	err := rt.WaitReady(readyCtx, st.Node)
	cancel()
	if err != nil {
		return err
	}

	container := ctx.Config.DockerTokenSecretName
	identity := ctx.Config.ComputeSA
	policy := secrets.WaitPolicy{
		MaxWait:      ctx.Timeouts.TokenWait,
		InitialDelay: ctx.Timeouts.RetryInitialDelay,
		MaxDelay:     ctx.Timeouts.RetryMaxDelay,
	}

	return retry.WithExponentialBackoff(ctx, func() error {
		token, version, err := ctx.Broker.WaitForToken(ctx, container, identity, policy)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to read join token: %w", err))
		}

		already, err := rt.JoinWorker(ctx, st.Node, managerAddr, token)
		if err != nil {
			ctx.Metrics.WorkerJoinAttempt("error")
			return err
		}
		ctx.Metrics.WorkerJoinAttempt("ok")

		st.Joined = true
		st.AlreadyJoined = already
		if already {
			ctx.Observer.Printf("[%s] %s already in swarm", phase, st.Node.Name)
		} else {
			ctx.Observer.Printf("[%s] %s joined swarm with token version %d", phase, st.Node.Name, version)
		}
		return nil
	},
		retry.WithMaxAttempts(ctx.Timeouts.JoinAttempts),
		retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay),
		retry.WithMaxDelay(ctx.Timeouts.RetryMaxDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			ctx.Observer.Printf("[%s] Join of %s failed (attempt %d/%d), retrying in %v: %v",
				phase, st.Node.Name, attempt, ctx.Timeouts.JoinAttempts, delay, err)
		}),
	)
}
