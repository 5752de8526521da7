package compute

import (
	"fmt"

	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/util/labels"
)

const phase = "compute"

// Provisioner handles the swarm bootstrap (manager, token hand-off, workers).
type Provisioner struct{}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
// The deployment must be in StateNetworkReady; it ends in StateReady.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.Keypair == nil {
		return fmt.Errorf("compute requires the deployer keypair")
	}
	shape, err := nodeShape(ctx)
	if err != nil {
		return err
	}

	token, err := p.ProvisionManager(ctx, shape)
	if err != nil {
		return err
	}
	if err := p.PublishToken(ctx, token); err != nil {
		return err
	}
	if err := p.ProvisionWorkers(ctx, shape); err != nil {
		return err
	}

	ctx.Metrics.SetNodes(labels.RoleManager, 1)
	ctx.Metrics.SetNodes(labels.RoleWorker, ctx.State.Cluster.JoinedWorkers())
	ctx.Observer.Printf("[%s] Swarm ready with 1 manager and %d workers", phase, ctx.State.Cluster.JoinedWorkers())
	return ctx.Transition(provisioning.StateReady)
}
