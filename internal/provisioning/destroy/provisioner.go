package destroy

import (
	"errors"
	"fmt"

	"github.com/imamik/swarmzner/internal/provisioning"
)

// Provisioner handles swarm destruction.
type Provisioner struct{}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Provision destroys the swarm and all associated resources. Both steps
// always run; their errors are joined.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	name := ctx.Config.Name
	ctx.Observer.Printf("[Destroy] Deleting resources of %s...", name)

	var errs []error
	if err := ctx.Engine.DeleteByCluster(ctx, name); err != nil {
		errs = append(errs, fmt.Errorf("failed to cleanup cluster resources: %w", err))
	} else {
		provisioning.LogResourceDeleted(ctx.Observer, "destroy", "cluster resources", name)
	}

	container := ctx.Config.DockerTokenSecretName
	if ctx.Broker != nil && container != "" {
		if err := ctx.Broker.DeleteContainer(ctx, container); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete join token: %w", err))
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, "destroy", "join token", container)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	ctx.Observer.Printf("[Destroy] %s destroyed", name)
	return nil
}
