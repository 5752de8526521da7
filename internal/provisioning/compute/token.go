package compute

import (
	"errors"
	"fmt"

	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/secrets"
)

// PublishToken stores the worker join token and grants the node identity
// read access. A manager that was already initialized keeps the published
// token; a fresh swarm always replaces whatever was stored before.
func (p *Provisioner) PublishToken(ctx *provisioning.Context, init *InitResult) error {
	cfg := ctx.Config
	container := cfg.DockerTokenSecretName
	wrap := func(err error) error {
		return provisioning.NewProvisioningError(provisioning.KindSecret, container, err)
	}

	published := false
	if init.AlreadyInitialized {
		v, err := ctx.Broker.LatestVersion(ctx, container)
		switch {
		case err == nil:
			ctx.State.TokenVersion = v
			published = true
			ctx.Observer.Printf("[%s] Join token already published as version %d", phase, v)
		case !errors.Is(err, secrets.ErrNotFound):
			return wrap(err)
		}
	}

	if !published {
		v, err := ctx.Broker.PublishToken(ctx, container, init.Token, secrets.PublishOptions{Overwrite: true})
		if err != nil {
			return wrap(err)
		}
		ctx.State.TokenVersion = v
		ctx.State.TokenRepublished = true
		provisioning.LogResourceCreated(ctx.Observer, phase, "join token", container, fmt.Sprintf("v%d", v))
	}

	if err := ctx.Broker.GrantRead(ctx, container, cfg.ComputeSA); err != nil {
		return wrap(err)
	}
	return ctx.Transition(provisioning.StateTokenPublished)
}
