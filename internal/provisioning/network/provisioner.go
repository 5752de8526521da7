package network

import (
	"errors"
	"strconv"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/util/labels"
	"github.com/imamik/swarmzner/internal/util/naming"
)

const phase = "network"

// Provisioner handles network provisioning (network, subnet, firewall rules).
type Provisioner struct{}

// NewProvisioner creates a new network provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	handle, err := p.Reconcile(ctx)
	if err != nil {
		return err
	}
	ctx.State.Network = handle
	return ctx.Transition(provisioning.StateNetworkReady)
}

// Reconcile validates the network configuration and ensures the network,
// its subnet and every firewall rule. It is idempotent.
func (p *Provisioner) Reconcile(ctx *provisioning.Context) (*cloud.NetworkHandle, error) {
	if err := validate(ctx.Config); err != nil {
		return nil, err
	}

	handle := &cloud.NetworkHandle{}
	if err := p.ProvisionNetwork(ctx, handle); err != nil {
		return nil, err
	}
	if err := p.ProvisionFirewall(ctx, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// validate returns a *config.ValidationError for any network error.
// Warnings were already reported by the validation phase.
func validate(cfg *config.Config) error {
	var errs []config.Issue
	for _, i := range cfg.ValidateNetwork() {
		if i.Severity == config.SeverityError {
			errs = append(errs, i)
		}
	}
	if len(errs) > 0 {
		return &config.ValidationError{Issues: errs}
	}
	return nil
}

// ProvisionNetwork ensures the network and its single subnet.
func (p *Provisioner) ProvisionNetwork(ctx *provisioning.Context, handle *cloud.NetworkHandle) error {
	cfg := ctx.Config
	primary, err := config.ParseIPv4CIDR(cfg.SubnetCIDRRange)
	if err != nil {
		return &config.ValidationError{Issues: []config.Issue{{Field: "subnet_cidr_range", Message: err.Error(), Severity: config.SeverityError}}}
	}

	name := naming.Network(cfg.Name)
	ctx.Observer.Printf("[%s] Reconciling network %s (%s)...", phase, name, primary)

	nw, err := ctx.Engine.EnsureNetwork(ctx, cloud.NetworkSpec{
		Name:    name,
		IPRange: primary.String(),
		Labels:  labels.NewLabelBuilder(cfg.Name).Build(),
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "network", name, err)
		return provisioning.NewProvisioningError(provisioning.KindNetwork, name, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "network", nw.Name, strconv.FormatInt(nw.ID, 10))
	handle.Network = nw

	subnetName := naming.Subnet(cfg.Name)
	subnet, err := ctx.Engine.EnsureSubnet(ctx, cloud.SubnetSpec{
		NetworkID:     nw.ID,
		Name:          subnetName,
		Region:        cfg.Region,
		PrimaryCIDR:   primary.String(),
		SecondaryName: naming.SecondaryRange,
		SecondaryCIDR: config.SecondaryCIDR,
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "subnet", subnetName, err)
		return provisioning.NewProvisioningError(provisioning.KindSubnet, subnetName, err)
	}
	if subnet.PrimaryCIDR != primary.String() || subnet.SecondaryCIDR != config.SecondaryCIDR {
		return provisioning.NewProvisioningError(provisioning.KindSubnet, subnetName,
			errors.New("engine returned a subnet with different ranges"))
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "subnet", subnetName, subnet.PrimaryCIDR)
	handle.Subnet = subnet
	return nil
}
