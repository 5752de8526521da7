package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/cloud"
)

// EnsureNetwork implements cloud.Engine.
func (e *Engine) EnsureNetwork(ctx context.Context, spec cloud.NetworkSpec) (*cloud.Network, error) {
	_, ipNet, err := net.ParseCIDR(spec.IPRange)
	if err != nil {
		return nil, fmt.Errorf("invalid network ip range %q: %w", spec.IPRange, err)
	}

	network, err := (&EnsureOperation[*hcloud.Network, hcloud.NetworkCreateOpts, any]{
		Name:         spec.Name,
		ResourceType: "network",
		Get:          e.client.Network.Get,
		Create:       simpleCreate(e.client.Network.Create),
		Validate: func(network *hcloud.Network) error {
			if network.IPRange.String() != ipNet.String() {
				return fmt.Errorf("network %s exists but with different IP range %s (expected %s)",
					spec.Name, network.IPRange.String(), ipNet.String())
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.NetworkCreateOpts {
			return hcloud.NetworkCreateOpts{
				Name:    spec.Name,
				IPRange: ipNet,
				Labels:  spec.Labels,
			}
		},
	}).Execute(ctx, e)
	if err != nil {
		return nil, err
	}
	return toNetwork(network), nil
}

// EnsureSubnet implements cloud.Engine. Hetzner subnets carry a single
// range; the secondary range is the container range on the nodes and is
// returned as requested.
func (e *Engine) EnsureSubnet(ctx context.Context, spec cloud.SubnetSpec) (*cloud.Subnet, error) {
	_, ipNet, err := net.ParseCIDR(spec.PrimaryCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet ip range %q: %w", spec.PrimaryCIDR, err)
	}

	network, _, err := e.client.Network.GetByID(ctx, spec.NetworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get network: %w", err)
	}
	if network == nil {
		return nil, fmt.Errorf("network %d: %w", spec.NetworkID, cloud.ErrNotFound)
	}

	subnet := cloud.Subnet(spec)
	for _, existing := range network.Subnets {
		if existing.IPRange.String() == ipNet.String() {
			return &subnet, nil
		}
		if existing.Type == hcloud.NetworkSubnetTypeCloud {
			return nil, fmt.Errorf("network %s already has subnet %s (expected %s)",
				network.Name, existing.IPRange.String(), ipNet.String())
		}
	}

	action, _, err := e.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{
		Subnet: hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     ipNet,
			NetworkZone: hcloud.NetworkZone(spec.Region),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add subnet: %w", err)
	}
	if err := e.client.Action.WaitFor(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to wait for subnet creation: %w", err)
	}
	e.log.Info("Created subnet", "network", network.Name, "range", ipNet.String(), "zone", spec.Region)
	return &subnet, nil
}

// DeleteNetwork deletes the network with the given name.
func (e *Engine) DeleteNetwork(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Network]{
		Name:         name,
		ResourceType: "network",
		Get:          e.client.Network.Get,
		Delete:       e.client.Network.Delete,
	}).Execute(ctx, e)
}

func toNetwork(n *hcloud.Network) *cloud.Network {
	out := &cloud.Network{ID: n.ID, Name: n.Name, Labels: n.Labels}
	if n.IPRange != nil {
		out.IPRange = n.IPRange.String()
	}
	return out
}
