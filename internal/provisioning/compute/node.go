package compute

import (
	"fmt"
	"strconv"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/placement"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/util/labels"
	"github.com/imamik/swarmzner/internal/util/naming"
)

// ManagerIndex is the index of the single manager node.
const ManagerIndex = 0

// RoleOf returns the swarm role of the node at index.
func RoleOf(index int) string {
	if index == ManagerIndex {
		return labels.RoleManager
	}
	return labels.RoleWorker
}

func nodeLabels(ctx *provisioning.Context, role string) *labels.LabelBuilder {
	return labels.NewLabelBuilder(ctx.Config.Name).
		WithRole(role).
		WithIdentity(ctx.Config.ComputeSA)
}

// ensureNode creates (or finds) the node at index. Workers are created from
// tmpl; the manager carries its full shape.
func (p *Provisioner) ensureNode(ctx *provisioning.Context, index int, tmpl *cloud.NodeTemplate, shape cloud.NodeTemplateSpec) (*provisioning.NodeStatus, error) {
	cfg := ctx.Config
	zone := placement.ZoneOf(index)
	role := RoleOf(index)
	name := naming.Node(cfg.Name, index)
	status := &provisioning.NodeStatus{Index: index, Role: role, Zone: zone}

	location, err := placement.Location(cfg.Region, zone)
	if err != nil {
		return status, provisioning.NewProvisioningError(provisioning.KindNode, name, err)
	}
	if ctx.State.Network == nil || ctx.State.Network.Network == nil {
		return status, provisioning.NewProvisioningError(provisioning.KindNode, name, fmt.Errorf("network has not been provisioned"))
	}

	spec := cloud.NodeSpec{
		Name:      name,
		Location:  location,
		NetworkID: ctx.State.Network.Network.ID,
		Labels: nodeLabels(ctx, role).
			WithIndex(index).
			WithZone(string(zone)).
			Build(),
	}
	if tmpl != nil {
		spec.Template = tmpl
	} else {
		spec.MachineType = shape.MachineType
		spec.Image = shape.Image
		spec.UserData = shape.UserData
		spec.SSHKeys = shape.SSHKeys
	}

	node, err := ctx.Engine.EnsureNode(ctx, spec)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "node", name, err)
		return status, provisioning.NewProvisioningError(provisioning.KindNode, name, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "node", node.Name, strconv.FormatInt(node.ID, 10))
	status.Node = node
	return status, nil
}

// nodeShape is the machine shape shared by all nodes.
func nodeShape(ctx *provisioning.Context) (cloud.NodeTemplateSpec, error) {
	userData, err := UserData(ctx.State.Keypair)
	if err != nil {
		return cloud.NodeTemplateSpec{}, err
	}
	keys := make(map[string]string, len(ctx.State.Keypair.Metadata))
	for user, key := range ctx.State.Keypair.Metadata {
		keys[naming.SSHKey(ctx.Config.Name, user)] = key
	}
	return cloud.NodeTemplateSpec{
		Name:        naming.NodeTemplate(ctx.Config.Name),
		MachineType: ctx.Config.MachineType,
		Image:       ctx.Config.InstanceImageID,
		UserData:    userData,
		SSHKeys:     keys,
		Labels:      nodeLabels(ctx, labels.RoleWorker).Build(),
	}, nil
}
