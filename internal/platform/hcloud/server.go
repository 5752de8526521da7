package hcloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/util/labels"
	"github.com/imamik/swarmzner/internal/util/retry"
)

// EnsureNodeTemplate implements cloud.Engine. The server type and image are
// checked and the SSH keys registered; the template itself lives in memory.
func (e *Engine) EnsureNodeTemplate(ctx context.Context, spec cloud.NodeTemplateSpec) (*cloud.NodeTemplate, error) {
	st, err := e.resolveServerType(ctx, spec.MachineType)
	if err != nil {
		return nil, fmt.Errorf("node template %s: %w", spec.Name, err)
	}
	if _, err := e.resolveImage(ctx, spec.Image, st); err != nil {
		return nil, fmt.Errorf("node template %s: %w", spec.Name, err)
	}
	if _, err := e.resolveSSHKeys(ctx, spec.SSHKeys, clusterLabels(spec.Labels)); err != nil {
		return nil, fmt.Errorf("node template %s: %w", spec.Name, err)
	}

	t := cloud.NodeTemplate(spec)
	e.mu.Lock()
	e.templates[spec.Name] = &t
	e.mu.Unlock()
	return &t, nil
}

// EnsureNode implements cloud.Engine. An existing server is returned as is,
// attached to the network first if needed.
func (e *Engine) EnsureNode(ctx context.Context, spec cloud.NodeSpec) (*cloud.Node, error) {
	spec = spec.Resolved()

	ctx, cancel := context.WithTimeout(ctx, e.timeouts.ServerCreate)
	defer cancel()

	server, _, err := e.client.Server.Get(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server != nil {
		if spec.NetworkID != 0 && !attachedTo(server, spec.NetworkID) {
			if server, err = e.attachServerToNetwork(ctx, server, spec.NetworkID); err != nil {
				return nil, err
			}
		}
		return toNode(server, spec.NetworkID), nil
	}

	opts, err := e.buildServerCreateOpts(ctx, spec)
	if err != nil {
		return nil, err
	}
	result, err := e.createServerWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}

	server, _, err = e.client.Server.GetByID(ctx, result.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh server %s: %w", spec.Name, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s disappeared after creation", spec.Name)
	}
	e.log.Info("Created server", "name", server.Name, "location", spec.Location, "type", spec.MachineType)
	return toNode(server, spec.NetworkID), nil
}

func (e *Engine) buildServerCreateOpts(ctx context.Context, spec cloud.NodeSpec) (hcloud.ServerCreateOpts, error) {
	st, err := e.resolveServerType(ctx, spec.MachineType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}
	img, err := e.resolveImage(ctx, spec.Image, st)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}
	keys, err := e.resolveSSHKeys(ctx, spec.SSHKeys, clusterLabels(spec.Labels))
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}
	loc, err := e.resolveLocation(ctx, spec.Location)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: st,
		Image:      img,
		SSHKeys:    keys,
		Location:   loc,
		UserData:   spec.UserData,
		Labels:     spec.Labels,
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: true,
		},
	}
	if spec.NetworkID != 0 {
		opts.Networks = []*hcloud.Network{{ID: spec.NetworkID}}
	}
	return opts, nil
}

// createServerWithRetry creates a server with exponential backoff and waits
// for its creation and follow-up actions.
func (e *Engine) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := e.client.Server.Create(ctx, opts)
		if err != nil {
			if isRejected(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	},
		retry.WithMaxRetries(e.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(e.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(e.timeouts.RetryMaxDelay))
	if err != nil {
		return result, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if result.Action == nil {
		actions = result.NextActions
	}
	if err := waitForActions(ctx, e.client, actions...); err != nil {
		return result, fmt.Errorf("failed to wait for server creation: %w", err)
	}
	return result, nil
}

// attachServerToNetwork attaches a server to a network with an
// automatically assigned address and returns the refreshed server.
func (e *Engine) attachServerToNetwork(ctx context.Context, server *hcloud.Server, networkID int64) (*hcloud.Server, error) {
	err := retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := e.client.Server.AttachToNetwork(ctx, server, hcloud.ServerAttachToNetworkOpts{
			Network: &hcloud.Network{ID: networkID},
		})
		if err != nil {
			return err
		}
		return e.client.Action.WaitFor(ctx, action)
	},
		retry.WithMaxRetries(e.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(e.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(e.timeouts.RetryMaxDelay))
	if err != nil {
		return nil, fmt.Errorf("failed to attach server %s to network: %w", server.Name, err)
	}

	refreshed, _, err := e.client.Server.GetByID(ctx, server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh server %s: %w", server.Name, err)
	}
	if refreshed == nil {
		return nil, fmt.Errorf("server %s: %w", server.Name, cloud.ErrNotFound)
	}
	return refreshed, nil
}

// GetNode implements cloud.Engine.
func (e *Engine) GetNode(ctx context.Context, name string) (*cloud.Node, error) {
	server, _, err := e.client.Server.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s: %w", name, cloud.ErrNotFound)
	}
	return toNode(server, 0), nil
}

// ListNodes implements cloud.Engine.
func (e *Engine) ListNodes(ctx context.Context, selector map[string]string) ([]*cloud.Node, error) {
	servers, err := e.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labels.Selector(selector)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	out := make([]*cloud.Node, 0, len(servers))
	for _, s := range servers {
		out = append(out, toNode(s, 0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteServer deletes the server with the given name.
func (e *Engine) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          e.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			_, resp, err := e.client.Server.DeleteWithResult(ctx, server)
			return resp, err
		},
	}).Execute(ctx, e)
}
