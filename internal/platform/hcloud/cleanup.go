package hcloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/util/labels"
)

// CleanupError represents accumulated errors from cleanup operations.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	return errors.Join(e.Errors...)
}

// Add records err if it is not nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// resource is a constraint for Hetzner Cloud resources that have Name and ID fields.
type resource interface {
	*hcloud.Server | *hcloud.Firewall | *hcloud.Network | *hcloud.SSHKey
}

type resourceInfo struct {
	Name string
	ID   int64
}

func getResourceInfo[T resource](r T) resourceInfo {
	switch v := any(r).(type) {
	case *hcloud.Server:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.Firewall:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.Network:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.SSHKey:
		return resourceInfo{Name: v.Name, ID: v.ID}
	default:
		return resourceInfo{}
	}
}

// deleteResourcesByLabel lists resources and deletes each, collecting failures.
func deleteResourcesByLabel[T resource](
	ctx context.Context,
	e *Engine,
	resourceType string,
	listFn func(context.Context) ([]T, error),
	deleteFn func(context.Context, T) error,
) error {
	resources, err := listFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", resourceType, err)
	}

	var deleteErrs []error
	for _, r := range resources {
		info := getResourceInfo(r)
		e.log.Info("Deleting resource", "type", resourceType, "name", info.Name, "id", info.ID)
		if err := deleteFn(ctx, r); err != nil && !IsNotFound(err) {
			e.log.Error(err, "Failed to delete resource", "type", resourceType, "name", info.Name)
			deleteErrs = append(deleteErrs, fmt.Errorf("%s %q: %w", resourceType, info.Name, err))
		}
	}
	return errors.Join(deleteErrs...)
}

// DeleteByCluster implements cloud.Engine. Servers go first, then
// firewalls, networks and SSH keys. Every kind is attempted even when an
// earlier one fails.
func (e *Engine) DeleteByCluster(ctx context.Context, cluster string) error {
	selector := labels.SelectorForCluster(cluster)
	e.log.Info("Deleting cluster resources", "selector", selector)

	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Delete)
	defer cancel()

	cleanupErrs := &CleanupError{}
	cleanupErrs.Add(wrapKind("servers", e.deleteServersByLabel(ctx, selector)))
	cleanupErrs.Add(wrapKind("firewalls", deleteResourcesByLabel(ctx, e, "firewall",
		func(ctx context.Context) ([]*hcloud.Firewall, error) {
			return e.client.Firewall.AllWithOpts(ctx, hcloud.FirewallListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: selector},
			})
		},
		func(ctx context.Context, fw *hcloud.Firewall) error {
			_, err := e.detachAndDeleteFirewall(ctx, fw)
			return err
		},
	)))
	cleanupErrs.Add(wrapKind("networks", deleteResourcesByLabel(ctx, e, "network",
		func(ctx context.Context) ([]*hcloud.Network, error) {
			return e.client.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: selector},
			})
		},
		func(ctx context.Context, n *hcloud.Network) error {
			_, err := e.client.Network.Delete(ctx, n)
			return err
		},
	)))
	cleanupErrs.Add(wrapKind("SSH keys", deleteResourcesByLabel(ctx, e, "ssh key",
		func(ctx context.Context) ([]*hcloud.SSHKey, error) {
			return e.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: selector},
			})
		},
		func(ctx context.Context, k *hcloud.SSHKey) error {
			_, err := e.client.SSHKey.Delete(ctx, k)
			return err
		},
	)))

	e.mu.Lock()
	for name, t := range e.templates {
		if t.Labels[labels.KeyCluster] == cluster {
			delete(e.templates, name)
		}
	}
	e.mu.Unlock()

	if cleanupErrs.HasErrors() {
		return cleanupErrs
	}
	e.log.Info("Cluster resources deleted", "cluster", cluster)
	return nil
}

func wrapKind(kind string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", kind, err)
}

// deleteServersByLabel deletes all matching servers and waits until they
// are gone, since networks cannot be deleted while servers are attached.
func (e *Engine) deleteServersByLabel(ctx context.Context, selector string) error {
	list := func(ctx context.Context) ([]*hcloud.Server, error) {
		return e.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
			ListOpts: hcloud.ListOpts{LabelSelector: selector},
		})
	}

	var actions []*hcloud.Action
	err := deleteResourcesByLabel(ctx, e, "server", list,
		func(ctx context.Context, s *hcloud.Server) error {
			res, _, err := e.client.Server.DeleteWithResult(ctx, s)
			if err == nil && res != nil && res.Action != nil {
				actions = append(actions, res.Action)
			}
			return err
		})
	if err != nil {
		return err
	}
	if err := waitForActions(ctx, e.client, actions...); err != nil {
		return fmt.Errorf("failed to wait for server deletion: %w", err)
	}

	interval := e.timeouts.RetryInitialDelay
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		remaining, err := list(ctx)
		if err != nil {
			return fmt.Errorf("failed to check remaining servers: %w", err)
		}
		if len(remaining) == 0 {
			return nil
		}
		e.log.V(1).Info("Waiting for servers to be deleted", "remaining", len(remaining))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d servers still present: %w", len(remaining), ctx.Err())
		case <-ticker.C:
		}
	}
}
