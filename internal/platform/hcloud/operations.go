package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/util/retry"
)

// CreateResult wraps a created resource and the actions to await.
type CreateResult[T any] struct {
	Resource T
	Action   *hcloud.Action
	Actions  []*hcloud.Action
}

// DeleteOperation deletes a resource by name. Missing resources are not an
// error; locked resources are retried with backoff.
type DeleteOperation[T any] struct {
	Name         string
	ResourceType string

	Get    func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete.
func (op *DeleteOperation[T]) Execute(ctx context.Context, e *Engine) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.Name)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		if _, err := op.Delete(ctx, resource); err != nil {
			if IsNotFound(err) {
				return nil
			}
			if isTransient(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.Name, err))
		}
		e.log.Info("Deleted resource", "type", op.ResourceType, "name", op.Name)
		return nil
	},
		retry.WithMaxRetries(e.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(e.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(e.timeouts.RetryMaxDelay))
}

// EnsureOperation is get-or-create for a named resource, with optional
// validation and update of an existing one.
//
//	(&EnsureOperation[*hcloud.Network, hcloud.NetworkCreateOpts, any]{
//	    Name:         name,
//	    ResourceType: "network",
//	    Get:          e.client.Network.Get,
//	    Create:       simpleCreate(e.client.Network.Create),
//	    Validate: func(n *hcloud.Network) error { ... },
//	    CreateOptsMapper: func() hcloud.NetworkCreateOpts { ... },
//	}).Execute(ctx, e)
type EnsureOperation[T any, CreateOpts any, UpdateOpts any] struct {
	Name         string
	ResourceType string

	Get    func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Create func(ctx context.Context, opts CreateOpts) (*CreateResult[T], *hcloud.Response, error)

	// Update is applied to an existing resource when set.
	Update func(ctx context.Context, resource T, opts UpdateOpts) ([]*hcloud.Action, *hcloud.Response, error)
	// Validate rejects an existing resource that cannot be reconciled.
	Validate func(resource T) error

	CreateOptsMapper func() CreateOpts
	UpdateOptsMapper func(resource T) UpdateOpts
}

// Execute returns the existing resource (validated and updated) or creates it.
func (op *EnsureOperation[T, CreateOpts, UpdateOpts]) Execute(ctx context.Context, e *Engine) (T, error) {
	var zero T

	resource, _, err := op.Get(ctx, op.Name)
	if err != nil {
		return zero, fmt.Errorf("failed to get %s: %w", op.ResourceType, err)
	}

	if !reflect.ValueOf(resource).IsNil() {
		if op.Validate != nil {
			if err := op.Validate(resource); err != nil {
				return zero, err
			}
		}
		if op.Update != nil && op.UpdateOptsMapper != nil {
			actions, _, err := op.Update(ctx, resource, op.UpdateOptsMapper(resource))
			if err != nil {
				return zero, fmt.Errorf("failed to update %s: %w", op.ResourceType, err)
			}
			if err := waitForActions(ctx, e.client, actions...); err != nil {
				return zero, fmt.Errorf("failed to wait for %s update: %w", op.ResourceType, err)
			}
		}
		return resource, nil
	}

	var result *CreateResult[T]
	err = retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := op.Create(ctx, op.CreateOptsMapper())
		if err != nil {
			if isTransient(err) {
				return err
			}
			return retry.Fatal(err)
		}
		result = res
		return nil
	},
		retry.WithMaxRetries(e.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(e.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(e.timeouts.RetryMaxDelay))
	if err != nil {
		return zero, fmt.Errorf("failed to create %s: %w", op.ResourceType, err)
	}

	if err := waitForActionResult(ctx, e.client, result); err != nil {
		return zero, fmt.Errorf("failed to wait for %s creation: %w", op.ResourceType, err)
	}
	e.log.Info("Created resource", "type", op.ResourceType, "name", op.Name)
	return result.Resource, nil
}

func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, actions...)
}

func waitForActionResult[T any](ctx context.Context, client *hcloud.Client, result *CreateResult[T]) error {
	actions := result.Actions
	if result.Action != nil {
		actions = append([]*hcloud.Action{result.Action}, actions...)
	}
	return waitForActions(ctx, client, actions...)
}

// simpleCreate adapts create functions that return the resource directly.
func simpleCreate[T any, Opts any](
	createFn func(context.Context, Opts) (T, *hcloud.Response, error),
) func(context.Context, Opts) (*CreateResult[T], *hcloud.Response, error) {
	return func(ctx context.Context, opts Opts) (*CreateResult[T], *hcloud.Response, error) {
		resource, resp, err := createFn(ctx, opts)
		if err != nil {
			return nil, resp, err
		}
		return &CreateResult[T]{Resource: resource}, resp, nil
	}
}
