package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds reported in a DeploymentError.
const (
	KindNetwork    = "network"
	KindSubnet     = "subnet"
	KindFirewall   = "firewall"
	KindTemplate   = "node-template"
	KindNode       = "node"
	KindBootstrap  = "bootstrap"
	KindSecret     = "secret"
	KindAccess     = "access"
	KindValidation = "validation"
)

// ProvisioningError is returned when the engine rejects a create or update.
type ProvisioningError struct {
	Kind     string
	Resource string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision %s %s: %v", e.Kind, e.Resource, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// NewProvisioningError wraps err, or returns nil when err is nil.
func NewProvisioningError(kind, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &ProvisioningError{Kind: kind, Resource: resource, Err: err}
}

// BootstrapError is returned when a node fails to initialize or join the swarm.
type BootstrapError struct {
	Index int
	State DeploymentState
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("node %d failed during %s: %v", e.Index, e.State, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// Failure is one entry of a DeploymentError.
type Failure struct {
	Kind string
	// Identity is the resource name or node index that failed.
	Identity string
	Err      error
}

func (f Failure) String() string {
	if f.Identity == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Kind, f.Identity, f.Err)
}

// DeploymentError is the final report of a failed apply.
type DeploymentError struct {
	// State is the state the deployment was in when it failed.
	State    DeploymentState
	Failures []Failure
}

func (e *DeploymentError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("deployment failed in %s: %s", e.State, e.Failures[0])
	}
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, f.String())
	}
	return fmt.Sprintf("deployment failed in %s with %d failures:\n  %s", e.State, len(e.Failures), strings.Join(lines, "\n  "))
}

// Unwrap exposes every failure cause to errors.Is and errors.As.
func (e *DeploymentError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailureFor classifies err into a Failure.
func FailureFor(err error) Failure {
	var (
		pe *ProvisioningError
		be *BootstrapError
	)
	switch {
	case errors.As(err, &pe):
		return Failure{Kind: pe.Kind, Identity: pe.Resource, Err: err}
	case errors.As(err, &be):
		return Failure{Kind: KindBootstrap, Identity: fmt.Sprintf("node %d", be.Index), Err: err}
	}
	return Failure{Kind: "phase", Err: err}
}

// AsDeploymentError returns err as a DeploymentError, building one in state
// when err is of another type.
func AsDeploymentError(err error, state DeploymentState) *DeploymentError {
	if err == nil {
		return nil
	}
	var de *DeploymentError
	if errors.As(err, &de) {
		return de
	}
	return &DeploymentError{State: state, Failures: []Failure{FailureFor(err)}}
}
