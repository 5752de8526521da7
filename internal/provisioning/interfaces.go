package provisioning

import "time"

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// Metrics receives deployment measurements. Implemented by metrics.Recorder.
type Metrics interface {
	SetDeploymentState(state DeploymentState)
	ObservePhase(phase string, d time.Duration, err error)
	ManagerInitAttempt(result string)
	TokenRead(result string)
	WorkerJoinAttempt(result string)
	SetNodes(role string, n int)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) SetDeploymentState(DeploymentState) {}
func (NopMetrics) ObservePhase(string, time.Duration, error) {}
func (NopMetrics) ManagerInitAttempt(string) {}
func (NopMetrics) TokenRead(string) {}
func (NopMetrics) WorkerJoinAttempt(string) {}
func (NopMetrics) SetNodes(string, int) {}
