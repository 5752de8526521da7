package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/swarmzner/internal/provisioning"
)

const namespace = "swarmzner"

// Recorder implements provisioning.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	deploymentState  *prometheus.GaugeVec
	phaseDuration    *prometheus.HistogramVec
	managerInitTotal *prometheus.CounterVec
	tokenReadsTotal  *prometheus.CounterVec
	workerJoinTotal  *prometheus.CounterVec
	nodes            *prometheus.GaugeVec
}

var _ provisioning.Metrics = (*Recorder)(nil)

// NewRecorder creates a recorder for the named cluster. Every series carries
// the cluster as a constant label.
func NewRecorder(cluster string) *Recorder {
	constLabels := prometheus.Labels{"cluster": cluster}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		deploymentState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "deployment_state",
				Help:        "Current deployment state (1 for the active state, 0 otherwise)",
				ConstLabels: constLabels,
			},
			[]string{"state"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "phase_duration_seconds",
				Help:        "Duration of provisioning phases in seconds",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4m
			},
			[]string{"phase", "result"},
		),
		managerInitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "manager_init_attempts_total",
				Help:        "Total number of swarm manager initialization attempts by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		tokenReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "token_reads_total",
				Help:        "Total number of join token reads by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		workerJoinTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "worker_join_attempts_total",
				Help:        "Total number of worker join attempts by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "nodes",
				Help:        "Number of swarm nodes by role",
				ConstLabels: constLabels,
			},
			[]string{"role"},
		),
	}

	r.registry.MustRegister(
		r.deploymentState,
		r.phaseDuration,
		r.managerInitTotal,
		r.tokenReadsTotal,
		r.workerJoinTotal,
		r.nodes,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SetDeploymentState marks state as the only active state.
func (r *Recorder) SetDeploymentState(state provisioning.DeploymentState) {
	for _, s := range provisioning.AllStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.deploymentState.WithLabelValues(string(s)).Set(v)
	}
}

// ObservePhase records how long a phase took.
func (r *Recorder) ObservePhase(phase string, d time.Duration, err error) {
	r.phaseDuration.WithLabelValues(phase, resultOf(err)).Observe(d.Seconds())
}

func (r *Recorder) ManagerInitAttempt(result string) {
	r.managerInitTotal.WithLabelValues(result).Inc()
}

// TokenRead matches secrets.ReadObserver so it can be passed to
// secrets.WithReadObserver directly.
func (r *Recorder) TokenRead(result string) {
	r.tokenReadsTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) WorkerJoinAttempt(result string) {
	r.workerJoinTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) SetNodes(role string, n int) {
	r.nodes.WithLabelValues(role).Set(float64(n))
}

// WriteToTextfile writes every series to path atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
