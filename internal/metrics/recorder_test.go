package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/provisioning"
)

func TestRecorder_SetDeploymentState(t *testing.T) {
	t.Parallel()

	r := NewRecorder("demo")
	r.SetDeploymentState(provisioning.StateStart)
	r.SetDeploymentState(provisioning.StateReady)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.deploymentState.WithLabelValues(string(provisioning.StateReady))))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.deploymentState.WithLabelValues(string(provisioning.StateStart))))
	assert.Equal(t, len(provisioning.AllStates), testutil.CollectAndCount(r.deploymentState))
}

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()

	r := NewRecorder("demo")
	r.ManagerInitAttempt("timeout")
	r.ManagerInitAttempt("ok")
	r.TokenRead("ok")
	r.TokenRead("ok")
	r.TokenRead("not_found")
	r.WorkerJoinAttempt("error")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.managerInitTotal.WithLabelValues("timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tokenReadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tokenReadsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workerJoinTotal.WithLabelValues("error")))
}

func TestRecorder_ObservePhaseAndNodes(t *testing.T) {
	t.Parallel()

	r := NewRecorder("demo")
	r.ObservePhase("network", 2*time.Second, nil)
	r.ObservePhase("compute", time.Second, errors.New("boom"))
	r.SetNodes("manager", 1)
	r.SetNodes("worker", 2)

	assert.Equal(t, 2, testutil.CollectAndCount(r.phaseDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.nodes.WithLabelValues("worker")))
}

func TestRecorder_WriteToTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder("demo")
	r.SetDeploymentState(provisioning.StateReady)
	r.SetNodes("worker", 2)

	path := filepath.Join(t.TempDir(), "swarmzner.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `swarmzner_deployment_state{cluster="demo",state="Ready"} 1`)
	assert.Contains(t, out, `swarmzner_nodes{cluster="demo",role="worker"} 2`)
}

func TestRecorder_WriteToTextfileBadPath(t *testing.T) {
	t.Parallel()

	r := NewRecorder("demo")
	err := r.WriteToTextfile(filepath.Join(t.TempDir(), "missing", "out.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics")
}
