package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
)

func TestApply_ProvisionsSwarm(t *testing.T) {
	h := newHarness(t, generatedKeyConfig(t, 3))
	metricsFile := filepath.Join(t.TempDir(), "swarmzner.prom")

	err := Apply(context.Background(), ApplyOptions{ConfigPath: "swarm.yaml", MetricsFile: metricsFile})
	require.NoError(t, err)

	assert.Equal(t, []string{"demo-swarm-node-0", "demo-swarm-node-1", "demo-swarm-node-2"}, h.engine.NodeNames())
	assert.True(t, h.runtime.IsManager("demo-swarm-node-0"))
	assert.True(t, h.runtime.IsMember("demo-swarm-node-2"))

	out := h.out.String()
	assert.Contains(t, out, "swarmzner apply: demo")
	assert.Contains(t, out, "Ready")
	assert.Contains(t, out, "demo-swarm-network")
	assert.Contains(t, out, "version 1 (published)")
	assert.NotContains(t, out, "SWMTKN")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `swarmzner_deployment_state{cluster="demo",state="Ready"} 1`)
	assert.Contains(t, string(data), `swarmzner_nodes{cluster="demo",role="worker"} 2`)
	assert.Contains(t, string(data), `swarmzner_token_reads_total{cluster="demo",result="ok"}`)
}

func TestApply_ReapplyReusesToken(t *testing.T) {
	h := newHarness(t, generatedKeyConfig(t, 2))

	require.NoError(t, Apply(context.Background(), ApplyOptions{}))
	created := h.engine.Creates["EnsureNode"]

	h.out.Reset()
	require.NoError(t, Apply(context.Background(), ApplyOptions{}))

	assert.Equal(t, created, h.engine.Creates["EnsureNode"])
	assert.Contains(t, h.out.String(), "version 1 (reused)")
	assert.Contains(t, h.out.String(), "joined (existing)")
}

func TestApply_ManagerFailureReported(t *testing.T) {
	h := newHarness(t, generatedKeyConfig(t, 3))
	h.runtime.FailInit(errors.New("daemon unreachable"), errors.New("daemon unreachable"))

	err := Apply(context.Background(), ApplyOptions{})
	require.Error(t, err)

	var de *provisioning.DeploymentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, provisioning.StateManagerInitializing, de.State)

	out := h.out.String()
	assert.Contains(t, out, "Failed (in ManagerInitializing)")
	assert.Contains(t, out, "daemon unreachable")
	assert.Equal(t, []string{"demo-swarm-node-0"}, h.engine.NodeNames())
}

func TestApply_ConfigError(t *testing.T) {
	h := newHarness(t, nil)
	loadConfigFile = func(string) (*config.Config, []config.Issue, error) {
		return nil, nil, errors.New("failed to read config file: missing")
	}

	err := Apply(context.Background(), ApplyOptions{ConfigPath: "missing.yaml"})
	require.ErrorContains(t, err, "missing")
	assert.Empty(t, h.engine.Calls)
	assert.Empty(t, h.out.String())
}

func TestApply_MissingCredentials(t *testing.T) {
	h := newHarness(t, generatedKeyConfig(t, 1))
	loadCredentials = func() config.Credentials { return config.Credentials{} }

	err := Apply(context.Background(), ApplyOptions{})
	require.ErrorContains(t, err, "HCLOUD_TOKEN")
	assert.Empty(t, h.engine.Calls)
}

func TestApply_MetricsFileError(t *testing.T) {
	newHarness(t, generatedKeyConfig(t, 1))

	err := Apply(context.Background(), ApplyOptions{
		MetricsFile: filepath.Join(t.TempDir(), "missing", "out.prom"),
	})
	require.ErrorContains(t, err, "failed to write metrics")
}
