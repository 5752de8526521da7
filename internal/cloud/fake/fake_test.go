package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/util/labels"
)

func TestEngine_NodeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := New()

	nw, err := e.EnsureNetwork(ctx, cloud.NetworkSpec{Name: "net", IPRange: "10.1.0.0/24", Labels: map[string]string{labels.KeyCluster: "demo"}})
	require.NoError(t, err)
	_, err = e.EnsureSubnet(ctx, cloud.SubnetSpec{NetworkID: nw.ID, PrimaryCIDR: "10.1.0.0/24"})
	require.NoError(t, err)

	n1, err := e.EnsureNode(ctx, cloud.NodeSpec{Name: "a", NetworkID: nw.ID, Labels: map[string]string{labels.KeyCluster: "demo"}})
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.2", n1.PrivateIP)

	again, err := e.EnsureNode(ctx, cloud.NodeSpec{Name: "a", NetworkID: nw.ID})
	require.NoError(t, err)
	assert.Equal(t, n1.ID, again.ID)
	assert.Equal(t, 1, e.Creates["EnsureNode"])

	_, err = e.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, cloud.ErrNotFound)

	nodes, err := e.ListNodes(ctx, map[string]string{labels.KeyCluster: "demo"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	require.NoError(t, e.DeleteByCluster(ctx, "demo"))
	assert.Zero(t, e.Resources())
}

func TestEngine_FailOn(t *testing.T) {
	t.Parallel()
	e := New()
	boom := errors.New("quota exceeded")
	e.FailOn("EnsureNode", "a", boom, 1)

	_, err := e.EnsureNode(context.Background(), cloud.NodeSpec{Name: "a"})
	assert.ErrorIs(t, err, boom)

	_, err = e.EnsureNode(context.Background(), cloud.NodeSpec{Name: "a"})
	assert.NoError(t, err)
	assert.Equal(t, 2, e.Count("EnsureNode"))
}

func TestEngine_NetworkRangeConflict(t *testing.T) {
	t.Parallel()
	e := New()
	_, err := e.EnsureNetwork(context.Background(), cloud.NetworkSpec{Name: "n", IPRange: "10.0.0.0/24"})
	require.NoError(t, err)
	_, err = e.EnsureNetwork(context.Background(), cloud.NetworkSpec{Name: "n", IPRange: "10.9.0.0/24"})
	assert.Error(t, err)
}
