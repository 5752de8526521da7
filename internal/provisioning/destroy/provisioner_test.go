package destroy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/provisioning/compute"
	"github.com/imamik/swarmzner/internal/provisioning/network"
	"github.com/imamik/swarmzner/internal/secrets"
	testutil "github.com/imamik/swarmzner/internal/testing"
)

func deployed(t *testing.T) *testutil.Fixture {
	t.Helper()
	fx := testutil.NewFixture(t, testutil.NewConfigBuilder().WithServicePorts("80").Build())
	pctx := fx.Context(context.Background())
	require.NoError(t, provisioning.RunPhases(pctx, []provisioning.Phase{network.NewProvisioner(), compute.NewProvisioner()}))
	require.NotZero(t, fx.Engine.Resources())
	return fx
}

func TestProvision_RemovesEverything(t *testing.T) {
	t.Parallel()
	fx := deployed(t)

	require.NoError(t, NewProvisioner().Provision(fx.Context(context.Background())))
	assert.Zero(t, fx.Engine.Resources())
	_, err := fx.Broker.LatestVersion(context.Background(), fx.Config.DockerTokenSecretName)
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	assert.Len(t, fx.Observer.EventsOfType(provisioning.EventResourceDeleted), 2)
}

func TestProvision_Idempotent(t *testing.T) {
	t.Parallel()
	fx := deployed(t)
	p := NewProvisioner()
	require.NoError(t, p.Provision(fx.Context(context.Background())))
	require.NoError(t, p.Provision(fx.Context(context.Background())))
}

func TestProvision_EngineFailureStillDeletesToken(t *testing.T) {
	t.Parallel()
	fx := deployed(t)
	fx.Engine.FailOn("DeleteByCluster", "test", errors.New("api down"), 1)

	err := NewProvisioner().Provision(fx.Context(context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")

	_, err = fx.Broker.LatestVersion(context.Background(), fx.Config.DockerTokenSecretName)
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	assert.NotZero(t, fx.Engine.Resources())
}

func TestProvision_OtherClustersUntouched(t *testing.T) {
	t.Parallel()
	fx := deployed(t)
	before := fx.Engine.Resources()

	other := *fx.Config
	other.Name = "other"
	other.DockerTokenSecretName = "other-token"
	pctx := fx.Context(context.Background())
	pctx.Config = &other

	require.NoError(t, NewProvisioner().Provision(pctx))
	assert.Equal(t, before, fx.Engine.Resources())
}
