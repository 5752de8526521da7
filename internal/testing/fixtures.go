package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/cloud/fake"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/secrets"
)

// FakeToken is the join token issued by fixture runtimes.
const FakeToken = "SWMTKN-1-fixturetoken"

// Fixture wires in-memory collaborators for provisioning tests.
type Fixture struct {
	Config   *config.Config
	Timeouts *config.Timeouts
	Engine   *fake.Engine
	Store    *secrets.MemoryStore
	Broker   *secrets.Broker
	Runtime  *Runtime
	Observer *provisioning.RecordingObserver
}

// NewFixture returns a fixture around cfg with test timeouts.
func NewFixture(t *testing.T, cfg *config.Config) *Fixture {
	t.Helper()
	sealer, err := secrets.NewSealer("fixture-passphrase")
	require.NoError(t, err)
	store := secrets.NewMemoryStore()
	return &Fixture{
		Config:   cfg,
		Timeouts: config.TestTimeouts(),
		Engine:   fake.New(),
		Store:    store,
		Broker:   secrets.NewBroker(store, sealer, "deployer"),
		Runtime:  NewRuntime(FakeToken),
		Observer: provisioning.NewRecordingObserver(nil),
	}
}

// Context builds a provisioning context with a deployer keypair already set.
func (f *Fixture) Context(ctx context.Context) *provisioning.Context {
	pctx := provisioning.NewContext(ctx, f.Config, f.Engine, f.Broker,
		provisioning.WithTimeouts(f.Timeouts),
		provisioning.WithObserver(f.Observer),
		provisioning.WithRuntime(f.Runtime),
	)
	pctx.State.Keypair = &provisioning.Keypair{
		PrivateKey: []byte("fixture-private-key"),
		Metadata:   f.Config.SSHPubKeys,
	}
	return pctx
}

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
