package handlers

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/cloud/fake"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/provisioning/access"
	"github.com/imamik/swarmzner/internal/provisioning/compute"
	"github.com/imamik/swarmzner/internal/provisioning/network"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/swarm"
	testutil "github.com/imamik/swarmzner/internal/testing"
)

// harness replaces every factory variable with in-memory collaborators.
// Tests using it must not run in parallel.
type harness struct {
	cfg     *config.Config
	engine  *fake.Engine
	store   *secrets.MemoryStore
	runtime *testutil.Runtime
	out     *bytes.Buffer
	prompts []string
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		cfg:     cfg,
		engine:  fake.New(),
		store:   secrets.NewMemoryStore(),
		runtime: testutil.NewRuntime(testutil.FakeToken),
		out:     &bytes.Buffer{},
	}

	origLoadConfig := loadConfigFile
	origCreds := loadCredentials
	origTimeouts := loadTimeouts
	origLogger := newLogger
	origEngine := newEngine
	origStore := openSecretStore
	origRuntime := newRuntimeFactory
	origPhases := newApplyPhases
	origConfirm := confirmDestroy
	origStdout := stdout
	t.Cleanup(func() {
		loadConfigFile = origLoadConfig
		loadCredentials = origCreds
		loadTimeouts = origTimeouts
		newLogger = origLogger
		newEngine = origEngine
		openSecretStore = origStore
		newRuntimeFactory = origRuntime
		newApplyPhases = origPhases
		confirmDestroy = origConfirm
		stdout = origStdout
	})

	loadConfigFile = func(_ string) (*config.Config, []config.Issue, error) {
		return h.cfg, nil, nil
	}
	loadCredentials = func() config.Credentials {
		return config.Credentials{HCloudToken: "test-token", SecretKey: "test-seal"}
	}
	loadTimeouts = config.TestTimeouts
	newLogger = func(bool) (logr.Logger, func(), error) {
		return logr.Discard(), func() {}, nil
	}
	newEngine = func(string, *config.Timeouts, logr.Logger) cloud.Engine {
		return h.engine
	}
	openSecretStore = func(context.Context, *config.Config, config.Credentials) (secrets.Store, func() error, error) {
		return h.store, func() error { return nil }, nil
	}
	newRuntimeFactory = func(*config.Config, *config.Timeouts, logr.Logger) provisioning.RuntimeFactory {
		return func(kp *provisioning.Keypair) (swarm.Runtime, error) {
			if len(kp.PrivateKey) == 0 {
				return nil, errors.New("keypair without private key")
			}
			return h.runtime, nil
		}
	}
	newApplyPhases = func() []provisioning.Phase {
		return []provisioning.Phase{
			provisioning.NewValidationPhase(),
			access.NewProvisioner(access.WithKeyBits(1024)),
			network.NewProvisioner(),
			compute.NewProvisioner(),
		}
	}
	confirmDestroy = func(name string) (bool, error) {
		h.prompts = append(h.prompts, name)
		return false, nil
	}
	stdout = h.out
	return h
}

func generatedKeyConfig(t *testing.T, instances int) *config.Config {
	t.Helper()
	return testutil.NewConfigBuilder().
		WithName("demo").
		WithInstanceCount(instances).
		WithGeneratedKey(filepath.Join(t.TempDir(), "deployer_ssh_key")).
		Build()
}
