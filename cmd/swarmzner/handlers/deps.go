// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic: collaborators are built through the
// factory variables below so tests can replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/platform/bolt"
	"github.com/imamik/swarmzner/internal/platform/hcloud"
	"github.com/imamik/swarmzner/internal/platform/s3"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/provisioning/access"
	"github.com/imamik/swarmzner/internal/provisioning/compute"
	"github.com/imamik/swarmzner/internal/provisioning/destroy"
	"github.com/imamik/swarmzner/internal/provisioning/network"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/swarm"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("aborted by user")

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads, defaults and validates the config file.
	loadConfigFile = config.LoadFile

	// loadCredentials reads credentials from the environment.
	loadCredentials = config.LoadCredentials

	// loadTimeouts reads operation timeouts from the environment.
	loadTimeouts = config.LoadTimeouts

	// newLogger builds the process logger.
	newLogger = buildLogger

	// newEngine creates the Hetzner Cloud engine.
	newEngine = func(token string, t *config.Timeouts, log logr.Logger) cloud.Engine {
		return hcloud.NewEngine(token, hcloud.WithTimeouts(t), hcloud.WithLogger(log.WithName("hcloud")))
	}

	// openSecretStore opens the configured secret store backend.
	openSecretStore = openStore

	// newRuntimeFactory builds the SSH swarm runtime once the keypair is known.
	newRuntimeFactory = func(cfg *config.Config, t *config.Timeouts, log logr.Logger) provisioning.RuntimeFactory {
		return func(kp *provisioning.Keypair) (swarm.Runtime, error) {
			if len(kp.PrivateKey) == 0 {
				return nil, errors.New("deployer private key is empty")
			}
			return swarm.NewSSHRuntime(
				swarm.SSHDialer(cfg.SSHUser, kp.PrivateKey),
				swarm.WithPortCheck(swarm.SSHPortCheck(t.DockerReady)),
				swarm.WithReadyTimeout(t.DockerReady),
				swarm.WithLogger(log.WithName("swarm")),
			), nil
		}
	}

	// newApplyPhases returns the phases apply runs, in order.
	newApplyPhases = func() []provisioning.Phase {
		return []provisioning.Phase{
			provisioning.NewValidationPhase(),
			access.NewProvisioner(),
			network.NewProvisioner(),
			compute.NewProvisioner(),
		}
	}

	// newDestroyProvisioner creates the destroy phase.
	newDestroyProvisioner = func() provisioning.Phase {
		return destroy.NewProvisioner()
	}

	// confirmDestroy asks the user to confirm destruction of the named swarm.
	confirmDestroy = promptDestroy

	// stdout receives the human-readable report.
	stdout io.Writer = os.Stdout
)

// buildLogger returns a zap-backed logr.Logger. Verbose selects zap's
// development config, which also enables V(1) output.
func buildLogger(verbose bool) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("failed to build logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

// openStore opens the secret store selected by cfg.SecretStore. The returned
// close function is never nil.
func openStore(ctx context.Context, cfg *config.Config, creds config.Credentials) (secrets.Store, func() error, error) {
	sc := cfg.SecretStore
	switch sc.Backend {
	case config.SecretBackendS3:
		client, err := s3.NewClient(ctx, sc.Endpoint, sc.Region, creds.S3AccessKey, creds.S3SecretKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create object storage client: %w", err)
		}
		return s3.NewSecretStore(client, sc.Bucket), func() error { return nil }, nil
	case config.SecretBackendLocal:
		store, err := bolt.Open(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open secret store %s: %w", sc.Path, err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown secret store backend %q", sc.Backend)
	}
}

// newBroker opens the secret store and wraps it in a broker acting as the
// deployer identity.
func newBroker(ctx context.Context, cfg *config.Config, creds config.Credentials, log logr.Logger, opts ...secrets.Option) (*secrets.Broker, func() error, error) {
	store, closeStore, err := openSecretStore(ctx, cfg, creds)
	if err != nil {
		return nil, nil, err
	}
	sealer, err := secrets.NewSealer(creds.SealerPassphrase(cfg))
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("failed to create sealer: %w", err)
	}
	opts = append([]secrets.Option{secrets.WithLogger(log.WithName("secrets"))}, opts...)
	return secrets.NewBroker(store, sealer, config.DeployerUser, opts...), closeStore, nil
}

func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptDestroy(name string) (bool, error) {
	if !isTerminal() {
		return false, errors.New("refusing to destroy without confirmation in a non-interactive session; pass --yes")
	}
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Destroy swarm %q and all of its resources?", name)).
			Affirmative("Destroy").
			Negative("Cancel").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return ok, nil
}
