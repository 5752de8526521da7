package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/swarmzner/internal/provisioning"
)

// DestroyOptions are the inputs of the destroy command.
type DestroyOptions struct {
	ConfigPath string
	Yes        bool
	Verbose    bool
}

// Destroy removes every cloud resource labelled with the swarm's name and
// deletes the join token container. Unless opts.Yes is set the user must
// confirm first.
func Destroy(ctx context.Context, opts DestroyOptions) error {
	log, syncLog, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer syncLog()

	cfg, _, err := loadConfigFile(opts.ConfigPath)
	if err != nil {
		return err
	}
	log = log.WithValues("swarm", cfg.Name)

	creds := loadCredentials()
	if err := creds.Require(cfg); err != nil {
		return fmt.Errorf("missing credentials: %w", err)
	}

	if !opts.Yes {
		ok, err := confirmDestroy(cfg.Name)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	timeouts := loadTimeouts()
	broker, closeStore, err := newBroker(ctx, cfg, creds, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error(err, "failed to close secret store")
		}
	}()

	pCtx := provisioning.NewContext(ctx, cfg, newEngine(creds.HCloudToken, timeouts, log), broker,
		provisioning.WithTimeouts(timeouts),
		provisioning.WithLogger(log),
	)

	log.Info("destroying swarm")
	if err := newDestroyProvisioner().Provision(pCtx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Fprintf(stdout, "Swarm %s destroyed\n", cfg.Name)
	return nil
}
