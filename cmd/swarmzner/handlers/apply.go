package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/imamik/swarmzner/internal/metrics"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/secrets"
)

// ApplyOptions are the inputs of the apply command.
type ApplyOptions struct {
	ConfigPath  string
	MetricsFile string
	Verbose     bool
}

// Apply provisions or updates a swarm on Hetzner Cloud.
//
// It loads and validates the configuration, builds the cloud engine and the
// secret broker, then runs the validation, access, network and compute
// phases in order. A report of the resulting deployment is printed whether
// or not provisioning succeeded. Nothing is rolled back on failure;
// re-running apply resumes from the resources that already exist.
func Apply(ctx context.Context, opts ApplyOptions) error {
	log, syncLog, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer syncLog()

	runID := uuid.NewString()
	log = log.WithValues("run", runID)

	// Warnings are reported again by the validation phase.
	cfg, _, err := loadConfigFile(opts.ConfigPath)
	if err != nil {
		return err
	}
	log = log.WithValues("swarm", cfg.Name)

	creds := loadCredentials()
	if err := creds.Require(cfg); err != nil {
		return fmt.Errorf("missing credentials: %w", err)
	}

	timeouts := loadTimeouts()
	recorder := metrics.NewRecorder(cfg.Name)

	broker, closeStore, err := newBroker(ctx, cfg, creds, log, secrets.WithReadObserver(recorder.TokenRead))
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
		provisioning.WithMetrics(recorder),
		provisioning.WithRuntimeFactory(newRuntimeFactory(cfg, timeouts, log)),
	)

	log.Info("applying swarm configuration", "instances", cfg.InstanceCount, "region", cfg.Region)
	runErr := provisioning.NewPipeline(newApplyPhases()...).Run(pCtx)

	var metricsErr error
	if opts.MetricsFile != "" {
		metricsErr = recorder.WriteToTextfile(opts.MetricsFile)
	}

	renderApplyReport(stdout, applyReport{
		RunID:  runID,
		Config: cfg,
		State:  pCtx.State,
		Err:    runErr,
	})
	return errors.Join(runErr, metricsErr)
}
