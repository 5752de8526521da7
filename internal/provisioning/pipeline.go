package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all provisioning phases sequentially. On the first
// failure the deployment moves to StateFailed and a *DeploymentError is
// returned; later phases do not run.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning with %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		LogPhaseStart(ctx.Observer, name)

		err := phase.Provision(ctx)
		ctx.Metrics.ObservePhase(phase.Name(), time.Since(phaseStart), err)
		if err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			failedIn := ctx.State.Deployment.Fail()
			return AsDeploymentError(fmt.Errorf("%s phase failed: %w", phase.Name(), err), failedIn)
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// Pipeline is an ordered list of phases.
type Pipeline struct {
	phases []Phase
}

// NewPipeline creates a pipeline running phases in order.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{phases: phases}
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx *Context) error {
	return RunPhases(ctx, p.phases)
}
