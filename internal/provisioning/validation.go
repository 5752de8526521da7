package provisioning

// ValidationPhase implements the Phase interface for pre-flight validation.
// It makes no engine calls.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	ctx.Config.ApplyDefaults()

	warnings, err := ctx.Config.Validate()
	for _, w := range warnings {
		ctx.Observer.Event(Event{
			Type:     EventValidationWarning,
			Phase:    vp.Name(),
			Resource: w.Field,
			Message:  w.Message,
		})
	}
	return err
}
