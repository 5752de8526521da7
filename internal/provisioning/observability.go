package provisioning

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Logger is the minimal printf-style logging surface phases use.
type Logger interface {
	Printf(format string, v ...any)
}

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "network", "compute")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventPhaseStarted indicates a provisioning phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a provisioning phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a provisioning phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreated indicates a resource was created or already existed.
	EventResourceCreated EventType = "resource.created"
	// EventResourceFailed indicates resource creation failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"

	// EventStateChanged indicates a deployment state transition.
	EventStateChanged EventType = "state.changed"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogrObserver implements Observer on top of a logr.Logger.
type LogrObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogrObserver creates an observer writing to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log, contextFields: map[string]string{}}
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...), o.keysAndValues(nil)...)
}

// Event implements Observer.
func (o *LogrObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	kv = append(kv, o.keysAndValues(event.Fields)...)

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed:
		o.log.Error(nil, event.Message, kv...)
	case EventProgress, EventStateChanged:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: progressMessage(current, total),
	})
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	return &LogrObserver{log: o.log, contextFields: mergeFields(o.contextFields, fields)}
}

func (o *LogrObserver) keysAndValues(fields map[string]string) []any {
	merged := mergeFields(o.contextFields, fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, merged[k])
	}
	return kv
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func progressMessage(current, total int) string {
	if total == 0 {
		return fmt.Sprintf("progress %d/%d", current, total)
	}
	return fmt.Sprintf("progress %d/%d (%d%%)", current, total, current*100/total)
}

// RecordingObserver keeps every event in memory. Used by the apply report and tests.
type RecordingObserver struct {
	mu     sync.Mutex
	events []Event
	lines  []string
	next   Observer
}

// NewRecordingObserver records events and forwards them to next (may be nil).
func NewRecordingObserver(next Observer) *RecordingObserver {
	return &RecordingObserver{next: next}
}

// Printf implements Logger.
func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	o.lines = append(o.lines, fmt.Sprintf(format, v...))
	o.mu.Unlock()
	if o.next != nil {
		o.next.Printf(format, v...)
	}
}

// Event implements Observer.
func (o *RecordingObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
	if o.next != nil {
		o.next.Event(event)
	}
}

// Progress implements Observer.
func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(Event{Type: EventProgress, Phase: phase, Message: progressMessage(current, total)})
}

// WithFields implements Observer. Events from the returned observer are
// recorded here with the fields attached.
func (o *RecordingObserver) WithFields(fields map[string]string) Observer {
	return &fieldsObserver{parent: o, fields: fields}
}

// Events returns the recorded events.
func (o *RecordingObserver) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

// EventsOfType returns the recorded events of type t.
func (o *RecordingObserver) EventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Lines returns the recorded Printf lines.
func (o *RecordingObserver) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.lines...)
}

type fieldsObserver struct {
	parent Observer
	fields map[string]string
}

func (f *fieldsObserver) Printf(format string, v ...any) { f.parent.Printf(format, v...) }

func (f *fieldsObserver) Event(event Event) {
	event.Fields = mergeFields(f.fields, event.Fields)
	f.parent.Event(event)
}

func (f *fieldsObserver) Progress(phase string, current, total int) {
	f.Event(Event{Type: EventProgress, Phase: phase, Message: progressMessage(current, total)})
}

func (f *fieldsObserver) WithFields(fields map[string]string) Observer {
	return &fieldsObserver{parent: f.parent, fields: mergeFields(f.fields, fields)}
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceCreated logs a resource that now exists, with its ID.
func LogResourceCreated(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s ready", resourceType),
		Fields: map[string]string{
			"type": resourceType,
			"id":   resourceID,
		},
	})
}

// LogResourceFailed logs a resource that could not be provisioned.
func LogResourceFailed(observer Observer, phase, resourceType, resourceName string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s failed: %v", resourceType, err),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s deleted", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}
