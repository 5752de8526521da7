package provisioning

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (func() []string, *LogrObserver) {
	var (
		mu    sync.Mutex
		lines []string
	)
	log := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
	return get, NewLogrObserver(log)
}

func TestLogrObserver_Event(t *testing.T) {
	t.Parallel()
	lines, obs := captureLogger()

	obs.WithFields(map[string]string{"cluster": "demo"}).Event(Event{
		Type:     EventResourceCreated,
		Phase:    "network",
		Resource: "demo-swarm-network",
		Message:  "network ready",
		Fields:   map[string]string{"id": "7"},
	})
	LogPhaseFailed(obs, "compute", errors.New("boom"))
	obs.Progress("compute", 1, 4)

	out := lines()
	require.Len(t, out, 3)
	assert.Contains(t, out[0], `"msg"="network ready"`)
	assert.Contains(t, out[0], `"cluster"="demo"`)
	assert.Contains(t, out[0], `"resource"="demo-swarm-network"`)
	assert.Contains(t, out[0], `"id"="7"`)
	assert.Contains(t, out[1], `"error"`)
	assert.Contains(t, out[1], "failed: boom")
	assert.Contains(t, out[2], "progress 1/4 (25%)")
}

func TestLogrObserver_Printf(t *testing.T) {
	t.Parallel()
	lines, obs := captureLogger()
	obs.Printf("created %d nodes", 3)
	require.Len(t, lines(), 1)
	assert.True(t, strings.Contains(lines()[0], "created 3 nodes"))
}

func TestRecordingObserver(t *testing.T) {
	t.Parallel()
	next := NewRecordingObserver(nil)
	obs := NewRecordingObserver(next)

	scoped := obs.WithFields(map[string]string{"node": "1"})
	scoped.Event(Event{Type: EventResourceCreated, Message: "node ready"})
	LogPhaseComplete(obs, "network", 1500*time.Millisecond)
	obs.Printf("hello %s", "world")

	events := obs.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].Fields["node"])
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "completed in 1.5s", events[1].Message)
	assert.Equal(t, []string{"hello world"}, obs.Lines())
	assert.Len(t, next.Events(), 2)
}

func TestProgressMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "progress 0/0", progressMessage(0, 0))
	assert.Equal(t, "progress 2/2 (100%)", progressMessage(2, 2))
}
