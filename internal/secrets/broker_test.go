package secrets

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin     = "deployer"
	container = "demo-join-token"
	nodeID    = "demo-node"
)

func newTestBroker(t *testing.T, store Store, opts ...Option) *Broker {
	t.Helper()
	sealer, err := NewSealer("test-passphrase")
	require.NoError(t, err)
	return NewBroker(store, sealer, admin, opts...)
}

func TestBroker_PublishThenRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())

	v, err := b.PublishToken(ctx, container, NewToken(rawToken), PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)

	require.NoError(t, b.GrantRead(ctx, container, nodeID))

	tok, got, err := b.ReadLatest(ctx, container, nodeID)
	require.NoError(t, err)
	assert.Equal(t, rawToken, tok.Reveal())
	assert.Equal(t, v, got)
}

func TestBroker_LogsVersionNotToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var mu sync.Mutex
	var buf bytes.Buffer
	log := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		buf.WriteString(prefix + args + "\n")
	}, funcr.Options{Verbosity: 1})
	b := newTestBroker(t, NewMemoryStore(), WithLogger(log))

	_, err := b.PublishToken(ctx, container, NewToken(rawToken), PublishOptions{})
	require.NoError(t, err)
	require.NoError(t, b.GrantRead(ctx, container, nodeID))
	_, _, err = b.ReadLatest(ctx, container, nodeID)
	require.NoError(t, err)

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, `"msg"="Published join token"`)
	assert.Contains(t, out, `"version"=`)
	assert.NotContains(t, out, `"token"=`)
	assert.NotContains(t, out, rawToken)
	assert.NotContains(t, out, "[REDACTED]")
}

func TestBroker_PublishTwiceWithoutOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())

	_, err := b.PublishToken(ctx, container, NewToken("first"), PublishOptions{})
	require.NoError(t, err)

	_, err = b.PublishToken(ctx, container, NewToken("second"), PublishOptions{})
	require.ErrorIs(t, err, ErrAlreadyPublished)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, container, se.Container)
	assert.Equal(t, "publish", se.Op)

	tok, v, err := b.ReadLatest(ctx, container, admin)
	require.NoError(t, err)
	assert.Equal(t, "first", tok.Reveal())
	assert.Equal(t, Version(1), v)
}

func TestBroker_PublishOverwriteCreatesNewVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())

	_, err := b.PublishToken(ctx, container, NewToken("first"), PublishOptions{})
	require.NoError(t, err)
	v2, err := b.PublishToken(ctx, container, NewToken("second"), PublishOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, Version(2), v2)

	tok, v, err := b.ReadLatest(ctx, container, admin)
	require.NoError(t, err)
	assert.Equal(t, "second", tok.Reveal())
	assert.Equal(t, v2, v)
}

func TestBroker_ConcurrentPublishOnlyOneWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.PublishToken(ctx, container, NewToken("tok"), PublishOptions{})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyPublished):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}

func TestBroker_PublishEmptyToken(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, NewMemoryStore())
	_, err := b.PublishToken(context.Background(), container, Token{}, PublishOptions{})
	assert.Error(t, err)
}

func TestBroker_ReadBeforePublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())

	_, _, err := b.ReadLatest(ctx, container, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.EnsureContainer(ctx, container))
	_, _, err = b.ReadLatest(ctx, container, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.LatestVersion(ctx, container)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBroker_ReadWithoutGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())
	_, err := b.PublishToken(ctx, container, NewToken("tok"), PublishOptions{})
	require.NoError(t, err)

	_, _, err = b.ReadLatest(ctx, container, "stranger")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestBroker_GrantIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())
	require.NoError(t, b.EnsureContainer(ctx, container))

	require.NoError(t, b.GrantRead(ctx, container, nodeID))
	require.NoError(t, b.GrantRead(ctx, container, nodeID))
}

func TestBroker_GrantDeniedForNonOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateContainer(ctx, container, "someone-else"))

	b := newTestBroker(t, store)
	err := b.GrantRead(ctx, container, nodeID)
	assert.ErrorIs(t, err, ErrGrantDenied)
}

type denyingStore struct{ *MemoryStore }

func (denyingStore) GrantRead(context.Context, string, string) error { return ErrAccessDenied }

func TestBroker_GrantDeniedByBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, denyingStore{NewMemoryStore()})
	require.NoError(t, b.EnsureContainer(ctx, container))

	err := b.GrantRead(ctx, container, nodeID)
	assert.ErrorIs(t, err, ErrGrantDenied)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestBroker_GrantMissingContainer(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, NewMemoryStore())
	assert.ErrorIs(t, b.GrantRead(context.Background(), "nope", nodeID), ErrNotFound)
	assert.Error(t, b.GrantRead(context.Background(), container, ""))
}

func TestBroker_WaitForTokenPublishedLater(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var reads []string
	var mu sync.Mutex
	b := newTestBroker(t, NewMemoryStore(), WithReadObserver(func(r string) {
		mu.Lock()
		reads = append(reads, r)
		mu.Unlock()
	}))
	require.NoError(t, b.EnsureContainer(ctx, container))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = b.PublishToken(ctx, container, NewToken(rawToken), PublishOptions{})
	}()

	tok, v, err := b.WaitForToken(ctx, container, admin, WaitPolicy{
		MaxWait: 2 * time.Second, InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, rawToken, tok.Reveal())
	assert.Equal(t, Version(1), v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "ok", reads[len(reads)-1])
	assert.Contains(t, reads, "not_found")
}

func TestBroker_WaitForTokenTimesOut(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, NewMemoryStore())

	start := time.Now()
	_, _, err := b.WaitForToken(context.Background(), container, admin, WaitPolicy{
		MaxWait: 40 * time.Millisecond, InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBroker_WaitForTokenStopsOnDenied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	calls := 0
	b := newTestBroker(t, NewMemoryStore(), WithReadObserver(func(string) { calls++ }))
	require.NoError(t, b.EnsureContainer(ctx, container))

	_, _, err := b.WaitForToken(ctx, container, "stranger", WaitPolicy{
		MaxWait: time.Second, InitialDelay: 5 * time.Millisecond, MaxDelay: 5 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 1, calls)
}

func TestBroker_DeleteContainer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, NewMemoryStore())
	_, err := b.PublishToken(ctx, container, NewToken("x"), PublishOptions{})
	require.NoError(t, err)

	require.NoError(t, b.DeleteContainer(ctx, container))
	require.NoError(t, b.DeleteContainer(ctx, container))
	_, err = b.LatestVersion(ctx, container)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestError_Message(t *testing.T) {
	t.Parallel()
	err := &Error{Container: "c", Op: "read", Err: ErrNotFound}
	assert.Equal(t, "secret c: read: secret not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
