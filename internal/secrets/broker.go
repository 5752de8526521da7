package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/swarmzner/internal/util/retry"
)

// PublishOptions controls PublishToken.
type PublishOptions struct {
	// Overwrite adds a new version even when one exists. Readers of an older
	// version must re-read to observe it.
	Overwrite bool
}

// WaitPolicy bounds WaitForToken.
type WaitPolicy struct {
	MaxWait      time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultWaitPolicy polls for up to five minutes with 1s..15s backoff.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{MaxWait: 5 * time.Minute, InitialDelay: time.Second, MaxDelay: 15 * time.Second}
}

// ReadObserver is notified of every read outcome ("ok", "not_found", "denied", "error").
type ReadObserver func(result string)

// Broker mediates all access to join tokens.
type Broker struct {
	store  Store
	sealer *Sealer
	admin  string
	log    logr.Logger
	onRead ReadObserver

	// publishMu serializes publish decisions within this process.
	publishMu sync.Mutex
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker's logger.
func WithLogger(l logr.Logger) Option {
	return func(b *Broker) { b.log = l }
}

// WithReadObserver registers a read outcome callback.
func WithReadObserver(fn ReadObserver) Option {
	return func(b *Broker) { b.onRead = fn }
}

// NewBroker returns a broker acting as admin: containers it creates are owned
// by admin, and admin may always read them.
func NewBroker(store Store, sealer *Sealer, admin string, opts ...Option) *Broker {
	b := &Broker{store: store, sealer: sealer, admin: admin, log: logr.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Admin returns the identity the broker acts as.
func (b *Broker) Admin() string { return b.admin }

// EnsureContainer creates the container if needed.
func (b *Broker) EnsureContainer(ctx context.Context, container string) error {
	return wrap(container, "create", b.store.CreateContainer(ctx, container, b.admin))
}

// PublishToken stores token as the container's newest version. Without
// Overwrite it fails with ErrAlreadyPublished once any version exists.
func (b *Broker) PublishToken(ctx context.Context, container string, token Token, opts PublishOptions) (Version, error) {
	if token.IsZero() {
		return 0, wrap(container, "publish", errors.New("refusing to publish an empty token"))
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if err := b.EnsureContainer(ctx, container); err != nil {
		return 0, err
	}

	latest, err := b.store.LatestVersion(ctx, container)
	switch {
	case err == nil && !opts.Overwrite:
		return 0, wrap(container, "publish", fmt.Errorf("%w (version %d)", ErrAlreadyPublished, latest))
	case err != nil && !errors.Is(err, ErrNotFound):
		return 0, wrap(container, "publish", err)
	}

	sealed, err := b.sealer.Seal(container, []byte(token.Reveal()))
	if err != nil {
		return 0, wrap(container, "publish", err)
	}
	v, err := b.store.AddVersion(ctx, container, sealed)
	if err != nil {
		return 0, wrap(container, "publish", err)
	}

	b.log.Info("Published join token", "container", container, "version", v)
	return v, nil
}

// GrantRead lets identity read the container. Only the container's owner may
// grant; any other caller gets ErrGrantDenied.
func (b *Broker) GrantRead(ctx context.Context, container, identity string) error {
	if identity == "" {
		return wrap(container, "grant", errors.New("identity is required"))
	}
	owner, err := b.store.Owner(ctx, container)
	if err != nil {
		return wrap(container, "grant", err)
	}
	if owner != b.admin {
		return wrap(container, "grant", fmt.Errorf("%w: %s is not an administrator of the container", ErrGrantDenied, b.admin))
	}
	if err := b.store.GrantRead(ctx, container, identity); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			err = fmt.Errorf("%w: %w", ErrGrantDenied, err)
		}
		return wrap(container, "grant", err)
	}
	b.log.V(1).Info("Granted token read", "container", container, "identity", identity)
	return nil
}

// ReadLatest returns the newest token on behalf of identity.
func (b *Broker) ReadLatest(ctx context.Context, container, identity string) (Token, Version, error) {
	tok, v, err := b.readLatest(ctx, container, identity)
	b.observe(err)
	return tok, v, err
}

func (b *Broker) readLatest(ctx context.Context, container, identity string) (Token, Version, error) {
	if identity != b.admin {
		ok, err := b.store.CanRead(ctx, container, identity)
		if err != nil {
			return Token{}, 0, wrap(container, "read", err)
		}
		if !ok {
			return Token{}, 0, wrap(container, "read", fmt.Errorf("%w: %s has no read grant", ErrAccessDenied, identity))
		}
	}

	sealed, v, err := b.store.ReadLatest(ctx, container)
	if err != nil {
		return Token{}, 0, wrap(container, "read", err)
	}
	plain, err := b.sealer.Open(container, sealed)
	if err != nil {
		return Token{}, 0, wrap(container, "read", err)
	}
	return NewToken(string(plain)), v, nil
}

func (b *Broker) observe(err error) {
	if b.onRead == nil {
		return
	}
	switch {
	case err == nil:
		b.onRead("ok")
	case errors.Is(err, ErrNotFound):
		b.onRead("not_found")
	case errors.Is(err, ErrAccessDenied):
		b.onRead("denied")
	default:
		b.onRead("error")
	}
}

// LatestVersion reports the newest version without reading the value.
func (b *Broker) LatestVersion(ctx context.Context, container string) (Version, error) {
	v, err := b.store.LatestVersion(ctx, container)
	return v, wrap(container, "version", err)
}

// WaitForToken polls ReadLatest while no version exists, backing off
// exponentially, for at most policy.MaxWait. Other errors end the wait at once.
func (b *Broker) WaitForToken(ctx context.Context, container, identity string, policy WaitPolicy) (Token, Version, error) {
	def := DefaultWaitPolicy()
	if policy.MaxWait <= 0 {
		policy.MaxWait = def.MaxWait
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}

	var (
		tok Token
		ver Version
	)
	err := retry.WithExponentialBackoff(ctx, func() error {
		var err error
		tok, ver, err = b.ReadLatest(ctx, container, identity)
		return err
	},
		retry.WithMaxRetries(1<<20),
		retry.WithInitialDelay(policy.InitialDelay),
		retry.WithMaxDelay(policy.MaxDelay),
		retry.WithMaxElapsed(policy.MaxWait),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrNotFound) }),
		retry.WithOnRetry(func(attempt int, _ error, delay time.Duration) {
			b.log.V(1).Info("Join token not published yet", "container", container, "identity", identity, "attempt", attempt, "retryIn", delay)
		}),
	)
	if err != nil {
		return Token{}, 0, wrap(container, "wait", err)
	}
	return tok, ver, nil
}

// DeleteContainer removes the container. Missing containers are not an error.
func (b *Broker) DeleteContainer(ctx context.Context, container string) error {
	err := b.store.DeleteContainer(ctx, container)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return wrap(container, "delete", err)
}
