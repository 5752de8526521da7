package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/swarm"
)

// ErrInvalidToken is returned by Runtime.JoinWorker for a stale or wrong token.
var ErrInvalidToken = errors.New("invalid join token")

// Runtime is an in-memory swarm.Runtime. Failures are scripted per node name
// and consumed in order; nil entries mean success.
type Runtime struct {
	mu sync.Mutex

	token    string
	managers map[string]bool
	members  map[string]string

	initErrs  []error
	initHangs int
	joinErrs  map[string][]error
	readyErrs map[string]error

	initCalls  int
	joinTokens map[string][]string
	readyCalls map[string]int

	// BeforeJoin runs before every join attempt, outside the lock.
	BeforeJoin func(node string, attempt int)
}

var _ swarm.Runtime = (*Runtime)(nil)

// NewRuntime returns a runtime issuing token from InitManager.
func NewRuntime(token string) *Runtime {
	return &Runtime{
		token:      token,
		managers:   map[string]bool{},
		members:    map[string]string{},
		joinErrs:   map[string][]error{},
		readyErrs:  map[string]error{},
		joinTokens: map[string][]string{},
		readyCalls: map[string]int{},
	}
}

// FailInit scripts the results of the next InitManager calls.
func (r *Runtime) FailInit(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initErrs = append(r.initErrs, errs...)
}

// HangInit makes the next n InitManager calls block until their context ends.
func (r *Runtime) HangInit(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initHangs = n
}

// FailJoin scripts the results of the next JoinWorker calls for node.
func (r *Runtime) FailJoin(node string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinErrs[node] = append(r.joinErrs[node], errs...)
}

// FailReady makes WaitReady fail for node.
func (r *Runtime) FailReady(node string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyErrs[node] = err
}

// RotateToken changes the token the manager accepts. Members that joined
// before keep their membership.
func (r *Runtime) RotateToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// MarkManager records node as an already initialized manager.
func (r *Runtime) MarkManager(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[node] = true
}

// MarkMember records node as an already joined worker.
func (r *Runtime) MarkMember(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[node] = r.token
}

// WaitReady implements swarm.Runtime.
func (r *Runtime) WaitReady(ctx context.Context, node *cloud.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyCalls[node.Name]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.readyErrs[node.Name]
}

// InitManager implements swarm.Runtime.
func (r *Runtime) InitManager(ctx context.Context, node *cloud.Node) (secrets.Token, bool, error) {
	r.mu.Lock()
	r.initCalls++
	hang := r.initHangs > 0
	if hang {
		r.initHangs--
	}
	r.mu.Unlock()

	if hang {
		select {
		case <-ctx.Done():
			return secrets.Token{}, false, ctx.Err()
		case <-time.After(time.Minute):
			return secrets.Token{}, false, fmt.Errorf("hang was not interrupted")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.initErrs) > 0 {
		err := r.initErrs[0]
		r.initErrs = r.initErrs[1:]
		if err != nil {
			return secrets.Token{}, false, err
		}
	}
	already := r.managers[node.Name]
	r.managers[node.Name] = true
	return secrets.NewToken(r.token), already, nil
}

// JoinWorker implements swarm.Runtime.
func (r *Runtime) JoinWorker(ctx context.Context, node *cloud.Node, managerAddr string, token secrets.Token) (bool, error) {
	r.mu.Lock()
	attempt := len(r.joinTokens[node.Name]) + 1
	hook := r.BeforeJoin
	r.mu.Unlock()
	if hook != nil {
		hook(node.Name, attempt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinTokens[node.Name] = append(r.joinTokens[node.Name], token.Reveal())
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := r.members[node.Name]; ok {
		return true, nil
	}
	if errs := r.joinErrs[node.Name]; len(errs) > 0 {
		r.joinErrs[node.Name] = errs[1:]
		if errs[0] != nil {
			return false, errs[0]
		}
	}
	if managerAddr == "" {
		return false, fmt.Errorf("no manager address")
	}
	if token.Reveal() != r.token {
		return false, ErrInvalidToken
	}
	r.members[node.Name] = token.Reveal()
	return false, nil
}

// InitCalls returns how often InitManager ran.
func (r *Runtime) InitCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initCalls
}

// JoinTokens returns every token node attempted to join with, in order.
func (r *Runtime) JoinTokens(node string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.joinTokens[node]...)
}

// ReadyCalls returns how often WaitReady ran for node.
func (r *Runtime) ReadyCalls(node string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyCalls[node]
}

// IsMember reports whether node joined the swarm.
func (r *Runtime) IsMember(node string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[node]
	return ok
}

// IsManager reports whether node is an initialized manager.
func (r *Runtime) IsManager(node string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managers[node]
}
