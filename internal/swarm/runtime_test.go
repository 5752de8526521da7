package swarm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/platform/ssh"
	"github.com/imamik/swarmzner/internal/secrets"
)

const workerToken = "SWMTKN-1-worker-token"

// scriptedRunner emulates the docker CLI of a single node.
type scriptedRunner struct {
	mu        sync.Mutex
	state     string
	manager   bool
	failInit  error
	failJoin  error
	notReady  int
	commands  []ssh.Command
}

func (s *scriptedRunner) Run(_ context.Context, cmd ssh.Command) (*ssh.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)

	switch {
	case strings.Contains(cmd.Cmd, "ServerVersion"):
		if s.notReady > 0 {
			s.notReady--
			return nil, errors.New("Cannot connect to the Docker daemon")
		}
		return &ssh.Result{Stdout: "27.3.1\n"}, nil
	case cmd.Cmd == cmdSwarmState:
		control := "false"
		if s.manager {
			control = "true"
		}
		return &ssh.Result{Stdout: s.state + " " + control + "\n"}, nil
	case strings.HasPrefix(cmd.Cmd, "docker swarm init"):
		if s.failInit != nil {
			return nil, s.failInit
		}
		s.state, s.manager = StateActive, true
		return &ssh.Result{Stdout: "Swarm initialized"}, nil
	case cmd.Cmd == cmdWorkerToken:
		return &ssh.Result{Stdout: workerToken + "\n"}, nil
	case strings.Contains(cmd.Cmd, "docker swarm join"):
		if s.failJoin != nil {
			return nil, s.failJoin
		}
		s.state = StateActive
		return &ssh.Result{Stdout: "This node joined a swarm as a worker."}, nil
	}
	return nil, errors.New("unexpected command " + cmd.Cmd)
}

func (s *scriptedRunner) ran(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if strings.HasPrefix(c.Cmd, prefix) {
			n++
		}
	}
	return n
}

func runtimeFor(runner *scriptedRunner) *SSHRuntime {
	return NewSSHRuntime(func(*cloud.Node) (Runner, error) { return runner, nil },
		WithPollInterval(time.Millisecond), WithReadyTimeout(time.Second))
}

var manager = &cloud.Node{Name: "demo-swarm-node-0", PublicIP: "203.0.113.1", PrivateIP: "10.0.0.2"}
var worker = &cloud.Node{Name: "demo-swarm-node-1", PublicIP: "203.0.113.2", PrivateIP: "10.0.0.3"}

func TestInitManager_Fresh(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{state: StateInactive}

	tok, already, err := runtimeFor(r).InitManager(context.Background(), manager)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, workerToken, tok.Reveal())
	assert.Equal(t, 1, r.ran("docker swarm init --advertise-addr 10.0.0.2"))
}

func TestInitManager_AlreadyInitialized(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{state: StateActive, manager: true}

	tok, already, err := runtimeFor(r).InitManager(context.Background(), manager)
	require.NoError(t, err)
	assert.True(t, already)
	assert.False(t, tok.IsZero())
	assert.Zero(t, r.ran("docker swarm init"))
}

func TestInitManager_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		runner *scriptedRunner
		node   *cloud.Node
		msg    string
	}{
		{"worker elsewhere", &scriptedRunner{state: StateActive}, manager, "worker of another swarm"},
		{"locked", &scriptedRunner{state: StateLocked}, manager, "locked"},
		{"init fails", &scriptedRunner{state: StateInactive, failInit: errors.New("boom")}, manager, "swarm init"},
		{"no private ip", &scriptedRunner{state: StateInactive}, &cloud.Node{Name: "n"}, "no private address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := runtimeFor(tt.runner).InitManager(context.Background(), tt.node)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestJoinWorker_PassesTokenOnStdin(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{state: StateInactive}

	already, err := runtimeFor(r).JoinWorker(context.Background(), worker, ManagerAddr(manager), secrets.NewToken(workerToken))
	require.NoError(t, err)
	assert.False(t, already)

	var join ssh.Command
	for _, c := range r.commands {
		if strings.Contains(c.Cmd, "docker swarm join") {
			join = c
		}
	}
	assert.Contains(t, join.Cmd, "10.0.0.2:2377")
	assert.NotContains(t, join.Cmd, workerToken)
	assert.Equal(t, workerToken+"\n", string(join.Stdin))
}

func TestJoinWorker_AlreadyJoined(t *testing.T) {
	t.Parallel()
	for _, state := range []string{StateActive, StatePending} {
		r := &scriptedRunner{state: state}
		already, err := runtimeFor(r).JoinWorker(context.Background(), worker, "10.0.0.2:2377", secrets.NewToken(workerToken))
		require.NoError(t, err)
		assert.True(t, already)
		assert.Zero(t, r.ran("read -r token"))
	}
}

func TestJoinWorker_FailureDoesNotLeakToken(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{state: StateInactive, failJoin: &ssh.CommandError{Host: "h", Cmd: "join", ExitStatus: 1, Stderr: "invalid join token"}}

	_, err := runtimeFor(r).JoinWorker(context.Background(), worker, "10.0.0.2:2377", secrets.NewToken(workerToken))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), workerToken)

	var cmdErr *ssh.CommandError
	assert.True(t, errors.As(err, &cmdErr))
}

func TestWaitReady(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{notReady: 3}
	require.NoError(t, runtimeFor(r).WaitReady(context.Background(), worker))
	assert.Equal(t, 4, r.ran(cmdWaitCloudInit))
}

func TestWaitReady_Timeout(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{notReady: 1 << 30}
	rt := NewSSHRuntime(func(*cloud.Node) (Runner, error) { return r, nil },
		WithPollInterval(time.Millisecond), WithReadyTimeout(20*time.Millisecond))

	err := rt.WaitReady(context.Background(), worker)
	assert.ErrorContains(t, err, "not ready")
}

func TestWaitReady_PortCheck(t *testing.T) {
	t.Parallel()
	closed := errors.New("timeout waiting for 203.0.113.2:22")

	tests := []struct {
		name     string
		check    error
		wantErr  string
		wantRuns int
	}{
		{name: "open", wantRuns: 1},
		{name: "closed", check: closed, wantErr: "demo-swarm-node-1 unreachable", wantRuns: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &scriptedRunner{}
			var checked []string
			rt := NewSSHRuntime(func(*cloud.Node) (Runner, error) { return r, nil },
				WithPollInterval(time.Millisecond), WithReadyTimeout(time.Second),
				WithPortCheck(func(_ context.Context, n *cloud.Node) error {
					checked = append(checked, n.PublicIP)
					return tt.check
				}))

			err := rt.WaitReady(context.Background(), worker)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, closed)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []string{"203.0.113.2"}, checked)
			assert.Equal(t, tt.wantRuns, r.ran(cmdWaitCloudInit))
		})
	}
}

func TestSSHPortCheck_NoPublicAddress(t *testing.T) {
	t.Parallel()
	err := SSHPortCheck(time.Second)(context.Background(), &cloud.Node{Name: "n"})
	assert.ErrorContains(t, err, "no host")
}

func TestDialError(t *testing.T) {
	t.Parallel()
	boom := errors.New("no route")
	rt := NewSSHRuntime(func(*cloud.Node) (Runner, error) { return nil, boom })

	_, _, err := rt.InitManager(context.Background(), manager)
	assert.ErrorIs(t, err, boom)
	_, err = rt.JoinWorker(context.Background(), worker, "x", secrets.NewToken("t"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, rt.WaitReady(context.Background(), worker), boom)
}

func TestSSHDialer(t *testing.T) {
	t.Parallel()
	_, err := SSHDialer("root", []byte("key"))(&cloud.Node{Name: "n"})
	assert.ErrorContains(t, err, "no public address")

	_, err = SSHDialer("root", []byte("not a key"))(worker)
	assert.ErrorContains(t, err, "failed to parse private key")
}

func TestManagerAddr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "10.0.0.2:2377", ManagerAddr(manager))
}
