package swarm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/platform/ssh"
	"github.com/imamik/swarmzner/internal/secrets"
	"github.com/imamik/swarmzner/internal/util/netutil"
	"github.com/imamik/swarmzner/internal/util/retry"
)

// ManagerPort is the swarm management port workers join on.
const ManagerPort = "2377"

// Local node states reported by `docker info`.
const (
	StateInactive = "inactive"
	StatePending  = "pending"
	StateActive   = "active"
	StateLocked   = "locked"
)

const (
	cmdWaitCloudInit = "cloud-init status --wait >/dev/null 2>&1 || true"
	cmdDockerVersion = "docker info --format '{{.ServerVersion}}'"
	cmdSwarmState    = "docker info --format '{{.Swarm.LocalNodeState}} {{.Swarm.ControlAvailable}}'"
	cmdWorkerToken   = "docker swarm join-token -q worker"
	cmdJoin          = `read -r token && docker swarm join --token "$token" %s`
	cmdInit          = "docker swarm init --advertise-addr %s"
)

// Runtime is the swarm runtime on nodes.
type Runtime interface {
	// WaitReady blocks until the node's container engine answers.
	WaitReady(ctx context.Context, node *cloud.Node) error
	// InitManager makes node a swarm manager and returns the worker join token.
	// alreadyInitialized is true when node was a manager before the call.
	InitManager(ctx context.Context, node *cloud.Node) (token secrets.Token, alreadyInitialized bool, err error)
	// JoinWorker joins node to the swarm at managerAddr. alreadyJoined is
	// true when node was a swarm member before the call.
	JoinWorker(ctx context.Context, node *cloud.Node, managerAddr string, token secrets.Token) (alreadyJoined bool, err error)
}

// Runner executes commands on one node.
type Runner interface {
	Run(ctx context.Context, cmd ssh.Command) (*ssh.Result, error)
}

// Dialer returns a Runner for a node.
type Dialer func(node *cloud.Node) (Runner, error)

// SSHDialer returns a Dialer connecting to a node's public address.
func SSHDialer(user string, privateKey []byte) Dialer {
	return func(node *cloud.Node) (Runner, error) {
		if node.PublicIP == "" {
			return nil, fmt.Errorf("node %s has no public address", node.Name)
		}
		return ssh.NewClient(&ssh.Config{
			Host:       node.PublicIP,
			User:       user,
			PrivateKey: privateKey,
		})
	}
}

// PortCheck blocks until node accepts connections for the runtime's transport.
type PortCheck func(ctx context.Context, node *cloud.Node) error

// SSHPortCheck waits until the node's public address accepts TCP on the SSH
// port. A closed port here usually means the firewall does not admit the deployer.
func SSHPortCheck(timeout time.Duration) PortCheck {
	return func(ctx context.Context, node *cloud.Node) error {
		return netutil.WaitForPort(ctx, node.PublicIP, ssh.DefaultPort, timeout, 0)
	}
}

// ManagerAddr is the address workers join: the manager's private IP on ManagerPort.
func ManagerAddr(manager *cloud.Node) string {
	return net.JoinHostPort(manager.PrivateIP, ManagerPort)
}

// SSHRuntime implements Runtime with the docker CLI over SSH.
type SSHRuntime struct {
	dial         Dialer
	portCheck    PortCheck
	log          logr.Logger
	readyTimeout time.Duration
	pollInterval time.Duration
}

var _ Runtime = (*SSHRuntime)(nil)

// RuntimeOption configures an SSHRuntime.
type RuntimeOption func(*SSHRuntime)

// WithLogger sets the runtime's logger.
func WithLogger(l logr.Logger) RuntimeOption {
	return func(r *SSHRuntime) { r.log = l }
}

// WithPortCheck runs check before WaitReady opens a session.
func WithPortCheck(check PortCheck) RuntimeOption {
	return func(r *SSHRuntime) { r.portCheck = check }
}

// WithReadyTimeout bounds WaitReady.
func WithReadyTimeout(d time.Duration) RuntimeOption {
	return func(r *SSHRuntime) { r.readyTimeout = d }
}

// WithPollInterval sets the WaitReady polling interval.
func WithPollInterval(d time.Duration) RuntimeOption {
	return func(r *SSHRuntime) { r.pollInterval = d }
}

// NewSSHRuntime returns a runtime reaching nodes through dial.
func NewSSHRuntime(dial Dialer, opts ...RuntimeOption) *SSHRuntime {
	r := &SSHRuntime{
		dial:         dial,
		log:          logr.Discard(),
		readyTimeout: 5 * time.Minute,
		pollInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WaitReady implements Runtime.
func (r *SSHRuntime) WaitReady(ctx context.Context, node *cloud.Node) error {
	if r.portCheck != nil {
		if err := r.portCheck(ctx, node); err != nil {
			return fmt.Errorf("node %s unreachable: %w", node.Name, err)
		}
	}

	runner, err := r.dial(node)
	if err != nil {
		return err
	}

	err = retry.WithExponentialBackoff(ctx, func() error {
		res, err := runner.Run(ctx, ssh.Command{Cmd: cmdWaitCloudInit + " && " + cmdDockerVersion})
		if err != nil {
			return err
		}
		if strings.TrimSpace(res.Stdout) == "" {
			return errors.New("docker engine reported no version")
		}
		return nil
	},
		retry.WithMaxRetries(1<<20),
		retry.WithInitialDelay(r.pollInterval),
		retry.WithMaxDelay(r.pollInterval),
		retry.WithMaxElapsed(r.readyTimeout),
		retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
			r.log.V(1).Info("Waiting for docker", "node", node.Name, "attempt", attempt, "error", err.Error())
		}),
	)
	if err != nil {
		return fmt.Errorf("docker on %s not ready: %w", node.Name, err)
	}
	return nil
}

// NodeState returns the swarm local node state and whether the node is a manager.
func (r *SSHRuntime) NodeState(ctx context.Context, node *cloud.Node) (string, bool, error) {
	runner, err := r.dial(node)
	if err != nil {
		return "", false, err
	}
	return nodeState(ctx, runner)
}

func nodeState(ctx context.Context, runner Runner) (string, bool, error) {
	res, err := runner.Run(ctx, ssh.Command{Cmd: cmdSwarmState})
	if err != nil {
		return "", false, fmt.Errorf("failed to read swarm state: %w", err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return "", false, fmt.Errorf("unexpected swarm state output %q", res.Stdout)
	}
	return fields[0], len(fields) > 1 && fields[1] == "true", nil
}

// InitManager implements Runtime.
func (r *SSHRuntime) InitManager(ctx context.Context, node *cloud.Node) (secrets.Token, bool, error) {
	runner, err := r.dial(node)
	if err != nil {
		return secrets.Token{}, false, err
	}

	state, isManager, err := nodeState(ctx, runner)
	if err != nil {
		return secrets.Token{}, false, err
	}

	already := false
	switch {
	case state == StateActive && isManager:
		already = true
		r.log.Info("Swarm already initialized", "node", node.Name)
	case state == StateActive:
		return secrets.Token{}, false, fmt.Errorf("node %s is a worker of another swarm", node.Name)
	case state == StateLocked:
		return secrets.Token{}, false, fmt.Errorf("swarm on %s is locked and needs a manual unlock", node.Name)
	default:
		if node.PrivateIP == "" {
			return secrets.Token{}, false, fmt.Errorf("node %s has no private address to advertise", node.Name)
		}
		if _, err := runner.Run(ctx, ssh.Command{Cmd: fmt.Sprintf(cmdInit, node.PrivateIP)}); err != nil {
			return secrets.Token{}, false, fmt.Errorf("swarm init on %s failed: %w", node.Name, err)
		}
		r.log.Info("Swarm initialized", "node", node.Name, "advertiseAddr", node.PrivateIP)
	}

	res, err := runner.Run(ctx, ssh.Command{Cmd: cmdWorkerToken})
	if err != nil {
		return secrets.Token{}, already, fmt.Errorf("failed to read join token on %s: %w", node.Name, err)
	}
	token := secrets.NewToken(res.Stdout)
	if token.IsZero() {
		return secrets.Token{}, already, fmt.Errorf("manager %s returned an empty join token", node.Name)
	}
	return token, already, nil
}

// JoinWorker implements Runtime.
func (r *SSHRuntime) JoinWorker(ctx context.Context, node *cloud.Node, managerAddr string, token secrets.Token) (bool, error) {
	runner, err := r.dial(node)
	if err != nil {
		return false, err
	}

	state, _, err := nodeState(ctx, runner)
	if err != nil {
		return false, err
	}
	switch state {
	case StateActive, StatePending:
		r.log.Info("Node already in swarm", "node", node.Name, "state", state)
		return true, nil
	case StateLocked:
		return false, fmt.Errorf("swarm on %s is locked and needs a manual unlock", node.Name)
	}

	_, err = runner.Run(ctx, ssh.Command{
		Cmd:   fmt.Sprintf(cmdJoin, managerAddr),
		Stdin: []byte(token.Reveal() + "\n"),
	})
	if err != nil {
		return false, fmt.Errorf("swarm join on %s failed: %w", node.Name, err)
	}
	r.log.Info("Node joined swarm", "node", node.Name, "manager", managerAddr)
	return false, nil
}
