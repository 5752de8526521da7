package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/swarmzner/internal/util/retry"
)

// DefaultPort is used when Config.Port is zero.
const DefaultPort = 22

const (
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 30
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Command is a remote command. Stdin is treated as sensitive.
type Command struct {
	Cmd   string
	Stdin []byte
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// CommandError is returned when a command exits non-zero.
type CommandError struct {
	Host       string
	Cmd        string
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed on %s with exit status %d: %s",
		e.Cmd, e.Host, e.ExitStatus, strings.TrimSpace(e.Stderr))
}

// Client executes commands on a remote server via SSH.
// It parses the private key once during construction and
// creates connections on-demand per Run call.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = DefaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // nodes are freshly provisioned
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{config: &configCopy, signer: signer}, nil
}

// Host returns the address the client connects to.
func (c *Client) Host() string { return c.config.Host }

// Execute runs a command and returns its stdout.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	res, err := c.Run(ctx, Command{Cmd: command})
	if res == nil {
		return "", err
	}
	return res.Stdout, err
}

// Run executes cmd on a fresh connection. A non-zero exit yields both the
// Result and a *CommandError.
func (c *Client) Run(ctx context.Context, cmd Command) (*Result, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return c.runCommand(ctx, client, cmd)
}

// connect establishes SSH connection with retry logic.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	var client *ssh.Client

	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}
	return client, nil
}

// runCommand executes a command on an established SSH session. The session
// is closed when ctx is cancelled.
func (c *Client) runCommand(ctx context.Context, client *ssh.Client, cmd Command) (*Result, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if cmd.Stdin != nil {
		session.Stdin = bytes.NewReader(cmd.Stdin)
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd.Cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, fmt.Errorf("command %q on %s interrupted: %w", cmd.Cmd, c.config.Host, ctx.Err())
	case err = <-done:
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, &CommandError{Host: c.config.Host, Cmd: cmd.Cmd, ExitStatus: res.ExitStatus, Stderr: res.Stderr}
	}
	return nil, fmt.Errorf("command %q failed on %s: %w", cmd.Cmd, c.config.Host, err)
}
