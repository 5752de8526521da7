package hcloud

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/config"
)

const publicIPURL = "https://ipv4.icanhazip.com"

// Engine implements cloud.Engine using the Hetzner Cloud API.
type Engine struct {
	client      *hcloud.Client
	timeouts    *config.Timeouts
	httpClient  *http.Client
	publicIPURL string
	log         logr.Logger

	mu        sync.Mutex
	templates map[string]*cloud.NodeTemplate
}

var _ cloud.Engine = (*Engine)(nil)

// ClientOption configures an Engine.
type ClientOption func(*Engine)

// WithTimeouts sets custom timeouts for the engine.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(e *Engine) {
		e.timeouts = t
	}
}

// WithHTTPClient sets a custom HTTP client for external requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(e *Engine) {
		e.httpClient = hc
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(e *Engine) {
		e.client = hc
	}
}

// WithPublicIPURL overrides the service used to discover the deployer's address.
func WithPublicIPURL(url string) ClientOption {
	return func(e *Engine) {
		e.publicIPURL = url
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l logr.Logger) ClientOption {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an Engine authenticated with token.
func NewEngine(token string, opts ...ClientOption) *Engine {
	e := &Engine{
		client:      hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("swarmzner", "")),
		timeouts:    config.LoadTimeouts(),
		httpClient:  http.DefaultClient,
		publicIPURL: publicIPURL,
		log:         logr.Discard(),
		templates:   map[string]*cloud.NodeTemplate{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HCloudClient returns the underlying hcloud.Client.
func (e *Engine) HCloudClient() *hcloud.Client {
	return e.client
}

// PublicIP returns the public IPv4 address of the host.
func (e *Engine) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.publicIPURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to discover public IP: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to discover public IP: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		return "", fmt.Errorf("public IP service returned %q", ip)
	}
	return ip, nil
}
