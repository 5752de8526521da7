package testing

import (
	"maps"

	"github.com/imamik/swarmzner/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
// Key generation is off; tests that need it set a temp path.
func NewConfigBuilder() *ConfigBuilder {
	cfg := *config.Default()
	cfg.Name = "test"
	cfg.DockerTokenSecretName = "test-docker-token"
	cfg.AllowedIPs = []string{"192.0.2.0/24"}
	cfg.GenerateSSHKey = false
	cfg.SSHPrivateKeyPath = "/nonexistent/id_rsa"
	cfg.SSHPubKeys = map[string]string{"alice": "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAlice alice@example"}
	cfg.ApplyDefaults()
	return &ConfigBuilder{cfg: cfg}
}

// WithName sets the deployment name and derived defaults.
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Name = name
	nb.cfg.DockerTokenSecretName = name + "-docker-token"
	nb.cfg.ComputeSA = name + "-node"
	return nb
}

// WithInstanceCount sets the number of nodes.
func (b *ConfigBuilder) WithInstanceCount(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.InstanceCount = n
	return nb
}

// WithSubnet sets the primary subnet range.
func (b *ConfigBuilder) WithSubnet(cidr string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.SubnetCIDRRange = cidr
	return nb
}

// WithAllowedIPs sets the administrative sources.
func (b *ConfigBuilder) WithAllowedIPs(ips ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.AllowedIPs = ips
	return nb
}

// WithCurrentIP toggles include_current_ip.
func (b *ConfigBuilder) WithCurrentIP(include bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.IncludeCurrentIP = include
	return nb
}

// WithServicePorts sets the published service ports.
func (b *ConfigBuilder) WithServicePorts(ports ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ServicePorts = ports
	return nb
}

// WithPubKey adds an authorized key for user.
func (b *ConfigBuilder) WithPubKey(user, key string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.SSHPubKeys[user] = key
	return nb
}

// WithGeneratedKey enables key generation at path.
func (b *ConfigBuilder) WithGeneratedKey(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.GenerateSSHKey = true
	nb.cfg.GeneratedSSHKeyPath = path
	return nb
}

// WithPrivateKey disables key generation and uses the key at path.
func (b *ConfigBuilder) WithPrivateKey(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.GenerateSSHKey = false
	nb.cfg.SSHPrivateKeyPath = path
	return nb
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	return &b.clone().cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.SSHPubKeys = maps.Clone(b.cfg.SSHPubKeys)
	if newCfg.SSHPubKeys == nil {
		newCfg.SSHPubKeys = map[string]string{}
	}
	newCfg.AllowedIPs = cloneStringSlice(b.cfg.AllowedIPs)
	newCfg.ServicePorts = cloneStringSlice(b.cfg.ServicePorts)
	return &ConfigBuilder{cfg: newCfg}
}

// cloneStringSlice creates a copy of a string slice.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cloned := make([]string, len(s))
	copy(cloned, s)
	return cloned
}

// MinimalConfig returns a single-node valid config.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().WithInstanceCount(1).Build()
}
