package config

import "fmt"

// Default values applied before validation.
const (
	DefaultRegion          = "eu-central"
	DefaultSubnetCIDR      = "10.0.0.0/24"
	DefaultMachineType     = "cx22"
	DefaultImage           = "ubuntu-22.04"
	DefaultInstanceCount   = 3
	DefaultKeyPath         = "./deployer_ssh_key"
	DefaultSSHUser         = "root"
	DefaultSecretStorePath = "./swarmzner-secrets.db"

	// SecondaryCIDR is the container overlay range carried by the subnet.
	// It is fixed; the primary range must never overlap it.
	SecondaryCIDR = "172.17.0.0/16"

	// DeployerUser is the metadata username of the generated deployer key.
	DeployerUser = "deployer"
)

// Secret store backends.
const (
	SecretBackendLocal = "local"
	SecretBackendS3    = "s3"
)

// Config is the declarative description of one swarm deployment.
type Config struct {
	// Name prefixes every resource created for the deployment.
	Name string `yaml:"name"`
	// DockerTokenSecretName is the secret container holding the join token.
	DockerTokenSecretName string `yaml:"docker_token_secret_name"`

	Region           string   `yaml:"region"`
	SubnetCIDRRange  string   `yaml:"subnet_cidr_range"`
	IncludeCurrentIP bool     `yaml:"include_current_ip"`
	AllowedIPs       []string `yaml:"allowed_ips"`
	ServicePorts     []string `yaml:"service_ports"`

	// SSHPubKeys maps a username to an authorized public key.
	SSHPubKeys map[string]string `yaml:"ssh_pub_keys"`
	// ComputeSA is the identity nodes act as when reading the join token.
	ComputeSA string `yaml:"compute_sa"`

	MachineType     string `yaml:"machine_type"`
	InstanceImageID string `yaml:"instance_image_id"`
	InstanceCount   int    `yaml:"instance_count"`

	GenerateSSHKey      bool   `yaml:"generate_ssh_key"`
	GeneratedSSHKeyPath string `yaml:"generated_ssh_key_path"`
	// SSHPrivateKeyPath is used for on-node operations when no key is generated.
	SSHPrivateKeyPath string `yaml:"ssh_private_key_path"`
	SSHUser           string `yaml:"ssh_user"`

	SecretStore SecretStoreConfig `yaml:"secret_store"`
}

// SecretStoreConfig selects and configures the secret store backend.
type SecretStoreConfig struct {
	Backend  string `yaml:"backend"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	// Path is the database file of the local backend.
	Path string `yaml:"path"`
}

// Default returns a Config populated with every default. Loading decodes
// the file on top of it, so absent keys keep their defaults while explicit
// values (including zero) are preserved for validation.
func Default() *Config {
	return &Config{
		Region:              DefaultRegion,
		SubnetCIDRRange:     DefaultSubnetCIDR,
		SSHPubKeys:          map[string]string{},
		MachineType:         DefaultMachineType,
		InstanceImageID:     DefaultImage,
		InstanceCount:       DefaultInstanceCount,
		GenerateSSHKey:      true,
		GeneratedSSHKeyPath: DefaultKeyPath,
		SSHUser:             DefaultSSHUser,
		SecretStore: SecretStoreConfig{
			Backend: SecretBackendLocal,
			Path:    DefaultSecretStorePath,
		},
	}
}

// ApplyDefaults fills values that depend on other fields.
func (c *Config) ApplyDefaults() {
	if c.ComputeSA == "" && c.Name != "" {
		c.ComputeSA = fmt.Sprintf("%s-node", c.Name)
	}
	if c.SSHPubKeys == nil {
		c.SSHPubKeys = map[string]string{}
	}
	if c.SSHUser == "" {
		c.SSHUser = DefaultSSHUser
	}
	if c.SecretStore.Backend == "" {
		c.SecretStore.Backend = SecretBackendLocal
	}
	if c.SecretStore.Backend == SecretBackendLocal && c.SecretStore.Path == "" {
		c.SecretStore.Path = DefaultSecretStorePath
	}
}

// WorkerCount is the number of non-manager nodes.
func (c *Config) WorkerCount() int {
	if c.InstanceCount < 1 {
		return 0
	}
	return c.InstanceCount - 1
}

// PrivateKeyPath is the key file used for SSH access to nodes.
func (c *Config) PrivateKeyPath() string {
	if c.GenerateSSHKey {
		return c.GeneratedSSHKeyPath
	}
	return c.SSHPrivateKeyPath
}
