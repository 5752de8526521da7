package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imamik/swarmzner/internal/placement"
)

// Severity levels of a validation issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Field, i.Message)
}

// ValidationError is returned when a configuration cannot be provisioned.
// Nothing has been created when it is returned.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, i.String())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,48}[a-z0-9])?$`)

// Validate checks the whole configuration. Warnings are returned even when
// validation succeeds; errors are reported together as a *ValidationError.
func (c *Config) Validate() ([]Issue, error) {
	var issues []Issue
	add := func(field, severity, format string, args ...any) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...), Severity: severity})
	}

	if c.Name == "" {
		add("name", SeverityError, "name is required")
	} else if !namePattern.MatchString(c.Name) {
		add("name", SeverityError, "must be lowercase alphanumeric with dashes, start with a letter, at most 50 characters")
	}
	if c.DockerTokenSecretName == "" {
		add("docker_token_secret_name", SeverityError, "secret container name is required")
	}
	if !placement.ValidRegion(c.Region) {
		add("region", SeverityError, "unknown region %q: must be one of %v", c.Region, placement.Regions())
	}
	if c.InstanceCount < 1 {
		add("instance_count", SeverityError, "must be at least 1, got %d", c.InstanceCount)
	}
	if c.MachineType == "" {
		add("machine_type", SeverityError, "machine type is required")
	}
	if c.InstanceImageID == "" {
		add("instance_image_id", SeverityError, "image is required")
	}

	issues = append(issues, c.ValidateNetwork()...)
	issues = append(issues, c.validateAccess()...)
	issues = append(issues, c.validateSecretStore()...)

	return splitIssues(issues)
}

// ValidateNetwork checks every range, source and port that ends up in the
// network or its firewall rules.
func (c *Config) ValidateNetwork() []Issue {
	var issues []Issue
	add := func(field, severity, format string, args ...any) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...), Severity: severity})
	}

	primary, err := ParseIPv4CIDR(c.SubnetCIDRRange)
	if err != nil {
		add("subnet_cidr_range", SeverityError, "%v", err)
	} else {
		ones, _ := primary.Mask.Size()
		if ones < 8 || ones > 29 {
			add("subnet_cidr_range", SeverityError, "prefix /%d out of range /8 to /29", ones)
		}
		if primary.String() != strings.TrimSpace(c.SubnetCIDRRange) {
			add("subnet_cidr_range", SeverityWarning, "%q has host bits set, using %s", c.SubnetCIDRRange, primary)
		}
		secondary, _ := ParseIPv4CIDR(SecondaryCIDR)
		if Overlaps(primary, secondary) {
			add("subnet_cidr_range", SeverityError, "%s overlaps the container range %s", primary, SecondaryCIDR)
		}
		if ones > 0 && c.InstanceCount > 0 && ones <= 29 && (1<<(32-ones))-3 < c.InstanceCount {
			add("subnet_cidr_range", SeverityError, "%s cannot hold %d nodes", primary, c.InstanceCount)
		}
	}

	for i, src := range c.AllowedIPs {
		if _, err := ParseSource(src); err != nil {
			add(fmt.Sprintf("allowed_ips[%d]", i), SeverityError, "%v", err)
		}
	}
	for i, p := range c.ServicePorts {
		if _, err := ParsePortRange(p); err != nil {
			add(fmt.Sprintf("service_ports[%d]", i), SeverityError, "%v", err)
		}
	}
	if len(c.AllowedIPs) == 0 && !c.IncludeCurrentIP {
		add("allowed_ips", SeverityWarning, "no administrative sources; only the deployer's current address will reach SSH and service ports")
	}
	return issues
}

func (c *Config) validateAccess() []Issue {
	var issues []Issue
	if c.GenerateSSHKey {
		if c.GeneratedSSHKeyPath == "" {
			issues = append(issues, Issue{Field: "generated_ssh_key_path", Message: "path is required when generate_ssh_key is set", Severity: SeverityError})
		}
	} else if c.SSHPrivateKeyPath == "" {
		issues = append(issues, Issue{Field: "ssh_private_key_path", Message: "a private key is required for node access when generate_ssh_key is false", Severity: SeverityError})
	}
	for user, key := range c.SSHPubKeys {
		if user == "" || strings.ContainsAny(user, ": \t\n") {
			issues = append(issues, Issue{Field: "ssh_pub_keys", Message: fmt.Sprintf("invalid username %q", user), Severity: SeverityError})
		}
		if strings.TrimSpace(key) == "" {
			issues = append(issues, Issue{Field: "ssh_pub_keys." + user, Message: "public key is empty", Severity: SeverityError})
		}
	}
	if c.GenerateSSHKey {
		if _, clash := c.SSHPubKeys[DeployerUser]; clash {
			issues = append(issues, Issue{Field: "ssh_pub_keys." + DeployerUser, Message: "overridden by the generated deployer key", Severity: SeverityWarning})
		}
	}
	return issues
}

func (c *Config) validateSecretStore() []Issue {
	var issues []Issue
	s := c.SecretStore
	switch s.Backend {
	case SecretBackendLocal:
		if s.Path == "" {
			issues = append(issues, Issue{Field: "secret_store.path", Message: "path is required for the local backend", Severity: SeverityError})
		}
	case SecretBackendS3:
		if s.Endpoint == "" {
			issues = append(issues, Issue{Field: "secret_store.endpoint", Message: "endpoint is required for the s3 backend", Severity: SeverityError})
		}
		if s.Bucket == "" {
			issues = append(issues, Issue{Field: "secret_store.bucket", Message: "bucket is required for the s3 backend", Severity: SeverityError})
		}
	default:
		issues = append(issues, Issue{Field: "secret_store.backend", Message: fmt.Sprintf("unknown backend %q: must be %q or %q", s.Backend, SecretBackendLocal, SecretBackendS3), Severity: SeverityError})
	}
	return issues
}

func splitIssues(all []Issue) ([]Issue, error) {
	var errs, warnings []Issue
	for _, i := range all {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		} else {
			warnings = append(warnings, i)
		}
	}
	if len(errs) > 0 {
		return warnings, &ValidationError{Issues: errs}
	}
	return warnings, nil
}
