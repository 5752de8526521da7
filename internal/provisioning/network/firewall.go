package network

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/util/labels"
	"github.com/imamik/swarmzner/internal/util/naming"
)

// sshPort is the port of the administrative rule.
const sshPort = "22"

// ProvisionFirewall ensures the internal, administrative and service rules.
// The service rule only exists while service ports are configured.
func (p *Provisioner) ProvisionFirewall(ctx *provisioning.Context, handle *cloud.NetworkHandle) error {
	cfg := ctx.Config

	admin, err := p.adminSources(ctx)
	if err != nil {
		return err
	}

	specs := []cloud.FirewallRuleSpec{
		internalRule(cfg.Name, handle.Subnet),
		adminRule(cfg.Name, admin),
	}
	if len(cfg.ServicePorts) > 0 {
		rule, err := serviceRule(cfg.Name, cfg.ServicePorts, admin)
		if err != nil {
			return err
		}
		specs = append(specs, rule)
	} else {
		name := naming.ServiceFirewall(cfg.Name)
		if err := ctx.Engine.DeleteFirewallRule(ctx, name); err != nil {
			return provisioning.NewProvisioningError(provisioning.KindFirewall, name, fmt.Errorf("failed to delete stale service rule: %w", err))
		}
	}

	for _, spec := range specs {
		rule, err := ctx.Engine.EnsureFirewallRule(ctx, spec)
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, phase, "firewall rule", spec.Name, err)
			return provisioning.NewProvisioningError(provisioning.KindFirewall, spec.Name, err)
		}
		provisioning.LogResourceCreated(ctx.Observer, phase, "firewall rule", rule.Name, strconv.FormatInt(rule.ID, 10))
		handle.Rules = append(handle.Rules, rule)
	}
	return nil
}

// adminSources returns the normalized, deduplicated operator sources,
// including the deployer's own address when requested. Nodes are
// bootstrapped over SSH from the deployer, so an otherwise empty set always
// falls back to the deployer's address.
func (p *Provisioner) adminSources(ctx *provisioning.Context) ([]string, error) {
	cfg := ctx.Config
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, src := range cfg.AllowedIPs {
		n, err := config.ParseSource(src)
		if err != nil {
			return nil, &config.ValidationError{Issues: []config.Issue{{Field: "allowed_ips", Message: err.Error(), Severity: config.SeverityError}}}
		}
		add(n.String())
	}

	if cfg.IncludeCurrentIP || len(out) == 0 {
		ip, err := ctx.Engine.PublicIP(ctx)
		if err != nil {
			return nil, provisioning.NewProvisioningError(provisioning.KindFirewall, naming.AdminFirewall(cfg.Name), fmt.Errorf("failed to determine current public IP: %w", err))
		}
		host, err := config.HostCIDR(ip)
		if err != nil {
			return nil, provisioning.NewProvisioningError(provisioning.KindFirewall, naming.AdminFirewall(cfg.Name), err)
		}
		ctx.State.PublicIP = ip
		add(host)
	}

	sort.Strings(out)
	return out, nil
}

func clusterTargets(cluster string) map[string]string {
	return map[string]string{labels.KeyCluster: cluster}
}

// internalRule allows everything between network members. Its sources are
// always the subnet's own ranges.
func internalRule(cluster string, subnet *cloud.Subnet) cloud.FirewallRuleSpec {
	return cloud.FirewallRuleSpec{
		Name: naming.InternalFirewall(cluster),
		Kind: cloud.RuleInternal,
		Allow: []cloud.Allow{
			{Protocol: cloud.ProtocolTCP},
			{Protocol: cloud.ProtocolUDP},
			{Protocol: cloud.ProtocolICMP},
			{Protocol: cloud.ProtocolESP},
		},
		Sources: subnet.Ranges(),
		Targets: clusterTargets(cluster),
		Labels:  labels.NewLabelBuilder(cluster).WithRuleKind(string(cloud.RuleInternal)).Build(),
	}
}

func adminRule(cluster string, sources []string) cloud.FirewallRuleSpec {
	return cloud.FirewallRuleSpec{
		Name:    naming.AdminFirewall(cluster),
		Kind:    cloud.RuleAdministrative,
		Allow:   []cloud.Allow{{Protocol: cloud.ProtocolTCP, Port: sshPort}},
		Sources: sources,
		Targets: clusterTargets(cluster),
		Labels:  labels.NewLabelBuilder(cluster).WithRuleKind(string(cloud.RuleAdministrative)).Build(),
	}
}

func serviceRule(cluster string, ports, sources []string) (cloud.FirewallRuleSpec, error) {
	allow := make([]cloud.Allow, 0, len(ports))
	seen := map[string]bool{}
	for _, p := range ports {
		r, err := config.ParsePortRange(p)
		if err != nil {
			return cloud.FirewallRuleSpec{}, &config.ValidationError{Issues: []config.Issue{{Field: "service_ports", Message: err.Error(), Severity: config.SeverityError}}}
		}
		if seen[r.String()] {
			continue
		}
		seen[r.String()] = true
		allow = append(allow, cloud.Allow{Protocol: cloud.ProtocolTCP, Port: r.String()})
	}
	return cloud.FirewallRuleSpec{
		Name:    naming.ServiceFirewall(cluster),
		Kind:    cloud.RuleService,
		Allow:   allow,
		Sources: sources,
		Targets: clusterTargets(cluster),
		Labels:  labels.NewLabelBuilder(cluster).WithRuleKind(string(cloud.RuleService)).Build(),
	}, nil
}
