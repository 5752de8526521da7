package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/util/labels"
)

// EnsureFirewallRule implements cloud.Engine. The rule becomes a Hetzner
// firewall whose inbound rules allow spec.Allow from spec.Sources, applied
// to every server matching spec.Targets.
func (e *Engine) EnsureFirewallRule(ctx context.Context, spec cloud.FirewallRuleSpec) (*cloud.FirewallRule, error) {
	rules, err := buildFirewallRules(spec)
	if err != nil {
		return nil, err
	}
	applyTo := []hcloud.FirewallResource{{
		Type:          hcloud.FirewallResourceTypeLabelSelector,
		LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: labels.Selector(spec.Targets)},
	}}

	fw, err := (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
		Name:         spec.Name,
		ResourceType: "firewall",
		Get:          e.client.Firewall.Get,
		Create:       e.createFirewall,
		Update: func(ctx context.Context, fw *hcloud.Firewall, opts hcloud.FirewallSetRulesOpts) ([]*hcloud.Action, *hcloud.Response, error) {
			actions, resp, err := e.client.Firewall.SetRules(ctx, fw, opts)
			if err != nil || appliedTo(fw, applyTo[0].LabelSelector.Selector) {
				return actions, resp, err
			}
			more, resp, err := e.client.Firewall.ApplyResources(ctx, fw, applyTo)
			return append(actions, more...), resp, err
		},
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:    spec.Name,
				Rules:   rules,
				Labels:  spec.Labels,
				ApplyTo: applyTo,
			}
		},
		UpdateOptsMapper: func(_ *hcloud.Firewall) hcloud.FirewallSetRulesOpts {
			return hcloud.FirewallSetRulesOpts{Rules: rules}
		},
	}).Execute(ctx, e)
	if err != nil {
		return nil, err
	}

	return &cloud.FirewallRule{
		ID:      fw.ID,
		Name:    spec.Name,
		Kind:    spec.Kind,
		Allow:   spec.Allow,
		Sources: spec.Sources,
		Targets: spec.Targets,
		Labels:  spec.Labels,
	}, nil
}

func (e *Engine) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := e.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// DeleteFirewallRule implements cloud.Engine. The firewall is detached from
// its servers first.
func (e *Engine) DeleteFirewallRule(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          e.client.Firewall.Get,
		Delete:       e.detachAndDeleteFirewall,
	}).Execute(ctx, e)
}

func (e *Engine) detachAndDeleteFirewall(ctx context.Context, fw *hcloud.Firewall) (*hcloud.Response, error) {
	if len(fw.AppliedTo) > 0 {
		actions, resp, err := e.client.Firewall.RemoveResources(ctx, fw, fw.AppliedTo)
		if err != nil {
			return resp, err
		}
		if err := waitForActions(ctx, e.client, actions...); err != nil {
			return resp, err
		}
	}
	return e.client.Firewall.Delete(ctx, fw)
}

func buildFirewallRules(spec cloud.FirewallRuleSpec) ([]hcloud.FirewallRule, error) {
	sources := make([]net.IPNet, 0, len(spec.Sources))
	for _, s := range spec.Sources {
		_, ipNet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("firewall %s: invalid source %q: %w", spec.Name, s, err)
		}
		sources = append(sources, *ipNet)
	}
	if len(sources) == 0 {
		return nil, nil
	}

	rules := make([]hcloud.FirewallRule, 0, len(spec.Allow))
	for _, a := range spec.Allow {
		rule := hcloud.FirewallRule{
			Direction:   hcloud.FirewallRuleDirectionIn,
			SourceIPs:   sources,
			Description: hcloud.Ptr(string(spec.Kind)),
		}
		switch a.Protocol {
		case cloud.ProtocolTCP, cloud.ProtocolUDP:
			port := a.Port
			if port == "" {
				port = "any"
			}
			rule.Protocol = hcloud.FirewallRuleProtocol(a.Protocol)
			rule.Port = hcloud.Ptr(port)
		case cloud.ProtocolICMP:
			rule.Protocol = hcloud.FirewallRuleProtocolICMP
		case cloud.ProtocolESP:
			rule.Protocol = hcloud.FirewallRuleProtocolESP
		default:
			return nil, fmt.Errorf("firewall %s: unsupported protocol %q", spec.Name, a.Protocol)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func appliedTo(fw *hcloud.Firewall, selector string) bool {
	for _, r := range fw.AppliedTo {
		if r.Type == hcloud.FirewallResourceTypeLabelSelector && r.LabelSelector != nil && r.LabelSelector.Selector == selector {
			return true
		}
	}
	return false
}
