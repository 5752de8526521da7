package cloud

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups for resources that do not exist.
var ErrNotFound = errors.New("resource not found")

// Engine is the provisioning engine the provisioners drive.
type Engine interface {
	NetworkEngine
	FirewallEngine
	NodeEngine

	// DeleteByCluster removes every resource labelled with the cluster.
	DeleteByCluster(ctx context.Context, cluster string) error
	// PublicIP returns the deployer's public IPv4 address as seen from the internet.
	PublicIP(ctx context.Context) (string, error)
}

// NetworkEngine manages networks and subnets.
type NetworkEngine interface {
	EnsureNetwork(ctx context.Context, spec NetworkSpec) (*Network, error)
	EnsureSubnet(ctx context.Context, spec SubnetSpec) (*Subnet, error)
}

// FirewallEngine manages firewall rules.
type FirewallEngine interface {
	EnsureFirewallRule(ctx context.Context, spec FirewallRuleSpec) (*FirewallRule, error)
	// DeleteFirewallRule removes the named rule; missing rules are not an error.
	DeleteFirewallRule(ctx context.Context, name string) error
}

// NodeEngine manages node templates and nodes.
type NodeEngine interface {
	EnsureNodeTemplate(ctx context.Context, spec NodeTemplateSpec) (*NodeTemplate, error)
	EnsureNode(ctx context.Context, spec NodeSpec) (*Node, error)
	// GetNode returns ErrNotFound when the node does not exist.
	GetNode(ctx context.Context, name string) (*Node, error)
	ListNodes(ctx context.Context, selector map[string]string) ([]*Node, error)
}
