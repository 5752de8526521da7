package cloud

import (
	"sort"
	"strings"
)

// NetworkSpec describes the desired private network.
type NetworkSpec struct {
	Name    string
	IPRange string
	Labels  map[string]string
}

// Network is a provisioned private network.
type Network struct {
	ID      int64
	Name    string
	IPRange string
	Labels  map[string]string
}

// SubnetSpec describes the single subnet of a network.
type SubnetSpec struct {
	NetworkID     int64
	Name          string
	Region        string
	PrimaryCIDR   string
	SecondaryName string
	SecondaryCIDR string
}

// Subnet is a provisioned subnet with its primary and secondary ranges.
type Subnet struct {
	NetworkID     int64
	Name          string
	Region        string
	PrimaryCIDR   string
	SecondaryName string
	SecondaryCIDR string
}

// Ranges returns both address ranges of the subnet.
func (s *Subnet) Ranges() []string {
	return []string{s.PrimaryCIDR, s.SecondaryCIDR}
}

// RuleKind classifies a firewall rule.
type RuleKind string

const (
	// RuleInternal allows all traffic between network members.
	RuleInternal RuleKind = "internal"
	// RuleAdministrative allows SSH from operator addresses.
	RuleAdministrative RuleKind = "administrative"
	// RuleService allows published service ports from operator addresses.
	RuleService RuleKind = "service"
)

// Protocol is an IP protocol a rule can allow.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
	ProtocolESP  Protocol = "esp"
)

// Allow is one protocol/port entry of a rule. Empty Port means every port;
// it is ignored for ICMP and ESP.
type Allow struct {
	Protocol Protocol
	Port     string
}

// FirewallRuleSpec describes an ingress rule applied to every node carrying
// the Targets labels.
type FirewallRuleSpec struct {
	Name    string
	Kind    RuleKind
	Allow   []Allow
	Sources []string
	Targets map[string]string
	Labels  map[string]string
}

// FirewallRule is a provisioned firewall rule.
type FirewallRule struct {
	ID      int64
	Name    string
	Kind    RuleKind
	Allow   []Allow
	Sources []string
	Targets map[string]string
	Labels  map[string]string
}

// NetworkHandle is the result of network provisioning: the network, its
// subnet and every firewall rule guarding it.
type NetworkHandle struct {
	Network *Network
	Subnet  *Subnet
	Rules   []*FirewallRule
}

// Rule returns the rule of the given kind, or nil.
func (h *NetworkHandle) Rule(kind RuleKind) *FirewallRule {
	for _, r := range h.Rules {
		if r.Kind == kind {
			return r
		}
	}
	return nil
}

// NodeTemplateSpec describes the shape shared by worker nodes.
type NodeTemplateSpec struct {
	Name        string
	MachineType string
	Image       string
	UserData    string
	// SSHKeys maps a key name to an authorized public key.
	SSHKeys map[string]string
	Labels  map[string]string
}

// NodeTemplate is a resolved template that nodes can be created from.
type NodeTemplate struct {
	Name        string
	MachineType string
	Image       string
	UserData    string
	SSHKeys     map[string]string
	Labels      map[string]string
}

// NodeSpec describes a single node. Location and NetworkID are always
// per node; machine shape comes from Template when set.
type NodeSpec struct {
	Name      string
	Location  string
	NetworkID int64
	Template  *NodeTemplate

	MachineType string
	Image       string
	UserData    string
	SSHKeys     map[string]string
	Labels      map[string]string
}

// Resolved returns a copy of the spec with template values filled in.
// Explicit spec values win; labels are merged with the spec's on top.
func (s NodeSpec) Resolved() NodeSpec {
	if s.Template == nil {
		return s
	}
	t := s.Template
	if s.MachineType == "" {
		s.MachineType = t.MachineType
	}
	if s.Image == "" {
		s.Image = t.Image
	}
	if s.UserData == "" {
		s.UserData = t.UserData
	}
	if s.SSHKeys == nil {
		s.SSHKeys = t.SSHKeys
	}
	merged := make(map[string]string, len(t.Labels)+len(s.Labels))
	for k, v := range t.Labels {
		merged[k] = v
	}
	for k, v := range s.Labels {
		merged[k] = v
	}
	s.Labels = merged
	return s
}

// Node is a provisioned compute node.
type Node struct {
	ID        int64
	Name      string
	Location  string
	PublicIP  string
	PrivateIP string
	Status    string
	Labels    map[string]string
}

// SortedKeys returns the keys of m in sorted order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EqualStrings reports whether a and b hold the same values, ignoring order.
func EqualStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	return strings.Join(x, "\x00") == strings.Join(y, "\x00")
}
