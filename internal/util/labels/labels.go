package labels

import (
	"sort"
	"strconv"
	"strings"
)

// Standard label keys.
const (
	// KeyCluster identifies which cluster a resource belongs to
	KeyCluster = "swarmzner.io/cluster"

	// KeyRole identifies the swarm role of a node (manager, worker)
	KeyRole = "swarmzner.io/role"

	// KeyIndex is the node index within the cluster
	KeyIndex = "swarmzner.io/index"

	// KeyZone is the placement zone letter of a node
	KeyZone = "swarmzner.io/zone"

	// KeyRuleKind identifies a firewall rule's kind (internal, administrative, service)
	KeyRuleKind = "swarmzner.io/rule"

	// KeyIdentity is the node identity the workload runs as
	KeyIdentity = "swarmzner.io/identity"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "swarmzner.io/managed-by"
)

// Role values
const (
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// ManagedBySwarmzner marks resources created by this tool.
const ManagedBySwarmzner = "swarmzner"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the cluster name pre-set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedBySwarmzner,
		},
	}
}

// WithRole adds a role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithIndex adds the node index label.
func (lb *LabelBuilder) WithIndex(index int) *LabelBuilder {
	lb.labels[KeyIndex] = strconv.Itoa(index)
	return lb
}

// WithZone adds the zone label.
func (lb *LabelBuilder) WithZone(zone string) *LabelBuilder {
	lb.labels[KeyZone] = zone
	return lb
}

// WithRuleKind adds the firewall rule kind label.
func (lb *LabelBuilder) WithRuleKind(kind string) *LabelBuilder {
	lb.labels[KeyRuleKind] = kind
	return lb
}

// WithIdentity adds the node identity label.
func (lb *LabelBuilder) WithIdentity(identity string) *LabelBuilder {
	if identity != "" {
		lb.labels[KeyIdentity] = identity
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForCluster returns a label selector string for all resources in a cluster.
func SelectorForCluster(clusterName string) string {
	return KeyCluster + "=" + clusterName
}

// Selector renders a label set as an equality-based selector, keys sorted.
func Selector(set map[string]string) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+set[k])
	}
	return strings.Join(parts, ",")
}

// Matches reports whether labels contain every key/value in selector.
func Matches(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
