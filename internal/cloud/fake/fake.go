// Package fake provides an in-memory cloud.Engine for tests.
package fake

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/util/labels"
)

// Engine is a thread-safe in-memory cloud.Engine. It records every call and
// can be told to fail specific operations.
type Engine struct {
	mu sync.Mutex

	networks  map[string]*cloud.Network
	subnets   map[int64]*cloud.Subnet
	rules     map[string]*cloud.FirewallRule
	templates map[string]*cloud.NodeTemplate
	nodes     map[string]*cloud.Node
	specs     map[string]cloud.NodeSpec

	nextID   int64
	nextHost map[int64]uint32
	failures map[string]*failure

	// DeployerIP is returned by PublicIP.
	DeployerIP string
	// Calls lists every invoked operation as "Op:name" in call order.
	Calls []string
	// Creates counts resources created per operation.
	Creates map[string]int
}

type failure struct {
	err       error
	remaining int // < 0 means forever
}

var _ cloud.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		networks:   map[string]*cloud.Network{},
		subnets:    map[int64]*cloud.Subnet{},
		rules:      map[string]*cloud.FirewallRule{},
		templates:  map[string]*cloud.NodeTemplate{},
		nodes:      map[string]*cloud.Node{},
		specs:      map[string]cloud.NodeSpec{},
		nextHost:   map[int64]uint32{},
		failures:   map[string]*failure{},
		DeployerIP: "198.51.100.77",
		Creates:    map[string]int{},
	}
}

// FailOn makes op on the named resource return err. times < 0 fails forever.
func (e *Engine) FailOn(op, name string, err error, times int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op+":"+name] = &failure{err: err, remaining: times}
}

// record must be called with the lock held.
func (e *Engine) record(op, name string) error {
	key := op + ":" + name
	e.Calls = append(e.Calls, key)
	f, ok := e.failures[key]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

func (e *Engine) id() int64 {
	e.nextID++
	return e.nextID
}

// EnsureNetwork implements cloud.Engine.
func (e *Engine) EnsureNetwork(_ context.Context, spec cloud.NetworkSpec) (*cloud.Network, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("EnsureNetwork", spec.Name); err != nil {
		return nil, err
	}
	if n, ok := e.networks[spec.Name]; ok {
		if n.IPRange != spec.IPRange {
			return nil, fmt.Errorf("network %s exists with IP range %s, expected %s", spec.Name, n.IPRange, spec.IPRange)
		}
		n.Labels = spec.Labels
		return clone(n), nil
	}
	n := &cloud.Network{ID: e.id(), Name: spec.Name, IPRange: spec.IPRange, Labels: spec.Labels}
	e.networks[spec.Name] = n
	e.Creates["EnsureNetwork"]++
	return clone(n), nil
}

// EnsureSubnet implements cloud.Engine.
func (e *Engine) EnsureSubnet(_ context.Context, spec cloud.SubnetSpec) (*cloud.Subnet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("EnsureSubnet", spec.Name); err != nil {
		return nil, err
	}
	if s, ok := e.subnets[spec.NetworkID]; ok {
		if s.PrimaryCIDR != spec.PrimaryCIDR {
			return nil, fmt.Errorf("subnet %s exists with range %s, expected %s", spec.Name, s.PrimaryCIDR, spec.PrimaryCIDR)
		}
		s.SecondaryCIDR, s.SecondaryName = spec.SecondaryCIDR, spec.SecondaryName
		return clone(s), nil
	}
	s := cloud.Subnet(spec)
	e.subnets[spec.NetworkID] = &s
	e.Creates["EnsureSubnet"]++
	return clone(&s), nil
}

// EnsureFirewallRule implements cloud.Engine.
func (e *Engine) EnsureFirewallRule(_ context.Context, spec cloud.FirewallRuleSpec) (*cloud.FirewallRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("EnsureFirewallRule", spec.Name); err != nil {
		return nil, err
	}
	r, ok := e.rules[spec.Name]
	if !ok {
		r = &cloud.FirewallRule{ID: e.id()}
		e.rules[spec.Name] = r
		e.Creates["EnsureFirewallRule"]++
	}
	r.Name, r.Kind, r.Allow, r.Sources, r.Targets, r.Labels = spec.Name, spec.Kind, spec.Allow, spec.Sources, spec.Targets, spec.Labels
	return clone(r), nil
}

// DeleteFirewallRule implements cloud.Engine.
func (e *Engine) DeleteFirewallRule(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("DeleteFirewallRule", name); err != nil {
		return err
	}
	delete(e.rules, name)
	return nil
}

// EnsureNodeTemplate implements cloud.Engine.
func (e *Engine) EnsureNodeTemplate(_ context.Context, spec cloud.NodeTemplateSpec) (*cloud.NodeTemplate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("EnsureNodeTemplate", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := e.templates[spec.Name]; !ok {
		e.Creates["EnsureNodeTemplate"]++
	}
	t := cloud.NodeTemplate(spec)
	e.templates[spec.Name] = &t
	return clone(&t), nil
}

// EnsureNode implements cloud.Engine. Existing nodes are returned unchanged.
func (e *Engine) EnsureNode(_ context.Context, spec cloud.NodeSpec) (*cloud.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("EnsureNode", spec.Name); err != nil {
		return nil, err
	}
	if n, ok := e.nodes[spec.Name]; ok {
		return clone(n), nil
	}

	resolved := spec.Resolved()
	id := e.id()
	n := &cloud.Node{
		ID:        id,
		Name:      spec.Name,
		Location:  spec.Location,
		PublicIP:  fmt.Sprintf("203.0.113.%d", id%250+1),
		PrivateIP: e.allocate(spec.NetworkID),
		Status:    "running",
		Labels:    resolved.Labels,
	}
	e.nodes[spec.Name] = n
	e.specs[spec.Name] = resolved
	e.Creates["EnsureNode"]++
	return clone(n), nil
}

func (e *Engine) allocate(networkID int64) string {
	base := net.IPv4(10, 0, 0, 0).To4()
	if s, ok := e.subnets[networkID]; ok {
		if _, n, err := net.ParseCIDR(s.PrimaryCIDR); err == nil {
			base = n.IP.To4()
		}
	}
	e.nextHost[networkID]++
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, binary.BigEndian.Uint32(base)+1+e.nextHost[networkID])
	return ip.String()
}

// GetNode implements cloud.Engine.
func (e *Engine) GetNode(_ context.Context, name string) (*cloud.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("GetNode", name); err != nil {
		return nil, err
	}
	n, ok := e.nodes[name]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", name, cloud.ErrNotFound)
	}
	return clone(n), nil
}

// ListNodes implements cloud.Engine. Results are sorted by name.
func (e *Engine) ListNodes(_ context.Context, selector map[string]string) ([]*cloud.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("ListNodes", labels.Selector(selector)); err != nil {
		return nil, err
	}
	var out []*cloud.Node
	for _, n := range e.nodes {
		if labels.Matches(n.Labels, selector) {
			out = append(out, clone(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteByCluster implements cloud.Engine.
func (e *Engine) DeleteByCluster(_ context.Context, cluster string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("DeleteByCluster", cluster); err != nil {
		return err
	}
	sel := map[string]string{labels.KeyCluster: cluster}
	for name, n := range e.nodes {
		if labels.Matches(n.Labels, sel) {
			delete(e.nodes, name)
			delete(e.specs, name)
		}
	}
	for name, r := range e.rules {
		if labels.Matches(r.Labels, sel) {
			delete(e.rules, name)
		}
	}
	for name, n := range e.networks {
		if labels.Matches(n.Labels, sel) {
			delete(e.subnets, n.ID)
			delete(e.networks, name)
		}
	}
	for name, t := range e.templates {
		if labels.Matches(t.Labels, sel) {
			delete(e.templates, name)
		}
	}
	return nil
}

// PublicIP implements cloud.Engine.
func (e *Engine) PublicIP(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("PublicIP", ""); err != nil {
		return "", err
	}
	return e.DeployerIP, nil
}

// Network returns the stored network and its subnet. Either may be nil.
func (e *Engine) Network(name string) (*cloud.Network, *cloud.Subnet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.networks[name]
	if !ok {
		return nil, nil
	}
	if s, ok := e.subnets[n.ID]; ok {
		return clone(n), clone(s)
	}
	return clone(n), nil
}

// Rule returns the stored rule, or nil.
func (e *Engine) Rule(name string) *cloud.FirewallRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.rules[name]; ok {
		return clone(r)
	}
	return nil
}

// NodeSpec returns the resolved spec a node was created with.
func (e *Engine) NodeSpec(name string) (cloud.NodeSpec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.specs[name]
	return s, ok
}

// NodeNames returns the names of all nodes, sorted.
func (e *Engine) NodeNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloud.SortedKeys(e.nodes)
}

// Count returns how many calls to op were recorded.
func (e *Engine) Count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.Calls {
		if len(c) > len(op) && c[:len(op)+1] == op+":" {
			n++
		}
	}
	return n
}

// Resources returns the number of stored networks, rules, templates and nodes.
func (e *Engine) Resources() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.networks) + len(e.rules) + len(e.templates) + len(e.nodes)
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}
