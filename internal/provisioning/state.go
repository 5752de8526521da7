package provisioning

import (
	"sort"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/placement"
	"github.com/imamik/swarmzner/internal/secrets"
)

// Keypair is the deployer's SSH access material.
type Keypair struct {
	// PrivateKey is the PEM private key used for on-node operations.
	PrivateKey []byte
	// PublicKey is the deployer public key in authorized_keys format.
	// Empty when no key was generated.
	PublicKey []byte
	// Metadata maps a node username to its authorized public key.
	Metadata map[string]string
	// Path is the private key file on the deployer's disk.
	Path string
}

// Users returns the metadata usernames in sorted order.
func (k *Keypair) Users() []string {
	if k == nil {
		return nil
	}
	return cloud.SortedKeys(k.Metadata)
}

// NodeStatus is the bootstrap outcome of one node.
type NodeStatus struct {
	Index int
	Role  string
	Zone  placement.Zone
	Node  *cloud.Node
	// Joined is true once the node is an active swarm member.
	Joined bool
	// AlreadyJoined is true when the node was a member before this apply.
	AlreadyJoined bool
	Err           error
}

// Cluster owns every node of the deployment.
type Cluster struct {
	Manager *NodeStatus
	Workers []*NodeStatus
}

// Nodes returns the manager followed by the workers, ordered by index.
func (c *Cluster) Nodes() []*NodeStatus {
	var out []*NodeStatus
	if c.Manager != nil {
		out = append(out, c.Manager)
	}
	workers := append([]*NodeStatus(nil), c.Workers...)
	sort.Slice(workers, func(i, j int) bool { return workers[i].Index < workers[j].Index })
	return append(out, workers...)
}

// JoinedWorkers counts workers that are swarm members.
func (c *Cluster) JoinedWorkers() int {
	n := 0
	for _, w := range c.Workers {
		if w.Joined {
			n++
		}
	}
	return n
}

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes.
type State struct {
	Deployment *Deployment

	// Access results
	Keypair *Keypair

	// Network results
	Network  *cloud.NetworkHandle
	PublicIP string // Deployer's public IPv4, when looked up

	// Compute results
	Cluster Cluster
	// TokenVersion is the published join token version workers read.
	TokenVersion secrets.Version
	// TokenRepublished is true when this apply wrote a new token version.
	TokenRepublished bool
}

// NewState creates an empty provisioning state in StateStart.
func NewState() *State {
	return &State{Deployment: NewDeployment()}
}
