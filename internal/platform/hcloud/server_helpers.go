package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/swarmzner/internal/cloud"
	"github.com/imamik/swarmzner/internal/util/labels"
)

// resolveServerType resolves a machine type name.
func (e *Engine) resolveServerType(ctx context.Context, name string) (*hcloud.ServerType, error) {
	st, _, err := e.client.ServerType.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server type: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("server type not found: %s", name)
	}
	return st, nil
}

// resolveImage resolves an image name or ID for the server type's architecture.
func (e *Engine) resolveImage(ctx context.Context, image string, st *hcloud.ServerType) (*hcloud.Image, error) {
	img, _, err := e.client.Image.GetForArchitecture(ctx, image, st.Architecture)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("image not found: %s (%s)", image, st.Architecture)
	}
	if img.Status != "" && img.Status != hcloud.ImageStatusAvailable {
		return nil, fmt.Errorf("image %s is %s", image, img.Status)
	}
	return img, nil
}

// resolveSSHKeys registers every key and returns them in name order.
func (e *Engine) resolveSSHKeys(ctx context.Context, keys map[string]string, keyLabels map[string]string) ([]*hcloud.SSHKey, error) {
	out := make([]*hcloud.SSHKey, 0, len(keys))
	for _, name := range cloud.SortedKeys(keys) {
		key, err := e.ensureSSHKey(ctx, name, keys[name], keyLabels)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// resolveLocation resolves a location name to a location object.
func (e *Engine) resolveLocation(ctx context.Context, location string) (*hcloud.Location, error) {
	if location == "" {
		return nil, nil
	}
	loc, _, err := e.client.Location.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", location, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location not found: %s", location)
	}
	return loc, nil
}

// clusterLabels keeps the labels shared by every resource of a cluster.
func clusterLabels(in map[string]string) map[string]string {
	out := map[string]string{}
	for _, k := range []string{labels.KeyCluster, labels.KeyManagedBy} {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}

// ServerPrivateIP returns the server's address in the network, or empty string.
func ServerPrivateIP(s *hcloud.Server, networkID int64) string {
	if s == nil {
		return ""
	}
	for _, pn := range s.PrivateNet {
		if pn.Network != nil && pn.IP != nil && (networkID == 0 || pn.Network.ID == networkID) {
			return pn.IP.String()
		}
	}
	return ""
}

func attachedTo(s *hcloud.Server, networkID int64) bool {
	for _, pn := range s.PrivateNet {
		if pn.Network != nil && pn.Network.ID == networkID {
			return true
		}
	}
	return false
}

func toNode(s *hcloud.Server, networkID int64) *cloud.Node {
	n := &cloud.Node{
		ID:        s.ID,
		Name:      s.Name,
		PublicIP:  ServerIPv4(s),
		PrivateIP: ServerPrivateIP(s, networkID),
		Status:    string(s.Status),
		Labels:    s.Labels,
	}
	if s.Location != nil {
		n.Location = s.Location.Name
	}
	return n
}
