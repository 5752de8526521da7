package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeSpec_Resolved(t *testing.T) {
	t.Parallel()
	tmpl := &NodeTemplate{
		MachineType: "cx22",
		Image:       "ubuntu-22.04",
		UserData:    "#cloud-config",
		SSHKeys:     map[string]string{"deployer": "ssh-rsa AAA"},
		Labels:      map[string]string{"role": "worker", "cluster": "demo"},
	}

	got := NodeSpec{
		Name:     "demo-swarm-node-1",
		Location: "nbg1",
		Template: tmpl,
		Labels:   map[string]string{"index": "1", "role": "override"},
	}.Resolved()

	assert.Equal(t, "cx22", got.MachineType)
	assert.Equal(t, "ubuntu-22.04", got.Image)
	assert.Equal(t, "#cloud-config", got.UserData)
	assert.Equal(t, tmpl.SSHKeys, got.SSHKeys)
	assert.Equal(t, map[string]string{"role": "override", "cluster": "demo", "index": "1"}, got.Labels)
	assert.Equal(t, "worker", tmpl.Labels["role"], "template must not be mutated")
}

func TestNodeSpec_ResolvedWithoutTemplate(t *testing.T) {
	t.Parallel()
	spec := NodeSpec{Name: "n", MachineType: "cx32"}
	assert.Equal(t, spec, spec.Resolved())
}

func TestNetworkHandle_Rule(t *testing.T) {
	t.Parallel()
	h := &NetworkHandle{Rules: []*FirewallRule{{Name: "i", Kind: RuleInternal}, {Name: "s", Kind: RuleAdministrative}}}
	assert.Equal(t, "s", h.Rule(RuleAdministrative).Name)
	assert.Nil(t, h.Rule(RuleService))
}

func TestSubnet_Ranges(t *testing.T) {
	t.Parallel()
	s := &Subnet{PrimaryCIDR: "10.0.0.0/24", SecondaryCIDR: "172.17.0.0/16"}
	assert.Equal(t, []string{"10.0.0.0/24", "172.17.0.0/16"}, s.Ranges())
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.True(t, EqualStrings([]string{"x", "y"}, []string{"y", "x"}))
	assert.False(t, EqualStrings([]string{"x"}, []string{"x", "x"}))
}
