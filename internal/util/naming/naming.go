package naming

import "fmt"

func Network(cluster string) string {
	return fmt.Sprintf("%s-swarm-network", cluster)
}

func Subnet(cluster string) string {
	return fmt.Sprintf("%s-swarm-subnet", cluster)
}

// SecondaryRange is the name of the subnet's secondary (container) range.
const SecondaryRange = "docker"

func InternalFirewall(cluster string) string {
	return fmt.Sprintf("%s-swarm-internal", cluster)
}

func AdminFirewall(cluster string) string {
	return fmt.Sprintf("%s-ssh", cluster)
}

func ServiceFirewall(cluster string) string {
	return fmt.Sprintf("%s-service", cluster)
}

func NodeTemplate(cluster string) string {
	return fmt.Sprintf("%s-swarm-node-template", cluster)
}

func Node(cluster string, index int) string {
	return fmt.Sprintf("%s-swarm-node-%d", cluster, index)
}

func SSHKey(cluster, user string) string {
	return fmt.Sprintf("%s-%s", cluster, user)
}

// DefaultIdentity is the node identity used when none is configured.
func DefaultIdentity(cluster string) string {
	return fmt.Sprintf("%s-node", cluster)
}
