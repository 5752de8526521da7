package compute

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/imamik/swarmzner/internal/provisioning"
)

// dockerGroup is the group allowed to talk to the Docker daemon.
const dockerGroup = "docker"

type cloudConfig struct {
	Groups        []string    `yaml:"groups"`
	Users         []cloudUser `yaml:"users,omitempty"`
	DisableRoot   bool        `yaml:"disable_root"`
	PackageUpdate bool        `yaml:"package_update"`
	Packages      []string    `yaml:"packages"`
	RunCmd        [][]string  `yaml:"runcmd"`
	FinalMessage  string      `yaml:"final_message,omitempty"`
}

type cloudUser struct {
	Name              string   `yaml:"name"`
	Groups            string   `yaml:"groups"`
	Shell             string   `yaml:"shell"`
	Sudo              string   `yaml:"sudo,omitempty"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys"`
}

// UserData renders the cloud-init document shared by every node: it
// installs Docker and puts each metadata user into the docker group.
func UserData(kp *provisioning.Keypair) (string, error) {
	cc := cloudConfig{
		Groups:        []string{dockerGroup},
		DisableRoot:   false,
		PackageUpdate: true,
		Packages:      []string{"docker.io"},
		RunCmd:        [][]string{{"systemctl", "enable", "--now", "docker"}},
		FinalMessage:  "swarmzner node ready after $UPTIME seconds",
	}
	for _, user := range kp.Users() {
		// root keys are installed by the engine, not by cloud-init
		if user == "root" {
			continue
		}
		cc.Users = append(cc.Users, cloudUser{
			Name:              user,
			Groups:            dockerGroup,
			Shell:             "/bin/bash",
			Sudo:              "ALL=(ALL) NOPASSWD:ALL",
			SSHAuthorizedKeys: []string{kp.Metadata[user]},
		})
		cc.RunCmd = append(cc.RunCmd, []string{"usermod", "-aG", dockerGroup, user})
	}

	out, err := yaml.Marshal(cc)
	if err != nil {
		return "", fmt.Errorf("failed to render cloud-init: %w", err)
	}
	return "#cloud-config\n" + string(out), nil
}
