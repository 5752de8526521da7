package handlers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/swarm"
	"github.com/imamik/swarmzner/internal/util/naming"
)

type applyReport struct {
	RunID  string
	Config *config.Config
	State  *provisioning.State
	Err    error
}

// renderApplyReport writes a summary of the deployment to w. Colors are
// only emitted when w is a terminal. The join token never appears here.
func renderApplyReport(w io.Writer, rep applyReport) {
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	sectionStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	nameStyle := r.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	okStyle := r.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	errStyle := r.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle := r.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	row := func(name, value string) {
		fmt.Fprintf(w, "  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-10s", name)), value)
	}

	st := rep.State
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("  swarmzner apply: %s", rep.Config.Name)))
	fmt.Fprintln(w, dimStyle.Render("  run "+rep.RunID))
	fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("=", 30)))

	state := st.Deployment.State()
	if state == provisioning.StateFailed {
		row("State", errStyle.Render(fmt.Sprintf("%s (in %s)", state, st.Deployment.FailedFrom())))
	} else {
		row("State", okStyle.Render(string(state)))
	}
	if st.Network != nil && st.Network.Network != nil {
		value := st.Network.Network.Name
		if st.Network.Subnet != nil {
			value += " " + st.Network.Subnet.PrimaryCIDR
		}
		row("Network", value)
	}
	if st.TokenVersion > 0 {
		value := fmt.Sprintf("version %d", st.TokenVersion)
		if st.TokenRepublished {
			value += " (published)"
		} else {
			value += " (reused)"
		}
		row("Token", value)
	}
	if m := st.Cluster.Manager; m != nil && m.Node != nil {
		row("Manager", swarm.ManagerAddr(m.Node))
	}
	if st.Keypair != nil && st.Keypair.Path != "" {
		row("SSH key", st.Keypair.Path)
	}

	if nodes := st.Cluster.Nodes(); len(nodes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("  Nodes"))
		fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("-", 35)))
		for _, n := range nodes {
			status := okStyle.Render(nodeStatus(n))
			if n.Err != nil {
				status = errStyle.Render(nodeStatus(n))
			}
			fmt.Fprintf(w, "  %s  %-8s %-5s %-16s %s\n",
				nameStyle.Render(fmt.Sprintf("%-24s", nodeName(rep.Config, n))),
				n.Role, n.Zone, nodeIP(n), status)
		}
	}

	if rep.Err != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("  Failures"))
		fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("-", 35)))
		var de *provisioning.DeploymentError
		if errors.As(rep.Err, &de) && len(de.Failures) > 0 {
			for _, f := range de.Failures {
				fmt.Fprintln(w, "  "+errStyle.Render(f.String()))
			}
		} else {
			fmt.Fprintln(w, "  "+errStyle.Render(rep.Err.Error()))
		}
	}
	fmt.Fprintln(w)
}

func nodeName(cfg *config.Config, n *provisioning.NodeStatus) string {
	if n.Node != nil {
		return n.Node.Name
	}
	return naming.Node(cfg.Name, n.Index)
}

func nodeIP(n *provisioning.NodeStatus) string {
	if n.Node == nil || n.Node.PublicIP == "" {
		return "-"
	}
	return n.Node.PublicIP
}

func nodeStatus(n *provisioning.NodeStatus) string {
	switch {
	case n.Err != nil:
		return "failed"
	case n.AlreadyJoined:
		return "joined (existing)"
	case n.Joined:
		return "joined"
	case n.Node != nil:
		return "created"
	default:
		return "pending"
	}
}
