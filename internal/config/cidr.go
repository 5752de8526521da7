package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseIPv4CIDR parses an IPv4 CIDR and returns it in canonical form.
func ParseIPv4CIDR(s string) (*net.IPNet, error) {
	ip, network, err := net.ParseCIDR(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("only IPv4 addresses are supported, got IPv6: %s", s)
	}
	return network, nil
}

// Overlaps reports whether two networks share any address.
func Overlaps(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}

// ParseSource parses an allowed source given either as a bare IPv4 address
// (treated as /32) or as a CIDR.
func ParseSource(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return ParseIPv4CIDR(s)
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return &net.IPNet{IP: ip.To4(), Mask: net.CIDRMask(32, 32)}, nil
}

// HostCIDR returns the /32 form of an IPv4 address.
func HostCIDR(ip string) (string, error) {
	n, err := ParseSource(ip)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// PortRange is an inclusive TCP/UDP port range.
type PortRange struct {
	From, To int
}

// String renders the range as "N" or "N-M".
func (p PortRange) String() string {
	if p.From == p.To {
		return strconv.Itoa(p.From)
	}
	return fmt.Sprintf("%d-%d", p.From, p.To)
}

// ParsePortRange parses "N" or "N-M" with 1 <= N <= M <= 65535.
func ParsePortRange(s string) (PortRange, error) {
	s = strings.TrimSpace(s)
	from, to, isRange := strings.Cut(s, "-")
	lo, err := parsePort(from)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q: %w", s, err)
	}
	hi := lo
	if isRange {
		if hi, err = parsePort(to); err != nil {
			return PortRange{}, fmt.Errorf("invalid port range %q: %w", s, err)
		}
		if hi < lo {
			return PortRange{}, fmt.Errorf("invalid port range %q: end before start", s)
		}
	}
	return PortRange{From: lo, To: hi}, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}
