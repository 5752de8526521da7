// Package network provisions the swarm's private network, its subnet and the
// firewall rules guarding every node.
//
// All ranges, sources and ports are validated before the first engine call,
// so an invalid configuration never leaves partial resources behind.
package network
