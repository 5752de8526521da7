// Package placement assigns nodes to availability zones.
//
// [ZoneOf] is a pure round-robin over three zones so that placement is
// reproducible across runs and never depends on engine state. [Location]
// resolves a zone to a concrete Hetzner location for a region.
package placement
