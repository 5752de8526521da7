// Package netutil provides TCP reachability checks used before opening
// protocol sessions to freshly created nodes.
package netutil
