// Package naming provides consistent names for provisioned resources.
//
// Every resource name starts with the cluster name so that resources of
// different clusters in one project never collide.
package naming
