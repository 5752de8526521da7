// Package labels provides consistent labeling for provisioned resources.
//
// All labels use the swarmzner.io domain prefix and follow a builder pattern
// for constructing label sets with cluster name, role, node index and the
// managing tool.
package labels
