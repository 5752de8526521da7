// Package metrics records deployment measurements on a private Prometheus
// registry and exports them in the node_exporter textfile format.
package metrics
