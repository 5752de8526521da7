// Package cloud defines the provisioning engine contract and the resource
// model shared by every provisioner.
//
// All Ensure operations are idempotent: they return the existing resource
// when it already matches, update it when it drifted, and create it
// otherwise. Engines are addressed by resource name; labels scope
// resources to a cluster for listing and teardown.
package cloud
