// Package s3 provides a client for Hetzner Object Storage (S3-compatible)
// and a versioned secret store built on top of it.
//
// Every secret container is a key prefix inside one bucket. Values are
// stored as immutable, numbered version objects; ownership and read grants
// live in small JSON documents next to them.
package s3
