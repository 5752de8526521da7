// Package secrets brokers the swarm join token between the manager and the
// workers through a versioned secret store.
//
// The [Broker] is the only component that touches the token value. It seals
// values with AES-256-GCM before they reach a [Store], enforces the
// publish-once rule, grants read access to node identities and lets workers
// poll for the first version. [Token] renders as a redaction marker in every
// formatting path so the value cannot leak into logs or errors.
package secrets
