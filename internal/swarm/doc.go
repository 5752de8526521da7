// Package swarm drives the Docker swarm runtime on nodes.
//
// [SSHRuntime] initializes the manager and joins workers by running the
// docker CLI over SSH. Both operations detect an existing swarm membership
// first, so re-running them never re-initializes the manager or rejoins a
// worker. Join tokens travel on stdin only.
package swarm
