// Package ssh runs commands on nodes over SSH.
//
// Connections are established with exponential backoff, since freshly
// created nodes take a while to accept logins. Sensitive input is passed on
// stdin and never appears in the command line, logs or returned errors.
//
// Security: Host key verification is disabled by default for freshly
// provisioned nodes. Configure HostKeyCallback to pin host keys.
package ssh
