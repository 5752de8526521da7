// Package hcloud implements the provisioning engine on the Hetzner Cloud API.
//
// Hetzner has no instance templates: a node template is resolved locally by
// checking that its server type and image exist and registering its SSH keys.
// Firewall rules are Hetzner firewalls applied to servers by label selector.
package hcloud
