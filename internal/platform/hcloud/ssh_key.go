package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"golang.org/x/crypto/ssh"
)

// ensureSSHKey registers publicKey under name. A key already registered
// under another name is reused, since Hetzner rejects duplicate keys.
func (e *Engine) ensureSSHKey(ctx context.Context, name, publicKey string, keyLabels map[string]string) (*hcloud.SSHKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return nil, fmt.Errorf("ssh key %s: invalid public key: %w", name, err)
	}
	fingerprint := ssh.FingerprintLegacyMD5(pub)

	key, _, err := e.client.SSHKey.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key %s: %w", name, err)
	}
	if key != nil {
		if key.Fingerprint != fingerprint {
			return nil, fmt.Errorf("ssh key %s exists with a different public key", name)
		}
		return key, nil
	}

	key, _, err = e.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    keyLabels,
	})
	if err == nil {
		e.log.Info("Registered SSH key", "name", name, "fingerprint", fingerprint)
		return key, nil
	}
	if !IsUniquenessError(err) {
		return nil, fmt.Errorf("failed to create ssh key %s: %w", name, err)
	}

	key, _, err = e.client.SSHKey.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key by fingerprint: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("ssh key %s: duplicate reported but fingerprint %s not found", name, fingerprint)
	}
	e.log.V(1).Info("Reusing registered SSH key", "name", key.Name, "requested", name)
	return key, nil
}

// DeleteSSHKey deletes the SSH key with the given name.
func (e *Engine) DeleteSSHKey(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          e.client.SSHKey.Get,
		Delete:       e.client.SSHKey.Delete,
	}).Execute(ctx, e)
}
