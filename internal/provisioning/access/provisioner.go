package access

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	"github.com/imamik/swarmzner/internal/util/keygen"
)

const phase = "access"

// Keypair is the deployer keypair handed to the other phases.
type Keypair = provisioning.Keypair

// Provisioner implements the access phase.
type Provisioner struct {
	bits int
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithKeyBits overrides the RSA key size of generated keys.
func WithKeyBits(bits int) Option {
	return func(p *Provisioner) { p.bits = bits }
}

// NewProvisioner creates a new access provisioner.
func NewProvisioner(opts ...Option) *Provisioner {
	p := &Provisioner{bits: keygen.DefaultBits}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	kp, generated, err := p.Keypair(ctx.Config)
	if err != nil {
		return &provisioning.ProvisioningError{Kind: provisioning.KindAccess, Resource: ctx.Config.PrivateKeyPath(), Err: err}
	}
	ctx.State.Keypair = kp

	if generated {
		provisioning.LogResourceCreated(ctx.Observer, phase, "ssh key", kp.Path, "")
	} else {
		ctx.Observer.Printf("[%s] Using existing SSH key %s", phase, kp.Path)
	}
	if !authorizes(kp) {
		ctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventValidationWarning,
			Phase:    phase,
			Resource: kp.Path,
			Message:  "the private key's public half is not among ssh_pub_keys; nodes will refuse it",
		})
	}
	return nil
}

// Keypair returns the deployer keypair for cfg. generated is true when a
// new key was written to disk.
func (p *Provisioner) Keypair(cfg *config.Config) (kp *Keypair, generated bool, err error) {
	metadata := make(map[string]string, len(cfg.SSHPubKeys)+1)
	for user, key := range cfg.SSHPubKeys {
		metadata[user] = strings.TrimSpace(key)
	}

	if !cfg.GenerateSSHKey {
		pair, err := loadPrivateKey(cfg.SSHPrivateKeyPath)
		if err != nil {
			return nil, false, err
		}
		return &Keypair{
			PrivateKey: pair.PrivateKey,
			Metadata:   metadata,
			Path:       cfg.SSHPrivateKeyPath,
		}, false, nil
	}

	path := cfg.GeneratedSSHKeyPath
	pair, err := loadPrivateKey(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		pair, err = p.generate(path)
		if err != nil {
			return nil, false, err
		}
		generated = true
	default:
		return nil, false, err
	}

	if err := ensurePublicKeyFile(path, pair.PublicKey); err != nil {
		return nil, false, err
	}

	metadata[config.DeployerUser] = string(pair.PublicKey)
	return &Keypair{
		PrivateKey: pair.PrivateKey,
		PublicKey:  pair.PublicKey,
		Metadata:   metadata,
		Path:       path,
	}, generated, nil
}

func (p *Provisioner) generate(path string) (*keygen.KeyPair, error) {
	pair, err := keygen.GenerateRSAKeyPair(p.bits)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory %s: %w", dir, err)
		}
	}
	// O_EXCL so a concurrently written key is never clobbered.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key %s: %w", path, err)
	}
	if _, err := f.Write(pair.PrivateKey); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write private key %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write private key %s: %w", path, err)
	}
	return pair, nil
}

func loadPrivateKey(path string) (*keygen.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("private key %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	pair, err := keygen.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("private key %s: %w", path, err)
	}
	return pair, nil
}

// ensurePublicKeyFile writes <path>.pub unless it already holds pub.
func ensurePublicKeyFile(path string, pub []byte) error {
	pubPath := path + ".pub"
	existing, err := os.ReadFile(pubPath)
	if err == nil && bytes.Equal(bytes.TrimSpace(existing), pub) {
		return nil
	}
	if err := os.WriteFile(pubPath, append(append([]byte(nil), pub...), '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write public key %s: %w", pubPath, err)
	}
	return nil
}

// authorizes reports whether the private key's public half is in the metadata.
func authorizes(kp *Keypair) bool {
	pair, err := keygen.ParsePrivateKey(kp.PrivateKey)
	if err != nil {
		return false
	}
	want := keyBody(string(pair.PublicKey))
	for _, key := range kp.Metadata {
		if keyBody(key) == want {
			return true
		}
	}
	return false
}

// keyBody strips the comment from an authorized_keys line.
func keyBody(key string) string {
	fields := strings.Fields(key)
	if len(fields) < 2 {
		return key
	}
	return fields[0] + " " + fields[1]
}
