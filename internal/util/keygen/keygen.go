package keygen

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// DefaultBits is the RSA key size used for deployer keys.
const DefaultBits = 4096

// KeyPair holds an RSA key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in PEM-encoded PKCS#8 format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format, without trailing newline.
	PublicKey []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	pub, err := publicKeyFor(privateKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{PrivateKey: privateKeyPEM, PublicKey: pub}, nil
}

// ParsePrivateKey rebuilds a KeyPair from an existing PEM private key
// (PKCS#1, PKCS#8 or OpenSSH format).
func ParsePrivateKey(privateKeyPEM []byte) (*KeyPair, error) {
	raw, err := ssh.ParseRawPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	pub, err := publicKeyFor(raw)
	if err != nil {
		return nil, err
	}
	return &KeyPair{PrivateKey: privateKeyPEM, PublicKey: pub}, nil
}

func publicKeyFor(raw any) ([]byte, error) {
	signer, err := ssh.NewSignerFromKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	return bytes.TrimSpace(ssh.MarshalAuthorizedKey(signer.PublicKey())), nil
}
