package keygen

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	kp, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	block, _ := pem.Decode(kp.PrivateKey)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	rsaKey, ok := key.(*rsa.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, 2048, rsaKey.N.BitLen())

	assert.True(t, strings.HasPrefix(string(kp.PublicKey), "ssh-rsa "))
	assert.NotContains(t, string(kp.PublicKey), "\n")

	_, _, _, _, err = ssh.ParseAuthorizedKey(kp.PublicKey)
	require.NoError(t, err)
}

func TestGenerateRSAKeyPair_InvalidBits(t *testing.T) {
	t.Parallel()
	_, err := GenerateRSAKeyPair(8)
	assert.Error(t, err)
}

func TestParsePrivateKey_RoundTrip(t *testing.T) {
	t.Parallel()
	kp, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, parsed.PublicKey)
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	t.Parallel()
	_, err := ParsePrivateKey([]byte("not a key"))
	assert.Error(t, err)
}
