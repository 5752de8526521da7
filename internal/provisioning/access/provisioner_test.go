package access

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/swarmzner/internal/config"
	"github.com/imamik/swarmzner/internal/provisioning"
	testutil "github.com/imamik/swarmzner/internal/testing"
	"github.com/imamik/swarmzner/internal/util/keygen"
)

const testBits = 1024

func TestKeypair_GeneratesOnce(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "keys", "deployer")
	cfg := testutil.NewConfigBuilder().WithGeneratedKey(path).Build()
	p := NewProvisioner(WithKeyBits(testBits))

	kp, generated, err := p.Keypair(cfg)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, path, kp.Path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, string(kp.PublicKey), strings.TrimSpace(string(pub)))
	assert.True(t, strings.HasPrefix(string(kp.PublicKey), "ssh-rsa "))

	assert.Equal(t, string(kp.PublicKey), kp.Metadata[config.DeployerUser])
	assert.Contains(t, kp.Metadata, "alice")

	again, generated, err := p.Keypair(cfg)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, kp.PrivateKey, again.PrivateKey)
	assert.Equal(t, kp.PublicKey, again.PublicKey)
}

func TestKeypair_RewritesMissingPublicHalf(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deployer")
	cfg := testutil.NewConfigBuilder().WithGeneratedKey(path).Build()
	p := NewProvisioner(WithKeyBits(testBits))

	kp, _, err := p.Keypair(cfg)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path+".pub"))

	_, generated, err := p.Keypair(cfg)
	require.NoError(t, err)
	assert.False(t, generated)
	pub, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, string(kp.PublicKey)+"\n", string(pub))
}

func TestKeypair_DeployerOverridesConfiguredKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deployer")
	cfg := testutil.NewConfigBuilder().
		WithGeneratedKey(path).
		WithPubKey(config.DeployerUser, "ssh-ed25519 AAAAstale").
		Build()

	kp, _, err := NewProvisioner(WithKeyBits(testBits)).Keypair(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(kp.PublicKey), kp.Metadata[config.DeployerUser])
}

func TestKeypair_CorruptKeyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deployer")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))
	cfg := testutil.NewConfigBuilder().WithGeneratedKey(path).Build()

	_, _, err := NewProvisioner(WithKeyBits(testBits)).Keypair(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a key", string(data), "an unreadable key must not be replaced")
}

func TestKeypair_ExistingPrivateKey(t *testing.T) {
	t.Parallel()
	pair, err := keygen.GenerateRSAKeyPair(testBits)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, pair.PrivateKey, 0o600))

	cfg := testutil.NewConfigBuilder().
		WithPrivateKey(path).
		WithPubKey("ops", string(pair.PublicKey)+" ops@laptop").
		Build()

	kp, generated, err := NewProvisioner().Keypair(cfg)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Empty(t, kp.PublicKey)
	assert.Equal(t, pair.PrivateKey, kp.PrivateKey)
	assert.Equal(t, cfg.SSHPubKeys, kp.Metadata)
	assert.NotContains(t, kp.Metadata, config.DeployerUser)
	assert.True(t, authorizes(kp))

	_, err = os.Stat(path + ".pub")
	assert.True(t, os.IsNotExist(err), "no public key file is written for operator keys")
}

func TestKeypair_MissingPrivateKey(t *testing.T) {
	t.Parallel()
	cfg := testutil.NewConfigBuilder().WithPrivateKey(filepath.Join(t.TempDir(), "missing")).Build()
	_, _, err := NewProvisioner().Keypair(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProvision_SetsStateAndWarns(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deployer")
	cfg := testutil.NewConfigBuilder().WithGeneratedKey(path).Build()
	fx := testutil.NewFixture(t, cfg)
	pctx := fx.Context(context.Background())
	pctx.State.Keypair = nil

	p := NewProvisioner(WithKeyBits(testBits))
	assert.Equal(t, "access", p.Name())
	require.NoError(t, p.Provision(pctx))
	require.NotNil(t, pctx.State.Keypair)
	assert.Len(t, fx.Observer.EventsOfType(provisioning.EventResourceCreated), 1)
	assert.Empty(t, fx.Observer.EventsOfType(provisioning.EventValidationWarning))

	// An operator key that no node authorizes is accepted with a warning.
	pair, err := keygen.GenerateRSAKeyPair(testBits)
	require.NoError(t, err)
	other := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(other, pair.PrivateKey, 0o600))
	fx.Config.GenerateSSHKey = false
	fx.Config.SSHPrivateKeyPath = other

	require.NoError(t, p.Provision(pctx))
	assert.Len(t, fx.Observer.EventsOfType(provisioning.EventValidationWarning), 1)
}

func TestProvision_WrapsErrors(t *testing.T) {
	t.Parallel()
	cfg := testutil.NewConfigBuilder().WithPrivateKey(filepath.Join(t.TempDir(), "missing")).Build()
	fx := testutil.NewFixture(t, cfg)

	err := NewProvisioner().Provision(fx.Context(context.Background()))
	var pe *provisioning.ProvisioningError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, provisioning.KindAccess, pe.Kind)
}

func TestKeyBody(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ssh-rsa AAAA", keyBody("ssh-rsa AAAA user@host"))
	assert.Equal(t, "garbage", keyBody("garbage"))
}
