package secrets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	t.Parallel()
	s, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := s.Seal("demo-token", []byte(rawToken))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, []byte(rawToken)))

	plain, err := s.Open("demo-token", sealed)
	require.NoError(t, err)
	assert.Equal(t, rawToken, string(plain))
}

func TestSealer_NonceIsRandom(t *testing.T) {
	t.Parallel()
	s, err := NewSealer("k")
	require.NoError(t, err)
	a, err := s.Seal("c", []byte("same"))
	require.NoError(t, err)
	b, err := s.Seal("c", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Failures(t *testing.T) {
	t.Parallel()
	_, err := NewSealer("")
	assert.Error(t, err)

	s, err := NewSealer("one")
	require.NoError(t, err)
	other, err := NewSealer("two")
	require.NoError(t, err)

	_, err = s.Seal("c", nil)
	assert.Error(t, err)

	sealed, err := s.Seal("c", []byte("value"))
	require.NoError(t, err)

	_, err = other.Open("c", sealed)
	assert.Error(t, err, "wrong key")

	_, err = s.Open("different-container", sealed)
	assert.Error(t, err, "wrong container")

	_, err = s.Open("c", []byte("short"))
	assert.ErrorContains(t, err, "too short")
}
