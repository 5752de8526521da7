package secrets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawToken = "SWMTKN-1-3pu6hszjas19xyp7ghgosyx9k8atbfcr8p2is99znpy26u2lkl-1awxwuwd3z9j1z3puu7rcgdbx"

func TestToken_RedactedEverywhere(t *testing.T) {
	t.Parallel()
	tok := NewToken("  " + rawToken + "\n")
	assert.Equal(t, rawToken, tok.Reveal())

	renderings := []string{
		tok.String(),
		fmt.Sprint(tok),
		fmt.Sprintf("%v %s %q %x %+v %#v", tok, tok, tok, tok, tok, tok),
		fmt.Sprintf("%v", struct{ Token Token }{tok}),
		fmt.Errorf("join failed with %v", tok).Error(),
	}
	js, err := json.Marshal(map[string]any{"token": tok})
	require.NoError(t, err)
	renderings = append(renderings, string(js))

	for _, r := range renderings {
		assert.NotContains(t, r, rawToken)
		assert.NotContains(t, r, "SWMTKN")
	}
	assert.Equal(t, `{"token":"[REDACTED]"}`, string(js))
}

func TestToken_RedactedInLogs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := funcr.New(func(prefix, args string) {
		buf.WriteString(prefix + args + "\n")
	}, funcr.Options{})

	log.Info("published", "token", NewToken(rawToken))
	assert.NotContains(t, buf.String(), rawToken)
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestToken_IsZero(t *testing.T) {
	t.Parallel()
	assert.True(t, Token{}.IsZero())
	assert.True(t, NewToken("   ").IsZero())
	assert.False(t, NewToken("x").IsZero())
}
