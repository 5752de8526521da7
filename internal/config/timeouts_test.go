package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, env := range []string{
		"SWARMZNER_TIMEOUT_SERVER_CREATE", "SWARMZNER_TIMEOUT_MANAGER_INIT",
		"SWARMZNER_MANAGER_INIT_ATTEMPTS", "SWARMZNER_PARALLELISM",
	} {
		t.Setenv(env, "")
	}

	tm := LoadTimeouts()
	assert.Equal(t, 10*time.Minute, tm.ServerCreate)
	assert.Equal(t, 2*time.Minute, tm.ManagerInit)
	assert.Equal(t, 3, tm.ManagerInitAttempts)
	assert.Equal(t, 5*time.Minute, tm.TokenWait)
	assert.Equal(t, 3, tm.JoinAttempts)
	assert.Equal(t, 5, tm.Parallelism)
	assert.Equal(t, time.Second, tm.RetryInitialDelay)
}

func TestLoadTimeouts_FromEnv(t *testing.T) {
	t.Setenv("SWARMZNER_TIMEOUT_MANAGER_INIT", "45s")
	t.Setenv("SWARMZNER_MANAGER_INIT_ATTEMPTS", "7")
	t.Setenv("SWARMZNER_TIMEOUT_TOKEN_WAIT", "1m")
	t.Setenv("SWARMZNER_PARALLELISM", "2")

	tm := LoadTimeouts()
	assert.Equal(t, 45*time.Second, tm.ManagerInit)
	assert.Equal(t, 7, tm.ManagerInitAttempts)
	assert.Equal(t, time.Minute, tm.TokenWait)
	assert.Equal(t, 2, tm.Parallelism)
}

func TestLoadTimeouts_InvalidFallsBack(t *testing.T) {
	t.Setenv("SWARMZNER_TIMEOUT_DELETE", "soon")
	t.Setenv("SWARMZNER_JOIN_ATTEMPTS", "0")
	t.Setenv("SWARMZNER_RETRY_MAX_DELAY", "-1s")

	tm := LoadTimeouts()
	assert.Equal(t, 5*time.Minute, tm.Delete)
	assert.Equal(t, 3, tm.JoinAttempts)
	assert.Equal(t, 30*time.Second, tm.RetryMaxDelay)
}
