package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values and retry budgets.
// These values can be customized via environment variables.
type Timeouts struct {
	ServerCreate        time.Duration // Timeout for node creation
	Delete              time.Duration // Timeout for all delete operations
	DockerReady         time.Duration // Timeout for a node's Docker engine to answer over SSH
	ManagerInit         time.Duration // Timeout for one manager initialization attempt
	ManagerInitAttempts int           // Manager initialization attempts before failing
	TokenWait           time.Duration // Total time a worker waits for the token to appear
	JoinAttempts        int           // Join attempts per worker
	Parallelism         int           // Concurrent worker operations
	RetryMaxAttempts    int           // Maximum number of engine API retry attempts
	RetryInitialDelay   time.Duration // Initial delay between retries
	RetryMaxDelay       time.Duration // Cap on the delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - SWARMZNER_TIMEOUT_SERVER_CREATE (default: 10m)
//   - SWARMZNER_TIMEOUT_DELETE (default: 5m)
//   - SWARMZNER_TIMEOUT_DOCKER_READY (default: 5m)
//   - SWARMZNER_TIMEOUT_MANAGER_INIT (default: 2m)
//   - SWARMZNER_MANAGER_INIT_ATTEMPTS (default: 3)
//   - SWARMZNER_TIMEOUT_TOKEN_WAIT (default: 5m)
//   - SWARMZNER_JOIN_ATTEMPTS (default: 3)
//   - SWARMZNER_PARALLELISM (default: 5)
//   - SWARMZNER_RETRY_MAX_ATTEMPTS (default: 5)
//   - SWARMZNER_RETRY_INITIAL_DELAY (default: 1s)
//   - SWARMZNER_RETRY_MAX_DELAY (default: 30s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:        parseDuration("SWARMZNER_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Delete:              parseDuration("SWARMZNER_TIMEOUT_DELETE", 5*time.Minute),
		DockerReady:         parseDuration("SWARMZNER_TIMEOUT_DOCKER_READY", 5*time.Minute),
		ManagerInit:         parseDuration("SWARMZNER_TIMEOUT_MANAGER_INIT", 2*time.Minute),
		ManagerInitAttempts: parsePositiveInt("SWARMZNER_MANAGER_INIT_ATTEMPTS", 3),
		TokenWait:           parseDuration("SWARMZNER_TIMEOUT_TOKEN_WAIT", 5*time.Minute),
		JoinAttempts:        parsePositiveInt("SWARMZNER_JOIN_ATTEMPTS", 3),
		Parallelism:         parsePositiveInt("SWARMZNER_PARALLELISM", 5),
		RetryMaxAttempts:    parsePositiveInt("SWARMZNER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:   parseDuration("SWARMZNER_RETRY_INITIAL_DELAY", 1*time.Second),
		RetryMaxDelay:       parseDuration("SWARMZNER_RETRY_MAX_DELAY", 30*time.Second),
	}
}

// TestTimeouts returns short budgets suitable for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:        5 * time.Second,
		Delete:              5 * time.Second,
		DockerReady:         time.Second,
		ManagerInit:         time.Second,
		ManagerInitAttempts: 2,
		TokenWait:           200 * time.Millisecond,
		JoinAttempts:        2,
		Parallelism:         4,
		RetryMaxAttempts:    2,
		RetryInitialDelay:   time.Millisecond,
		RetryMaxDelay:       5 * time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// parsePositiveInt parses an integer >= 1 from an environment variable.
func parsePositiveInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
