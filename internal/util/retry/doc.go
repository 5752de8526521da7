// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable attempts,
// delays and an optional overall deadline. It is used for engine API calls,
// manager initialization, token polling and worker joins.
package retry
