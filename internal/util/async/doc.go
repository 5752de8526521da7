// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] runs every task to completion and joins all errors.
// [RunBounded] does the same with a concurrency limit. Neither aborts
// sibling tasks when one fails.
package async
