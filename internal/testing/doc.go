// Package testing provides test utilities, builders, and fixtures for unit tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - Runtime: In-memory swarm runtime with scripted failures
//   - Fixture: Engine, secret broker and runtime wired into a provisioning context
//
// Usage:
//
//	cfg := testutil.NewConfigBuilder().
//	    WithName("test").
//	    WithInstanceCount(3).
//	    Build()
//
//	fx := testutil.NewFixture(t, cfg)
//	pctx := fx.Context(ctx)
package testing
