// Package config defines the deployment configuration model.
//
// A [Config] is loaded from YAML with [LoadFile], has defaults applied
// before any provisioning step, and is checked by [Config.Validate].
// Credentials never live in the file; they come from the environment
// through [LoadCredentials]. Engine timeouts and retry budgets are
// environment-tunable through [LoadTimeouts].
package config
