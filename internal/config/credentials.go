package config

import (
	"errors"
	"os"
)

// Credentials are read from the environment only and never from the config file.
type Credentials struct {
	HCloudToken string
	S3AccessKey string
	S3SecretKey string
	// SecretKey seals token values before they reach the secret store.
	SecretKey string
}

// LoadCredentials reads credentials from:
//   - HCLOUD_TOKEN
//   - SWARMZNER_S3_ACCESS_KEY, SWARMZNER_S3_SECRET_KEY
//   - SWARMZNER_SECRET_KEY
func LoadCredentials() Credentials {
	return Credentials{
		HCloudToken: os.Getenv("HCLOUD_TOKEN"),
		S3AccessKey: os.Getenv("SWARMZNER_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("SWARMZNER_S3_SECRET_KEY"),
		SecretKey:   os.Getenv("SWARMZNER_SECRET_KEY"),
	}
}

// Require checks that the credentials needed for cfg are present.
func (c Credentials) Require(cfg *Config) error {
	var errs []error
	if c.HCloudToken == "" {
		errs = append(errs, errors.New("HCLOUD_TOKEN is not set"))
	}
	if cfg.SecretStore.Backend == SecretBackendS3 && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		errs = append(errs, errors.New("SWARMZNER_S3_ACCESS_KEY and SWARMZNER_S3_SECRET_KEY are required for the s3 secret store"))
	}
	return errors.Join(errs...)
}

// SealerPassphrase returns SWARMZNER_SECRET_KEY, or a passphrase derived from
// the cluster name when it is unset.
func (c Credentials) SealerPassphrase(cfg *Config) string {
	if c.SecretKey != "" {
		return c.SecretKey
	}
	return "swarmzner:" + cfg.Name
}
