// Package config handles loading and validating devicehub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading .env.local and .env files without clobbering the process environment
//   - Overriding with DEVICEHUB_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Secrets (JWT secret, broker password, InfluxDB token) belong in the environment
//   - The JWT secret has no default and must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.API.Port)
package config
