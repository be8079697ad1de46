// Package config provides configuration loading and validation for Boom Gate Core.
//
// Configuration is loaded from a YAML file with environment variable overrides:
//
//	cfg, err := config.Load("configs/config.yaml")
//
// The loading order is: defaults → YAML file → BOOMGATE_* environment
// variables. Validation runs after all overrides are applied, so a bad
// override fails startup the same way a bad file does.
package config
