// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Variables may also come from an optional .env file (see LoadEnvFile), which
// never overrides variables already set in the process environment.
package config
