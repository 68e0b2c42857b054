// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// configs/watcher.yaml documents every key; missing keys take the defaults in
// defaults.go.
package config
