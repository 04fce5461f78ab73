// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation. A .env file in the working directory, when present, is loaded
// into the environment before substitution. The loaded Config is passed
// explicitly to every component; there is no package-level configuration state.
package config
