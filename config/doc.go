// Package config loads service settings from a YAML file, .env files and
// the process environment, in that order of precedence from lowest to highest.
package config
