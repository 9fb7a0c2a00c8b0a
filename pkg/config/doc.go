// Package config loads ghostshell settings from built-in defaults, an
// optional YAML file (usually .ghostshell/config.yaml) and the process
// environment, in that order of precedence.
package config
