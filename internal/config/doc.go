package config

// Package config loads the YAML configuration file and applies defaults for
// omitted values.
