// Package config loads, normalizes, and validates vareview configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDEOANNOTATOR_API_TOKEN. The Config type centralizes every knob the CLI,
// the merge engine, and the library store need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
