// Package services defines shared utilities consumed by the ingestion flow,
// the parsers, and the library store.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, dataset IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is without string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across packages.
package services
