// Package bundle reads the zip artifact bundles produced by the job service.
//
// Callers work with the narrow Entry interface rather than archive/zip types.
// Files turns the usable entries into in-memory source.File handles, skipping
// directories, macOS resource forks and dot-files, and filling in MIME types
// the archive does not carry.
package bundle
