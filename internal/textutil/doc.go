// Package textutil provides filename sanitization and display-title helpers
// for dataset folders and manifests.
package textutil
