// Package source provides the read-only file handles the classifier, the
// parsers, and the merge engine consume.
//
// A File exposes its name, size, and MIME type and can be opened any number
// of times; each Open returns an independent reader so no two parse
// operations share state. Path-backed handles come from local disk while
// in-memory handles wrap bytes extracted from an artifact bundle.
package source
