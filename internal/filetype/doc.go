// Package filetype classifies annotation inputs by name, extension, MIME
// type, and (for ambiguous JSON) a peek at the document structure.
//
// Classification never fails: the worst case is TypeUnknown with low
// confidence and a human-readable reason. Confidence is a UI hint only; the
// merge engine ingests every classified file regardless of it.
package filetype
