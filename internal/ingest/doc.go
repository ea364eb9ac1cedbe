// Package ingest turns a remote job into a locally available dataset.
//
// Flow.Start runs the whole pipeline for one job id: reuse a dataset that is
// already on disk, otherwise make sure a library root is available, download
// the artifact bundle, unzip and classify its entries, merge them into the
// canonical annotation document, and persist everything to the library.
// Progress and state are published through Snapshot and an optional
// observer callback so a CLI or UI can render them while Start runs.
package ingest
