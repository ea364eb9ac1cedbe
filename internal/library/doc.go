// Package library persists ingested datasets under a user-chosen library
// root and indexes them by job id.
//
// The root directory and the job-to-dataset index live in the key-value
// store; the dataset folders hold the content. The index decides whether a
// local copy of a job exists, while a folder missing its expected files is
// treated as a cache miss rather than an error. Lookups never fail loudly:
// permission problems, a missing root, or a missing folder are logged and
// reported as "not found" so callers can prompt or re-download.
//
// Datasets from earlier releases were nested one level deeper in a
// VideoAnnotatorDatasets subdirectory; ResolveDatasetsDir keeps reading
// them from there.
package library
