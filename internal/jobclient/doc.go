// Package jobclient talks to the remote video-processing service that runs
// annotation pipelines and publishes artifact bundles.
//
// Client is the narrow surface the ingestion flow depends on; HTTPClient is
// the production implementation. Transport failures carry services markers so
// callers can tell a retryable hiccup (ErrTransient, ErrTimeout) from a
// missing job (ErrNotFound) or a bad token (ErrConfiguration).
package jobclient
