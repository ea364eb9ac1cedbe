// Package kvstore is the durable key-value primitive behind the local
// library: the chosen library root and the job-to-dataset index live here.
//
// Values are opaque blobs in a single SQLite table. Update runs a
// read-modify-write inside one transaction so concurrent writers to the same
// key serialize instead of losing updates. Schema changes bump the version in
// schema.go; older databases are rejected with ErrSchemaMismatch.
package kvstore
