// Package openface converts OpenFace3 capture documents into face
// annotations.
//
// A capture document is one coherent session, so validation is
// all-or-nothing: a document missing metadata.pipeline, metadata.model_info,
// or the faces array is rejected as a whole rather than record by record.
package openface
