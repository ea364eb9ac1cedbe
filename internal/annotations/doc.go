// Package annotations defines the canonical annotation document produced by
// the merge engine and persisted as annotations_merged.json.
//
// Every annotation kind is always present as an array, possibly empty, so
// consumers only ever check lengths. Documents written by earlier releases
// that kept video_info under metadata are upgraded on decode.
package annotations
