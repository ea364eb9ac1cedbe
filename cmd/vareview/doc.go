// Package main hosts the vareview CLI entrypoint and command graph.
//
// The Cobra command tree exposes the annotation core from a terminal: file
// classification, offline merges of local annotation files, speaker
// statistics, the local dataset library, and ingestion of remote jobs. It
// centralizes configuration resolution, logger construction, and opening the
// state database so subcommands only deal with presentation.
//
// Add behaviour to the internal packages first and surface it here through a
// dedicated command or flag.
package main
