// Package archive provides the streaming zip primitives the assembler is
// built from: a read-only Source over the base template that opens an
// independent cursor per call, and a Builder that accumulates entries into a
// private in-memory buffer until finalized.
//
// Every failure is returned as a classified error: an unusable template is
// source_unavailable, anything that breaks mid-stream is io.
package archive
