// Package assembly merges the base template with a validated selection of
// modules into a new deliverable archive.
//
// Every call to Assembler.Assemble opens its own template cursor and builds
// into a private buffer, so concurrent assemblies share nothing mutable and
// need no locking. A failed assembly never yields output: the in-progress
// archive is discarded and every opened stream is closed before returning.
package assembly
