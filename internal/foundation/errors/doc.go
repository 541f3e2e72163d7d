// Package errors provides the classified error primitives used across botpack.
//
// Every failure the packaging engine can surface is a ClassifiedError whose
// category names the failure kind, so callers branch on kind instead of parsing
// messages:
//   - CategorySourceUnavailable: base template missing, unreadable, or corrupt
//   - CategoryCatalogRead: module root missing or unreadable
//   - CategoryEmptySelection: no identifiers supplied
//   - CategoryUnknownIdentifier: identifiers absent from the catalog
//   - CategorySizeExceeded: injected content over the configured cap
//   - CategoryIO: unexpected read/write failure while streaming
//   - CategoryCanceled: the caller canceled or timed out the request
//
// HTTP and CLI adapters translate categories into status and exit codes.
//
// Example usage:
//
//	err := errors.UnknownIdentifier([]string{"delta"}).
//		WithContext("requested", 2).
//		Build()
package errors
