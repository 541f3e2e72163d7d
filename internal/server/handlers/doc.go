// Package handlers contains the HTTP handlers of the botpack front end.
//
// This package provides handlers for:
//   - the module selector page and the token guide page
//   - the module listing API and the package download endpoint
//   - liveness and readiness checks
//
// Errors are reported through the foundation/errors HTTP adapter so every
// failure kind maps to its own status code and JSON payload.
package handlers
