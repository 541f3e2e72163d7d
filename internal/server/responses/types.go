// Package responses defines API response types used by botpack HTTP handlers.
package responses

import "time"

// ModuleResponse is one selectable module.
type ModuleResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Size        int64  `json:"size"`
}

// ModulesResponse lists the current catalog.
type ModulesResponse struct {
	Modules   []ModuleResponse `json:"modules"`
	Count     int              `json:"count"`
	Timestamp time.Time        `json:"timestamp"`
}

// HealthResponse represents the liveness check response. Modules lists the
// identifiers currently selectable.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Modules   []string  `json:"modules"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SelectionRequest is the object form of a /process body.
type SelectionRequest struct {
	SelectedFiles []string `json:"selectedFiles"`
}
