// Package events publishes best-effort notifications about finished
// assemblies. Publishing never influences the outcome of a request.
package events

import (
	"context"
	"time"
)

// Kind distinguishes successful and failed assemblies.
type Kind string

const (
	KindSucceeded Kind = "assembly.succeeded"
	KindFailed    Kind = "assembly.failed"
)

// AssemblyEvent describes one finished packaging request.
type AssemblyEvent struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Selection  []string  `json:"selection"`
	Name       string    `json:"name,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
	Category   string    `json:"category,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher delivers assembly events.
type Publisher interface {
	Publish(ctx context.Context, event AssemblyEvent) error
	Close() error
}

// NoopPublisher discards events (default when no broker is configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, AssemblyEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
