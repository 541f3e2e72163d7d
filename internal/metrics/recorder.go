package metrics

import "time"

// OutcomeLabel enumerates assembly outcomes for counters. Failures are
// labeled with their error category instead.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
)

// Recorder defines observability hooks for assembly and module sync metrics.
type Recorder interface {
	ObserveAssemblyDuration(d time.Duration)
	IncAssemblyOutcome(outcome OutcomeLabel)
	ObserveInjectedBytes(n int64)
	ObserveArchiveBytes(n int64)
	IncModuleSelected(module string)
	SetCatalogSize(n int)
	IncSyncResult(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveAssemblyDuration(time.Duration) {}
func (NoopRecorder) IncAssemblyOutcome(OutcomeLabel)       {}
func (NoopRecorder) ObserveInjectedBytes(int64)            {}
func (NoopRecorder) ObserveArchiveBytes(int64)             {}
func (NoopRecorder) IncModuleSelected(string)              {}
func (NoopRecorder) SetCatalogSize(int)                    {}
func (NoopRecorder) IncSyncResult(bool)                    {}
