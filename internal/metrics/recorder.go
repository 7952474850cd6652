package metrics

import "time"

// EmitOutcome enumerates how a manifest pass ended.
type EmitOutcome string

const (
	OutcomeEmitted    EmitOutcome = "emitted"
	OutcomeIncomplete EmitOutcome = "incomplete"
	OutcomeSuppressed EmitOutcome = "suppressed"
	OutcomeFailed     EmitOutcome = "failed"
)

// Recorder defines observability hooks for manifest passes. Implementations
// may forward to Prometheus or any other backend.
type Recorder interface {
	ObservePassDuration(d time.Duration)
	IncManifestEmit(outcome EmitOutcome)
	SetManifestEntries(file string, n int)
	IncFilteredAssets(n int)
	IncHookFailure(hook string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePassDuration(time.Duration) {}
func (NoopRecorder) IncManifestEmit(EmitOutcome)       {}
func (NoopRecorder) SetManifestEntries(string, int)    {}
func (NoopRecorder) IncFilteredAssets(int)             {}
func (NoopRecorder) IncHookFailure(string)             {}
