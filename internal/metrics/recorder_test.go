package metrics

import "time"

// testRecorder is shared by tests that need to observe recorder calls.
type testRecorder struct {
	passes   int
	emits    map[EmitOutcome]int
	entries  map[string]int
	filtered int
	hooks    map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{emits: map[EmitOutcome]int{}, entries: map[string]int{}, hooks: map[string]int{}}
}

func (t *testRecorder) ObservePassDuration(time.Duration)      { t.passes++ }
func (t *testRecorder) IncManifestEmit(o EmitOutcome)          { t.emits[o]++ }
func (t *testRecorder) SetManifestEntries(file string, n int)  { t.entries[file] = n }
func (t *testRecorder) IncFilteredAssets(n int)                { t.filtered += n }
func (t *testRecorder) IncHookFailure(hook string)             { t.hooks[hook]++ }

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = newTestRecorder()
)
