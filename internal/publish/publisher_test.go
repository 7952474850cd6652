package publish

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/retry"
)

type sent struct {
	subject string
	msgID   string
	data    []byte
	headers map[string]string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	err    error
	// failures makes the next n sends fail.
	failures int
	calls    int
	closed   bool
}

func (f *fakeSender) Send(_ context.Context, subject, msgID string, data []byte, headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return stderrors.New("nats: timeout")
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{subject, msgID, data, headers})
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func emitted(t *testing.T) hooks.Emitted {
	t.Helper()
	m := manifest.New(manifest.Entry{Name: "main.js", Value: "main.1.js"})
	data, err := m.ToJSON()
	require.NoError(t, err)
	return hooks.Emitted{PassID: "p1", FileName: "manifest.json", OutputPath: "/dist/manifest.json", Manifest: m, Bytes: data, Complete: true, Members: []string{"web"}}
}

func TestPublisher_Publish(t *testing.T) {
	fs := &fakeSender{}
	p := NewPublisher(fs, "assets.manifest", nil)

	set := hooks.NewSet()
	set.TapAfterEmit("nats", p.AfterEmit())
	require.NoError(t, set.CallAfterEmit(t.Context(), emitted(t)))

	require.Len(t, fs.sent, 1)
	got := fs.sent[0]
	assert.Equal(t, "assets.manifest", got.subject)
	assert.Equal(t, "p1", got.msgID)
	assert.Equal(t, "true", got.headers[HeaderComplete])

	var msg Message
	require.NoError(t, json.Unmarshal(got.data, &msg))
	assert.Equal(t, "p1", msg.PassID)
	assert.Equal(t, []string{"web"}, msg.Members)
	m, err := manifest.FromJSON(msg.Manifest)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main.js": "main.1.js"}, m.Map())

	require.NoError(t, p.Close())
	assert.True(t, fs.closed)
}

func TestPublisher_NonJSONPayload(t *testing.T) {
	fs := &fakeSender{}
	e := emitted(t)
	e.Bytes = []byte("main.js=main.1.js\n")
	require.NoError(t, NewPublisher(fs, "s", nil).Publish(t.Context(), e))

	var msg Message
	require.NoError(t, json.Unmarshal(fs.sent[0].data, &msg))
	var s string
	require.NoError(t, json.Unmarshal(msg.Manifest, &s))
	assert.Equal(t, "main.js=main.1.js\n", s)
}

func TestPublisher_SendError(t *testing.T) {
	fs := &fakeSender{err: assert.AnError}
	err := NewPublisher(fs, "s", nil).Publish(t.Context(), emitted(t))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPublish))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	fs := &fakeSender{failures: 2}
	p := NewPublisher(fs, "assets.manifest", nil)
	p.SetRetry(retry.NewPolicy(retry.Fixed, time.Millisecond, time.Millisecond, 2))

	require.NoError(t, p.Publish(t.Context(), emitted(t)))
	assert.Equal(t, 3, fs.calls)
	require.Len(t, fs.sent, 1)
}

func TestPublisher_NoRetryByDefault(t *testing.T) {
	fs := &fakeSender{failures: 1}
	p := NewPublisher(fs, "assets.manifest", nil)

	err := p.Publish(t.Context(), emitted(t))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPublish))
	assert.Equal(t, 1, fs.calls)
}
