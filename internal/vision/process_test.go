package vision

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/synth"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, script string, actions ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "classify.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	return &Plugin{
		Manifest:   Manifest{Name: "test-classifier", Version: "1.0.0", Executable: "classify.sh", Actions: actions},
		Path:       dir,
		Executable: path,
	}
}

type fakeKeyframes struct {
	paths []string
	err   error
}

func (f fakeKeyframes) Keyframes(float64, float64) ([]string, error) {
	return f.paths, f.err
}

func TestProcessClassifier_Classify(t *testing.T) {
	p := scriptPlugin(t, `cat >/dev/null
echo '{"action":"pour","confidence":0.72,"reasoning":"liquid visible"}'
`)
	window := synth.New().Hold(30).Build()

	v, err := NewProcessClassifier(p, 5*time.Second).Classify(context.Background(), window, nil)
	require.NoError(t, err)
	assert.Equal(t, action.Pour, v.Action)
	assert.Equal(t, 0.72, v.Confidence)
	assert.Equal(t, "liquid visible", v.Reasoning)
}

func TestProcessClassifier_SendsRequest(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "request.json")
	p := scriptPlugin(t, `cat >`+dump+`
echo '{"action":"push","confidence":0.8}'
`)

	window := synth.New().Hold(10).Move(10, r3.Vector{Z: -1}).Build()
	suggestions := []action.Event{
		{Kind: action.Push, Start: 0.3, End: 0.6, Confidence: 0.75, Extra: action.Displacement{Net: -0.3}},
	}

	c := NewProcessClassifier(p, 5*time.Second).
		WithKeyframes(fakeKeyframes{paths: []string{"/tmp/a.jpg", "/tmp/b.jpg"}}).
		WithConfig(json.RawMessage(`{"model":"small"}`))
	_, err := c.Classify(context.Background(), window, suggestions)
	require.NoError(t, err)

	data, err := os.ReadFile(dump)
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, window.Start(), req.Window.Start)
	assert.Equal(t, window.End(), req.Window.End)
	assert.Len(t, req.Window.Frames, window.Len())
	require.Len(t, req.Suggestions, 1)
	assert.Equal(t, "push", req.Suggestions[0].Action)
	assert.Equal(t, []string{"/tmp/a.jpg", "/tmp/b.jpg"}, req.Keyframes)
	assert.JSONEq(t, `{"model":"small"}`, string(req.Config))
}

func TestProcessClassifier_KeyframeFailureIsNotFatal(t *testing.T) {
	p := scriptPlugin(t, `cat >/dev/null
echo '{"action":"lift","confidence":0.6}'
`)
	c := NewProcessClassifier(p, 5*time.Second).WithKeyframes(fakeKeyframes{err: errors.New("recording unavailable")})

	v, err := c.Classify(context.Background(), synth.New().Hold(5).Build(), nil)
	require.NoError(t, err)
	assert.Equal(t, action.Lift, v.Action)
}

func TestProcessClassifier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		actions []string
		wantErr string
	}{
		{
			name:    "plugin reports an error",
			script:  `echo '{"error":"model not loaded"}'`,
			wantErr: "model not loaded",
		},
		{
			name:    "unknown action",
			script:  `echo '{"action":"juggle","confidence":0.9}'`,
			wantErr: "unknown action kind",
		},
		{
			name:    "action outside manifest",
			script:  `echo '{"action":"pour","confidence":0.9}'`,
			actions: []string{"push", "pull"},
			wantErr: "does not list",
		},
		{
			name:    "malformed output",
			script:  `echo 'not json'`,
			wantErr: "failed to parse plugin response",
		},
		{
			name:    "non-zero exit",
			script:  `echo 'boom' >&2; exit 3`,
			wantErr: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scriptPlugin(t, "cat >/dev/null\n"+tt.script+"\n", tt.actions...)
			_, err := NewProcessClassifier(p, 5*time.Second).Classify(context.Background(), synth.New().Hold(5).Build(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProcessClassifier_Timeout(t *testing.T) {
	p := scriptPlugin(t, `exec sleep 10
echo '{"action":"pour","confidence":0.9}'
`)

	start := time.Now()
	_, err := NewProcessClassifier(p, 100*time.Millisecond).Classify(context.Background(), synth.New().Hold(5).Build(), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout"), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPlugin_Supports(t *testing.T) {
	open := &Plugin{}
	assert.True(t, open.Supports(action.Pour))

	limited := &Plugin{Manifest: Manifest{Actions: []string{"push", "pull"}}}
	assert.True(t, limited.Supports(action.Pull))
	assert.False(t, limited.Supports(action.Lift))
}
