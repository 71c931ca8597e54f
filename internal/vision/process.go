package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/reconcile"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// DefaultTimeout bounds one plugin invocation.
const DefaultTimeout = 10 * time.Second

// Keyframer supplies image frames for a time window of the recording.
type Keyframer interface {
	Keyframes(start, end float64) ([]string, error)
}

// ProcessClassifier runs a plugin executable once per classification. The
// request is written as JSON to stdin and the verdict read as JSON from stdout.
type ProcessClassifier struct {
	plugin    *Plugin
	timeout   time.Duration
	keyframes Keyframer
	config    json.RawMessage
}

// NewProcessClassifier creates a classifier for plugin. A non-positive
// timeout selects DefaultTimeout.
func NewProcessClassifier(plugin *Plugin, timeout time.Duration) *ProcessClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ProcessClassifier{plugin: plugin, timeout: timeout}
}

// WithKeyframes attaches a keyframe source. Keyframe failures are logged and
// the plugin is called without images.
func (c *ProcessClassifier) WithKeyframes(k Keyframer) *ProcessClassifier {
	c.keyframes = k
	return c
}

// WithConfig sets the plugin-specific configuration passed in every request.
func (c *ProcessClassifier) WithConfig(config json.RawMessage) *ProcessClassifier {
	c.config = config
	return c
}

// Classify implements reconcile.Classifier.
func (c *ProcessClassifier) Classify(ctx context.Context, window *trajectory.Trajectory, suggestions []action.Event) (reconcile.Verdict, error) {
	req := &Request{
		Window: Window{
			Start:  window.Start(),
			End:    window.End(),
			Frames: trajectory.ToRecord(window).Frames,
		},
		Suggestions: action.Records(suggestions),
		Config:      c.config,
	}

	if c.keyframes != nil {
		frames, err := c.keyframes.Keyframes(window.Start(), window.End())
		if err != nil {
			monitoring.Logf("[vision] keyframes unavailable for %s: %v", c.plugin.Manifest.Name, err)
		}
		req.Keyframes = frames
	}

	resp, err := c.execute(ctx, req)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	if resp.Error != "" {
		return reconcile.Verdict{}, fmt.Errorf("plugin %s: %s", c.plugin.Manifest.Name, resp.Error)
	}

	kind, err := action.ParseKind(resp.Action)
	if err != nil {
		return reconcile.Verdict{}, fmt.Errorf("plugin %s: %w", c.plugin.Manifest.Name, err)
	}
	if !c.plugin.Supports(kind) {
		return reconcile.Verdict{}, fmt.Errorf("plugin %s answered %s, which its manifest does not list", c.plugin.Manifest.Name, kind)
	}

	return reconcile.Verdict{Action: kind, Confidence: resp.Confidence, Reasoning: resp.Reasoning}, nil
}

func (c *ProcessClassifier) execute(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.plugin.Executable)
	cmd.Dir = c.plugin.Path
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin execution timeout after %s: %w", c.timeout, ctx.Err())
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}
	return &resp, nil
}
