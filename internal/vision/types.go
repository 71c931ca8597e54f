// Package vision provides the vision stream consulted by the reconciliation
// junction: classifier plugins run as external processes, their discovery
// and a test double. Keyframes come from any Keyframer, see package keyframe.
package vision

import (
	"encoding/json"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// Manifest describes a classifier plugin.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`

	// Actions lists the action kinds the plugin can answer with. Empty means
	// any kind.
	Actions      []string        `json:"actions,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Window is the slice of the trajectory the plugin should classify.
type Window struct {
	Start  float64                  `json:"start"`
	End    float64                  `json:"end"`
	Frames []trajectory.FrameRecord `json:"frames"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Window      Window          `json:"window"`
	Suggestions []action.Record `json:"suggestions"`

	// Keyframes are paths to JPEG frames of the recording inside the window,
	// present when a Keyframer is configured.
	Keyframes []string        `json:"keyframes,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Plugin is a discovered classifier with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the plugin may answer with kind.
func (p *Plugin) Supports(kind action.Kind) bool {
	if len(p.Manifest.Actions) == 0 {
		return true
	}
	for _, a := range p.Manifest.Actions {
		if a == string(kind) {
			return true
		}
	}
	return false
}
