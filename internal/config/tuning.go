// Package config loads the detector tuning file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/kinelabel/internal/boundary"
	"github.com/ayusman/kinelabel/internal/container"
	"github.com/ayusman/kinelabel/internal/detect"
	"github.com/ayusman/kinelabel/internal/merge"
	"github.com/ayusman/kinelabel/internal/reconcile"
)

// maxFileSize bounds tuning files.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Tuning holds every threshold of the labeling pipeline. The zero value is
// not useful; start from DefaultTuning.
type Tuning struct {
	Container   container.Config         `json:"container" toml:"container"`
	Linear      detect.LinearConfig      `json:"linear" toml:"linear"`
	Rotation    detect.RotationConfig    `json:"rotation" toml:"rotation"`
	Interaction detect.InteractionConfig `json:"interaction" toml:"interaction"`
	Approach    detect.ApproachConfig    `json:"approach" toml:"approach"`
	Merge       merge.Config             `json:"merge" toml:"merge"`
	Boundary    boundary.Config          `json:"boundary" toml:"boundary"`
	Reconcile   reconcile.Config         `json:"reconcile" toml:"reconcile"`
}

// DefaultTuning returns the standard thresholds of every stage.
func DefaultTuning() Tuning {
	return Tuning{
		Container:   container.DefaultConfig(),
		Linear:      detect.DefaultLinearConfig(),
		Rotation:    detect.DefaultRotationConfig(),
		Interaction: detect.DefaultInteractionConfig(),
		Approach:    detect.DefaultApproachConfig(),
		Merge:       merge.DefaultConfig(),
		Boundary:    boundary.DefaultConfig(),
		Reconcile:   reconcile.DefaultConfig(),
	}
}

// Load reads a .json or .toml tuning file. Values missing from the file keep
// their defaults, so partial files are fine.
func Load(path string) (Tuning, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return Tuning{}, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return Tuning{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read config file: %w", err)
	}

	t, err := Parse(data, ext)
	if err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// Parse decodes tuning data in the format named by ext (".json" or ".toml")
// over the defaults and validates the result.
func Parse(data []byte, ext string) (Tuning, error) {
	t := DefaultTuning()

	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return Tuning{}, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return Tuning{}, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		return Tuning{}, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return t, nil
}

// Validate checks that the thresholds are usable.
func (t Tuning) Validate() error {
	unit := map[string]float64{
		"container.min_confidence":             t.Container.MinConfidence,
		"container.min_fraction":               t.Container.MinFraction,
		"linear.push.confidence":               t.Linear.Push.Confidence,
		"linear.slide.confidence":              t.Linear.Slide.Confidence,
		"linear.lift.confidence":               t.Linear.Lift.Confidence,
		"linear.place.confidence":              t.Linear.Place.Confidence,
		"rotation.twist.confidence":            t.Rotation.Twist.Confidence,
		"rotation.pour.confidence":             t.Rotation.Pour.Confidence,
		"interaction.open_confidence":          t.Interaction.OpenConfidence,
		"interaction.close_confidence":         t.Interaction.CloseConfidence,
		"interaction.interior_lift_confidence": t.Interaction.InteriorLiftConfidence,
		"approach.reach_confidence":            t.Approach.ReachConfidence,
		"approach.grasp_confidence":            t.Approach.GraspConfidence,
		"boundary.reversal_fraction":           t.Boundary.ReversalFraction,
		"reconcile.min_confidence":             t.Reconcile.MinConfidence,
		"reconcile.min_margin":                 t.Reconcile.MinMargin,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
	}

	positive := map[string]int{
		"container.min_frames":    t.Container.MinFrames,
		"linear.push.max_samples": t.Linear.Push.MaxSamples,
		"linear.push.stop_window": t.Linear.Push.StopWindow,
		"linear.place.lookahead":  t.Linear.Place.Lookahead,
		"rotation.min_samples":    t.Rotation.MinSamples,
		"approach.grasp_window":   t.Approach.GraspWindow,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	nonNegative := map[string]int{
		"linear.edge_margin":         t.Linear.EdgeMargin,
		"rotation.twist.edge_margin": t.Rotation.Twist.EdgeMargin,
		"rotation.pour.edge_margin":  t.Rotation.Pour.EdgeMargin,
		"interaction.edge_margin":    t.Interaction.EdgeMargin,
		"approach.edge_margin":       t.Approach.EdgeMargin,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}

	if t.Linear.Push.StopCount >= t.Linear.Push.StopWindow {
		return fmt.Errorf("linear.push.stop_count (%d) must be below stop_window (%d)",
			t.Linear.Push.StopCount, t.Linear.Push.StopWindow)
	}
	if t.Rotation.Twist.SustainRate > t.Rotation.Twist.TriggerRate {
		return fmt.Errorf("rotation.twist.sustain_rate (%f) must not exceed trigger_rate (%f)",
			t.Rotation.Twist.SustainRate, t.Rotation.Twist.TriggerRate)
	}
	if t.Rotation.Pour.SustainTiltDegrees > t.Rotation.Pour.TriggerTiltDegrees {
		return fmt.Errorf("rotation.pour.sustain_tilt_degrees (%f) must not exceed trigger_tilt_degrees (%f)",
			t.Rotation.Pour.SustainTiltDegrees, t.Rotation.Pour.TriggerTiltDegrees)
	}

	windows := map[string]merge.Duration{
		"merge.twist":     t.Merge.Twist,
		"merge.pour":      t.Merge.Pour,
		"merge.lift":      t.Merge.Lift,
		"merge.place":     t.Merge.Place,
		"merge.container": t.Merge.Container,
		"merge.default":   t.Merge.Default,
	}
	for name, w := range windows {
		if w < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, w)
		}
	}

	return nil
}
