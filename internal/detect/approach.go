package detect

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// ApproachConfig controls reach and grasp detection.
type ApproachConfig struct {
	// Enabled turns the detector on. It is off by default.
	Enabled bool `json:"enabled" toml:"enabled"`

	ReachMinOpenness float64 `json:"reach_min_openness" toml:"reach_min_openness"`
	ReachMinSamples  int     `json:"reach_min_samples" toml:"reach_min_samples"`
	ReachConfidence  float64 `json:"reach_confidence" toml:"reach_confidence"`

	GraspWindow      int     `json:"grasp_window" toml:"grasp_window"`
	GraspMinClosing  float64 `json:"grasp_min_closing" toml:"grasp_min_closing"`
	GraspMinOpenness float64 `json:"grasp_min_openness" toml:"grasp_min_openness"`
	GraspConfidence  float64 `json:"grasp_confidence" toml:"grasp_confidence"`

	EdgeMargin int `json:"edge_margin" toml:"edge_margin"`
}

// DefaultApproachConfig returns the standard reach and grasp thresholds.
func DefaultApproachConfig() ApproachConfig {
	return ApproachConfig{
		ReachMinOpenness: 0.4,
		ReachMinSamples:  5,
		ReachConfidence:  0.75,
		GraspWindow:      5,
		GraspMinClosing:  0.15,
		GraspMinOpenness: 0.3,
		GraspConfidence:  0.85,
		EdgeMargin:       10,
	}
}

// Approach finds reaches (fast motion with an open hand) and grasps (the hand
// closing).
type Approach struct {
	config ApproachConfig
}

// NewApproach creates a reach and grasp detector.
func NewApproach(config ApproachConfig) *Approach {
	return &Approach{config: config}
}

// Detect returns reach and grasp events, or nothing when disabled.
func (d *Approach) Detect(t *trajectory.Trajectory) []action.Event {
	c := d.config
	if !c.Enabled {
		return nil
	}

	n := t.Len()
	speeds := make([]float64, n)
	for i := range speeds {
		speeds[i] = t.At(i).Speed
	}
	mean, std := stat.PopMeanStdDev(speeds, nil)

	var events []action.Event
	i := 0
	for i < n-c.EdgeMargin {
		s := t.At(i)
		if s.Speed > mean+std && s.GripOpenness > c.ReachMinOpenness {
			start := i
			for i < n && speeds[i] > mean {
				i++
			}
			end := min(i, n-1)
			if end-start > c.ReachMinSamples {
				events = append(events, action.Event{
					Kind:       action.Reach,
					Object:     attribute(t, end),
					Start:      t.Timestamp(start),
					End:        t.Timestamp(end),
					Confidence: c.ReachConfidence,
				})
			}
		}

		if i < n-c.GraspWindow {
			open := t.At(i).GripOpenness
			if t.At(i+c.GraspWindow).GripOpenness-open < -c.GraspMinClosing && open > c.GraspMinOpenness {
				events = append(events, action.Event{
					Kind:       action.Grasp,
					Object:     attribute(t, i+c.GraspWindow),
					Start:      t.Timestamp(i),
					End:        t.Timestamp(i + c.GraspWindow),
					Confidence: c.GraspConfidence,
				})
				i += c.GraspWindow
			}
		}

		i++
	}

	return events
}
