package detect

import (
	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/container"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// InteractionConfig controls container open/close detection. An opening is a
// sustained run of negative depth velocity (away from the camera) and a
// closing a sustained run of positive depth velocity (back toward it).
type InteractionConfig struct {
	OpenDepthSpeed  float64 `json:"open_depth_speed" toml:"open_depth_speed"`
	OpenMinSpeed    float64 `json:"open_min_speed" toml:"open_min_speed"`
	OpenSustain     float64 `json:"open_sustain" toml:"open_sustain"`
	OpenMinDuration float64 `json:"open_min_duration" toml:"open_min_duration"`
	OpenConfidence  float64 `json:"open_confidence" toml:"open_confidence"`

	CloseDepthSpeed  float64 `json:"close_depth_speed" toml:"close_depth_speed"`
	CloseMinSpeed    float64 `json:"close_min_speed" toml:"close_min_speed"`
	CloseSustain     float64 `json:"close_sustain" toml:"close_sustain"`
	CloseMinDuration float64 `json:"close_min_duration" toml:"close_min_duration"`
	CloseConfidence  float64 `json:"close_confidence" toml:"close_confidence"`

	// EdgeMargin keeps triggers this many samples away from the window edges.
	EdgeMargin int `json:"edge_margin" toml:"edge_margin"`

	// InteriorLiftConfidence replaces the lift confidence between open and close.
	InteriorLiftConfidence float64 `json:"interior_lift_confidence" toml:"interior_lift_confidence"`
}

// DefaultInteractionConfig returns the standard container interaction thresholds.
func DefaultInteractionConfig() InteractionConfig {
	return InteractionConfig{
		OpenDepthSpeed:  0.5,
		OpenMinSpeed:    1.0,
		OpenSustain:     0.3,
		OpenMinDuration: 0.2,
		OpenConfidence:  0.90,

		CloseDepthSpeed:  0.5,
		CloseMinSpeed:    0.8,
		CloseSustain:     0.3,
		CloseMinDuration: 0.15,
		CloseConfidence:  0.85,

		EdgeMargin:             5,
		InteriorLiftConfidence: 0.80,
	}
}

// Interaction detects opening and closing of accepted containers and the
// manipulation that happens in between.
type Interaction struct {
	config InteractionConfig
	linear *Linear
}

// NewInteraction creates a container interaction detector that uses linear
// for the lifts and places inside the container.
func NewInteraction(config InteractionConfig, linear *Linear) *Interaction {
	return &Interaction{config: config, linear: linear}
}

// Detect returns open, close and interior events. It returns nothing when no
// container was accepted.
func (d *Interaction) Detect(t *trajectory.Trajectory, containers []container.Container) []action.Event {
	first, last, ok := container.Span(containers)
	if !ok {
		return nil
	}
	best, _ := container.MostDetected(containers)
	object := string(best.Kind)

	from, to := t.IndexNearest(first), t.IndexNearest(last)
	meanInterval := t.MeanInterval()

	var events []action.Event
	interiorFrom, interiorTo := from, to

	if open, ok := d.firstOpening(t, from, to, meanInterval); ok {
		open.Object = action.Object(object)
		events = append(events, open)
		interiorFrom = t.IndexNearest(open.End)
	}
	if closing, ok := d.lastClosing(t, from, to, meanInterval); ok {
		closing.Object = action.Object(object)
		events = append(events, closing)
		interiorTo = t.IndexNearest(closing.Start)
	}

	if d.linear != nil && interiorTo > interiorFrom {
		interior := d.linear.Scan(t, Scope{
			From:   interiorFrom,
			To:     interiorTo,
			Kinds:  []action.Kind{action.Lift, action.Place},
			Margin: d.config.EdgeMargin,
		})
		for _, e := range interior {
			if e.Kind == action.Lift {
				e.Confidence = d.config.InteriorLiftConfidence
			}
			events = append(events, e)
		}
	}

	return events
}

func (d *Interaction) firstOpening(t *trajectory.Trajectory, from, to int, interval float64) (action.Event, bool) {
	c := d.config
	for i := from; i < to+1-c.EdgeMargin; i++ {
		s := t.At(i)
		if s.Velocity.Z >= -c.OpenDepthSpeed || s.Speed <= c.OpenMinSpeed {
			continue
		}

		j := i
		for j <= to && t.At(j).Velocity.Z < -c.OpenSustain {
			j++
		}
		if float64(j-i)*interval <= c.OpenMinDuration {
			continue
		}

		return action.Event{
			Kind:       action.ContainerOpen,
			Start:      t.Timestamp(i),
			End:        t.Timestamp(min(j, to)),
			Confidence: c.OpenConfidence,
		}, true
	}
	return action.Event{}, false
}

func (d *Interaction) lastClosing(t *trajectory.Trajectory, from, to int, interval float64) (action.Event, bool) {
	c := d.config
	for i := to; i > from+c.EdgeMargin; i-- {
		s := t.At(i)
		if s.Velocity.Z <= c.CloseDepthSpeed || s.Speed <= c.CloseMinSpeed {
			continue
		}

		j := i
		for j >= from && t.At(j).Velocity.Z > c.CloseSustain {
			j--
		}
		if float64(i-j)*interval <= c.CloseMinDuration {
			continue
		}

		return action.Event{
			Kind:       action.ContainerClose,
			Start:      t.Timestamp(max(j, from)),
			End:        t.Timestamp(i),
			Confidence: c.CloseConfidence,
		}, true
	}
	return action.Event{}, false
}
