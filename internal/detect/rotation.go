package detect

import (
	"math"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// TwistConfig controls twist detection. Rates are radians per second.
type TwistConfig struct {
	TriggerRate        float64 `json:"trigger_rate" toml:"trigger_rate"`
	SustainRate        float64 `json:"sustain_rate" toml:"sustain_rate"`
	MaxOpenness        float64 `json:"max_openness" toml:"max_openness"`
	MinDuration        float64 `json:"min_duration" toml:"min_duration"`
	MinRotationDegrees float64 `json:"min_rotation_degrees" toml:"min_rotation_degrees"`
	MaxDisplacement    float64 `json:"max_displacement" toml:"max_displacement"`
	EdgeMargin         int     `json:"edge_margin" toml:"edge_margin"`
	Confidence         float64 `json:"confidence" toml:"confidence"`
}

// PourConfig controls pour detection. Tilts are degrees below horizontal.
type PourConfig struct {
	TriggerTiltDegrees float64 `json:"trigger_tilt_degrees" toml:"trigger_tilt_degrees"`
	SustainTiltDegrees float64 `json:"sustain_tilt_degrees" toml:"sustain_tilt_degrees"`
	MinDuration        float64 `json:"min_duration" toml:"min_duration"`
	MaxSpeed           float64 `json:"max_speed" toml:"max_speed"`
	EdgeMargin         int     `json:"edge_margin" toml:"edge_margin"`
	Confidence         float64 `json:"confidence" toml:"confidence"`
}

// RotationConfig holds the thresholds of the rotational detector.
type RotationConfig struct {
	Twist TwistConfig `json:"twist" toml:"twist"`
	Pour  PourConfig  `json:"pour" toml:"pour"`

	// MinSamples is the fewest oriented samples worth scanning.
	MinSamples int `json:"min_samples" toml:"min_samples"`
}

// DefaultRotationConfig returns the standard rotation thresholds.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		Twist: TwistConfig{
			TriggerRate:        2.0,
			SustainRate:        1.0,
			MaxOpenness:        0.3,
			MinDuration:        0.3,
			MinRotationDegrees: 40,
			MaxDisplacement:    0.3,
			EdgeMargin:         10,
			Confidence:         0.85,
		},
		Pour: PourConfig{
			TriggerTiltDegrees: 30,
			SustainTiltDegrees: 21,
			MinDuration:        0.5,
			MaxSpeed:           0.5,
			EdgeMargin:         15,
			Confidence:         0.80,
		},
		MinSamples: 10,
	}
}

// Rotation finds twists and pours from wrist roll and pitch.
type Rotation struct {
	config RotationConfig
}

// NewRotation creates a rotational manipulation detector.
func NewRotation(config RotationConfig) *Rotation {
	return &Rotation{config: config}
}

// oriented is the subsequence of samples that carry orientation.
type oriented struct {
	index []int // position in the full trajectory
	ts    []float64
	roll  []float64
	pitch []float64
}

func (o *oriented) len() int { return len(o.index) }

// Detect returns twist and pour events. It returns ErrMissingOrientation when
// no sample carries orientation.
func (d *Rotation) Detect(t *trajectory.Trajectory) ([]action.Event, error) {
	var o oriented
	for i := 0; i < t.Len(); i++ {
		s := t.At(i)
		if s.Orientation == nil {
			continue
		}
		o.index = append(o.index, i)
		o.ts = append(o.ts, s.Timestamp)
		o.roll = append(o.roll, s.Orientation.Roll)
		o.pitch = append(o.pitch, s.Orientation.Pitch)
	}

	if o.len() == 0 {
		return nil, ErrMissingOrientation
	}
	if o.len() < d.config.MinSamples {
		return nil, nil
	}

	o.roll = trajectory.Unwrap(o.roll)
	o.pitch = trajectory.Unwrap(o.pitch)

	events := d.twists(t, &o)
	events = append(events, d.pours(t, &o)...)
	return events, nil
}

func (d *Rotation) twists(t *trajectory.Trajectory, o *oriented) []action.Event {
	c := d.config.Twist
	rate := trajectory.Gradient(o.roll, o.ts)
	minRotation := c.MinRotationDegrees * math.Pi / 180
	m := o.len()

	var events []action.Event
	i := 0
	for i < m-c.EdgeMargin {
		start := o.index[i]
		if abs(rate[i]) < c.TriggerRate || t.At(start).GripOpenness >= c.MaxOpenness {
			i++
			continue
		}

		j := i
		for j < m && abs(rate[j]) > c.SustainRate {
			j++
		}
		last := min(j, m-1)
		end := o.index[last]

		duration := o.ts[last] - o.ts[i]
		rotation := abs(o.roll[last] - o.roll[i])
		moved := t.Displacement(start, end).Norm()

		if duration <= c.MinDuration || rotation <= minRotation || moved >= c.MaxDisplacement {
			i++
			continue
		}

		// Camera-view convention: counter-clockwise unscrews.
		kind, direction := action.TwistClose, action.Clockwise
		if rate[i] < 0 {
			kind, direction = action.TwistOpen, action.CounterClockwise
		}

		events = append(events, action.Event{
			Kind:       kind,
			Object:     attribute(t, start),
			Start:      o.ts[i],
			End:        o.ts[last],
			Confidence: c.Confidence,
			Extra: action.Twist{
				RotationDegrees: rotation * 180 / math.Pi,
				Direction:       direction,
			},
		})
		i = max(j, i+1)
	}

	return events
}

func (d *Rotation) pours(t *trajectory.Trajectory, o *oriented) []action.Event {
	c := d.config.Pour
	trigger := -c.TriggerTiltDegrees * math.Pi / 180
	sustain := -c.SustainTiltDegrees * math.Pi / 180
	m := o.len()

	var events []action.Event
	i := 0
	for i < m-c.EdgeMargin {
		if o.pitch[i] >= trigger {
			i++
			continue
		}

		j := i
		for j < m && o.pitch[j] < sustain {
			j++
		}
		last := min(j, m-1)
		if last <= i+1 {
			i++
			continue
		}

		start, end := o.index[i], o.index[last]
		duration := o.ts[last] - o.ts[i]
		speed := t.Displacement(start, end).Norm() / duration

		if duration <= c.MinDuration || speed >= c.MaxSpeed {
			i++
			continue
		}

		events = append(events, action.Event{
			Kind:       action.Pour,
			Object:     attribute(t, start),
			Start:      o.ts[i],
			End:        o.ts[last],
			Confidence: c.Confidence,
			Extra:      action.Tilt{TiltDegrees: abs(o.pitch[i]) * 180 / math.Pi},
		})
		i = max(j, i+1)
	}

	return events
}
