package detect

import (
	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// PushConfig controls push/pull detection along the depth axis. A net depth
// displacement away from the camera (negative) is a push, toward it a pull.
type PushConfig struct {
	MinDepthSpeed   float64 `json:"min_depth_speed" toml:"min_depth_speed"`
	MaxVertical     float64 `json:"max_vertical" toml:"max_vertical"`
	MinSpeed        float64 `json:"min_speed" toml:"min_speed"`
	MaxSamples      int     `json:"max_samples" toml:"max_samples"`
	StopDepthSpeed  float64 `json:"stop_depth_speed" toml:"stop_depth_speed"`
	StopSpeed       float64 `json:"stop_speed" toml:"stop_speed"`
	StopWindow      int     `json:"stop_window" toml:"stop_window"`
	StopCount       int     `json:"stop_count" toml:"stop_count"`
	MinDuration     float64 `json:"min_duration" toml:"min_duration"`
	MinDisplacement float64 `json:"min_displacement" toml:"min_displacement"`
	Confidence      float64 `json:"confidence" toml:"confidence"`
}

// SlideConfig controls lateral slide detection.
type SlideConfig struct {
	MinLateral     float64 `json:"min_lateral" toml:"min_lateral"`
	MaxVertical    float64 `json:"max_vertical" toml:"max_vertical"`
	MaxDepth       float64 `json:"max_depth" toml:"max_depth"`
	SustainLateral float64 `json:"sustain_lateral" toml:"sustain_lateral"`
	MinDuration    float64 `json:"min_duration" toml:"min_duration"`
	MinSamples     int     `json:"min_samples" toml:"min_samples"`
	Confidence     float64 `json:"confidence" toml:"confidence"`
}

// LiftConfig controls lift detection. Image Y points down, so rising is a
// negative vertical velocity.
type LiftConfig struct {
	MinRise     float64 `json:"min_rise" toml:"min_rise"`
	MaxOpenness float64 `json:"max_openness" toml:"max_openness"`
	MinSpeed    float64 `json:"min_speed" toml:"min_speed"`
	SustainRise float64 `json:"sustain_rise" toml:"sustain_rise"`
	MinSamples  int     `json:"min_samples" toml:"min_samples"`
	Confidence  float64 `json:"confidence" toml:"confidence"`
}

// PlaceConfig controls place detection: a descent followed by the grip opening.
type PlaceConfig struct {
	MinDescent     float64 `json:"min_descent" toml:"min_descent"`
	MaxOpenness    float64 `json:"max_openness" toml:"max_openness"`
	MaxDepth       float64 `json:"max_depth" toml:"max_depth"`
	SustainDescent float64 `json:"sustain_descent" toml:"sustain_descent"`
	Lookahead      int     `json:"lookahead" toml:"lookahead"`
	MinOpening     float64 `json:"min_opening" toml:"min_opening"`
	Confidence     float64 `json:"confidence" toml:"confidence"`
}

// LinearConfig holds the thresholds of the linear manipulation detector.
type LinearConfig struct {
	Push  PushConfig  `json:"push" toml:"push"`
	Slide SlideConfig `json:"slide" toml:"slide"`
	Lift  LiftConfig  `json:"lift" toml:"lift"`
	Place PlaceConfig `json:"place" toml:"place"`

	// EdgeMargin is the number of trailing samples never used as a trigger.
	EdgeMargin int `json:"edge_margin" toml:"edge_margin"`
}

// DefaultLinearConfig returns the standard linear thresholds.
func DefaultLinearConfig() LinearConfig {
	return LinearConfig{
		Push: PushConfig{
			MinDepthSpeed:   0.5,
			MaxVertical:     0.5,
			MinSpeed:        0.5,
			MaxSamples:      90,
			StopDepthSpeed:  0.2,
			StopSpeed:       0.3,
			StopWindow:      30,
			StopCount:       20,
			MinDuration:     0.5,
			MinDisplacement: 0.1,
			Confidence:      0.75,
		},
		Slide: SlideConfig{
			MinLateral:     0.4,
			MaxVertical:    0.3,
			MaxDepth:       0.4,
			SustainLateral: 0.2,
			MinDuration:    0.3,
			MinSamples:     5,
			Confidence:     0.70,
		},
		Lift: LiftConfig{
			MinRise:     0.5,
			MaxOpenness: 0.3,
			MinSpeed:    0.5,
			SustainRise: 0.3,
			MinSamples:  5,
			Confidence:  0.75,
		},
		Place: PlaceConfig{
			MinDescent:     0.3,
			MaxOpenness:    0.5,
			MaxDepth:       0.4,
			SustainDescent: 0.15,
			Lookahead:      10,
			MinOpening:     0.05,
			Confidence:     0.70,
		},
		EdgeMargin: 10,
	}
}

// Scope restricts a linear scan to the samples From..To (inclusive) and to a
// subset of kinds. A nil Kinds scans for everything. A zero Margin uses the
// configured EdgeMargin.
type Scope struct {
	From   int
	To     int
	Kinds  []action.Kind
	Margin int
}

// Linear finds push, pull, slide, lift and place with a single forward cursor.
type Linear struct {
	config LinearConfig
}

// NewLinear creates a linear manipulation detector.
func NewLinear(config LinearConfig) *Linear {
	return &Linear{config: config}
}

// matcher tries to match one pattern starting at sample i, never reading
// past sample to. On success it returns the event and the next cursor position.
type matcher func(t *trajectory.Trajectory, i, to int) (action.Event, int, bool)

// Detect scans the whole trajectory.
func (d *Linear) Detect(t *trajectory.Trajectory) []action.Event {
	return d.Scan(t, Scope{From: 0, To: t.Len() - 1})
}

// Scan scans the samples selected by s.
func (d *Linear) Scan(t *trajectory.Trajectory, s Scope) []action.Event {
	from, to := t.Clamp(s.From), t.Clamp(s.To)
	margin := s.Margin
	if margin <= 0 {
		margin = d.config.EdgeMargin
	}
	matchers := d.matchers(s.Kinds)

	var events []action.Event
	i := from
	for i <= to-margin {
		matched := false
		for _, m := range matchers {
			e, next, ok := m(t, i, to)
			if !ok {
				continue
			}
			events = append(events, e)
			if next <= i {
				next = i + 1
			}
			i = next
			matched = true
			break
		}
		if !matched {
			i++
		}
	}

	return events
}

// matchers returns the enabled matchers in priority order.
func (d *Linear) matchers(kinds []action.Kind) []matcher {
	want := func(ks ...action.Kind) bool {
		if kinds == nil {
			return true
		}
		for _, k := range ks {
			for _, have := range kinds {
				if k == have {
					return true
				}
			}
		}
		return false
	}

	var ms []matcher
	if want(action.Push, action.Pull) {
		ms = append(ms, d.matchPushPull)
	}
	if want(action.Slide) {
		ms = append(ms, d.matchSlide)
	}
	if want(action.Lift) {
		ms = append(ms, d.matchLift)
	}
	if want(action.Place) {
		ms = append(ms, d.matchPlace)
	}
	return ms
}

func (d *Linear) matchPushPull(t *trajectory.Trajectory, i, to int) (action.Event, int, bool) {
	c := d.config.Push
	s := t.At(i)
	v := s.Velocity

	if abs(v.Z) <= c.MinDepthSpeed || abs(v.Y) >= c.MaxVertical || abs(v.Z) < abs(v.X) || s.Speed <= c.MinSpeed {
		return action.Event{}, 0, false
	}

	stopped := func(k int) bool {
		sk := t.At(k)
		return abs(sk.Velocity.Z) < c.StopDepthSpeed && sk.Speed < c.StopSpeed
	}

	j := i
	for j < to && j < i+c.MaxSamples {
		if stopped(j) {
			count := 0
			for k := j; k < j+c.StopWindow && k <= to; k++ {
				if stopped(k) {
					count++
				}
			}
			if count > c.StopCount {
				break
			}
		}
		j++
	}

	end := min(j, to)
	duration := t.Timestamp(end) - t.Timestamp(i)
	dz := t.Displacement(i, end).Z
	if duration <= c.MinDuration || abs(dz) <= c.MinDisplacement {
		return action.Event{}, 0, false
	}

	kind := action.Pull
	if dz < 0 {
		kind = action.Push
	}

	return action.Event{
		Kind:       kind,
		Start:      t.Timestamp(i),
		End:        t.Timestamp(end),
		Confidence: c.Confidence,
		Extra:      action.Displacement{Net: dz},
	}, j, true
}

func (d *Linear) matchSlide(t *trajectory.Trajectory, i, to int) (action.Event, int, bool) {
	c := d.config.Slide
	v := t.At(i).Velocity

	if abs(v.X) <= c.MinLateral || abs(v.Y) >= c.MaxVertical || abs(v.Z) >= c.MaxDepth {
		return action.Event{}, 0, false
	}

	j := i
	for j <= to && abs(t.At(j).Velocity.X) > c.SustainLateral {
		j++
	}

	end := min(j, to)
	if t.Timestamp(end)-t.Timestamp(i) <= c.MinDuration || end-i <= c.MinSamples {
		return action.Event{}, 0, false
	}

	return action.Event{
		Kind:       action.Slide,
		Start:      t.Timestamp(i),
		End:        t.Timestamp(end),
		Confidence: c.Confidence,
	}, j, true
}

func (d *Linear) matchLift(t *trajectory.Trajectory, i, to int) (action.Event, int, bool) {
	c := d.config.Lift
	s := t.At(i)

	if s.Velocity.Y >= -c.MinRise || s.GripOpenness >= c.MaxOpenness || s.Speed <= c.MinSpeed {
		return action.Event{}, 0, false
	}

	j := i
	for j <= to && t.At(j).Velocity.Y < -c.SustainRise {
		j++
	}

	end := min(j, to)
	if end-i <= c.MinSamples {
		return action.Event{}, 0, false
	}

	return action.Event{
		Kind:       action.Lift,
		Start:      t.Timestamp(i),
		End:        t.Timestamp(end),
		Confidence: c.Confidence,
	}, j, true
}

func (d *Linear) matchPlace(t *trajectory.Trajectory, i, to int) (action.Event, int, bool) {
	c := d.config.Place
	s := t.At(i)

	if s.Velocity.Y <= c.MinDescent || s.GripOpenness >= c.MaxOpenness || abs(s.Velocity.Z) >= c.MaxDepth {
		return action.Event{}, 0, false
	}

	j := i
	for j <= to && t.At(j).Velocity.Y > c.SustainDescent {
		j++
	}

	// The grip has to open within the lookahead that follows the descent.
	if j > to-c.Lookahead {
		return action.Event{}, 0, false
	}
	base := t.At(j).GripOpenness
	opened := base
	for k := j; k < j+c.Lookahead; k++ {
		opened = max(opened, t.At(k).GripOpenness)
	}
	if opened-base <= c.MinOpening {
		return action.Event{}, 0, false
	}

	end := min(j+c.Lookahead, to)
	return action.Event{
		Kind:       action.Place,
		Start:      t.Timestamp(i),
		End:        t.Timestamp(end),
		Confidence: c.Confidence,
	}, j + c.Lookahead, true
}
