// Package boundary tightens action boundaries after merging: it cuts linear
// actions at the first real motion reversal and reduces twists to one primary
// open and one primary close.
package boundary

import (
	"github.com/golang/geo/r3"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/merge"
	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// Config holds the resolver thresholds.
type Config struct {
	// ReversalFraction is the share of the peak displacement the hand must
	// travel back before the action is cut at the peak.
	ReversalFraction float64 `json:"reversal_fraction" toml:"reversal_fraction"`

	// ReversalFloor is the absolute distance the hand must travel back.
	ReversalFloor float64 `json:"reversal_floor" toml:"reversal_floor"`

	// PrimaryTwistDegrees is the rotation above which the first open (or last
	// close) wins over the largest one.
	PrimaryTwistDegrees float64 `json:"primary_twist_degrees" toml:"primary_twist_degrees"`
}

// DefaultConfig returns the standard resolver thresholds.
func DefaultConfig() Config {
	return Config{
		ReversalFraction:    0.2,
		ReversalFloor:       0.2,
		PrimaryTwistDegrees: 30,
	}
}

// Resolver trims and filters merged events.
type Resolver struct {
	config Config
}

// New creates a Resolver.
func New(config Config) *Resolver {
	return &Resolver{config: config}
}

// Resolve trims every event and filters twists. The result is sorted.
func (r *Resolver) Resolve(t *trajectory.Trajectory, events []action.Event) []action.Event {
	out := make([]action.Event, len(events))
	for i, e := range events {
		out[i] = r.Trim(t, e)
	}
	out = r.FilterTwists(out)
	merge.Sort(out)
	return out
}

func trimmable(k action.Kind) bool {
	switch k {
	case action.Push, action.Pull, action.Slide, action.Lift:
		return true
	}
	return false
}

// Trim cuts e at its displacement peak when the hand comes back afterwards.
// Push and Pull are relabelled from the depth displacement of the trimmed
// window. Other kinds are returned unchanged.
func (r *Resolver) Trim(t *trajectory.Trajectory, e action.Event) action.Event {
	if !trimmable(e.Kind) {
		return e
	}

	from, to := t.IndexNearest(e.Start), t.IndexNearest(e.End)
	if to-from < 2 {
		return e
	}

	axis := dominantAxis(t, from, to)
	peak, peakVal := from, 0.0
	for k := from; k <= to; k++ {
		v := component(t.Displacement(from, k), axis)
		if abs(v) > abs(peakVal) {
			peak, peakVal = k, v
		}
	}
	if peak == from || peak == to {
		return e
	}

	// How far the hand travelled back toward the start after the peak.
	back := 0.0
	for k := peak + 1; k <= to; k++ {
		v := component(t.Displacement(from, k), axis)
		if peakVal > 0 {
			back = max(back, peakVal-v)
		} else {
			back = max(back, v-peakVal)
		}
	}

	if back <= r.config.ReversalFraction*abs(peakVal) || back <= r.config.ReversalFloor {
		return e
	}

	trimmed := e
	trimmed.End = t.Timestamp(peak)

	if e.Kind == action.Push || e.Kind == action.Pull {
		dz := t.Displacement(from, peak).Z
		trimmed.Kind = action.Pull
		if dz < 0 {
			trimmed.Kind = action.Push
		}
		trimmed.Extra = action.Displacement{Net: dz}
	}

	monitoring.Logf("[boundary] trimmed %s at %.2fs (was %.2fs), reversal %.2f", trimmed.Kind, trimmed.End, e.End, back)
	return trimmed
}

// FilterTwists keeps one TwistOpen and one TwistClose. The first open is kept
// when it rotated more than PrimaryTwistDegrees, otherwise the largest open.
// Symmetrically for the last close. Other events pass through in order.
func (r *Resolver) FilterTwists(events []action.Event) []action.Event {
	var opens, closes, out []action.Event
	for _, e := range events {
		switch e.Kind {
		case action.TwistOpen:
			opens = append(opens, e)
		case action.TwistClose:
			closes = append(closes, e)
		default:
			out = append(out, e)
		}
	}

	if len(opens) > 0 {
		merge.Sort(opens)
		pick := largest(opens)
		if opens[0].Rotation() > r.config.PrimaryTwistDegrees {
			pick = opens[0]
		}
		out = append(out, pick)
	}
	if len(closes) > 0 {
		merge.Sort(closes)
		pick := largest(closes)
		if last := closes[len(closes)-1]; last.Rotation() > r.config.PrimaryTwistDegrees {
			pick = last
		}
		out = append(out, pick)
	}

	return out
}

// largest returns the first event with the greatest rotation.
func largest(events []action.Event) action.Event {
	best := events[0]
	for _, e := range events[1:] {
		if e.Rotation() > best.Rotation() {
			best = e
		}
	}
	return best
}

const (
	axisX = iota
	axisY
	axisZ
)

// dominantAxis returns the axis along which the hand strayed furthest from
// its position at from.
func dominantAxis(t *trajectory.Trajectory, from, to int) int {
	var reach [3]float64
	for k := from; k <= to; k++ {
		d := t.Displacement(from, k)
		reach[axisX] = max(reach[axisX], abs(d.X))
		reach[axisY] = max(reach[axisY], abs(d.Y))
		reach[axisZ] = max(reach[axisZ], abs(d.Z))
	}

	best := axisZ
	for _, a := range []int{axisX, axisY} {
		if reach[a] > reach[best] {
			best = a
		}
	}
	return best
}

func component(v r3.Vector, axis int) float64 {
	switch axis {
	case axisX:
		return v.X
	case axisY:
		return v.Y
	default:
		return v.Z
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
