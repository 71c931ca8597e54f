// Package merge coalesces fragmented detections of the same action.
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/ayusman/kinelabel/internal/action"
)

// Config holds the merge window of each action family. A gap between two
// same-kind events shorter than the window joins them.
type Config struct {
	Twist     Duration `json:"twist" toml:"twist"`
	Pour      Duration `json:"pour" toml:"pour"`
	Lift      Duration `json:"lift" toml:"lift"`
	Place     Duration `json:"place" toml:"place"`
	Container Duration `json:"container" toml:"container"`
	Default   Duration `json:"default" toml:"default"`
}

// DefaultConfig returns the standard merge windows.
func DefaultConfig() Config {
	return Config{
		Twist:     Duration(3 * time.Second),
		Pour:      Duration(2 * time.Second),
		Lift:      Duration(5 * time.Second),
		Place:     Duration(2 * time.Second),
		Container: Duration(5 * time.Second),
		Default:   Duration(3 * time.Second),
	}
}

// Window returns the merge window for kind.
func (c Config) Window(kind action.Kind) time.Duration {
	switch kind {
	case action.TwistOpen, action.TwistClose:
		return time.Duration(c.Twist)
	case action.Pour:
		return time.Duration(c.Pour)
	case action.Lift:
		return time.Duration(c.Lift)
	case action.Place:
		return time.Duration(c.Place)
	case action.ContainerOpen, action.ContainerClose:
		return time.Duration(c.Container)
	case action.Reach, action.Grasp, action.Push, action.Pull, action.Slide:
		return time.Duration(c.Default)
	default:
		panic(fmt.Sprintf("merge: no window for action kind %q", kind))
	}
}

// Merger joins near-duplicate events.
type Merger struct {
	config Config
}

// New creates a Merger.
func New(config Config) *Merger {
	return &Merger{config: config}
}

// Sort orders events by start, then kind, then end. The sort is stable.
func Sort(events []action.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.End < b.End
	})
}

// Merge returns a new, sorted list in which runs of same-kind events closer
// than their merge window are joined. The input is not modified.
//
// A merged event keeps the first event's start, object and confidence. Its end
// is the latest end of the run, and twist rotations are summed.
func (m *Merger) Merge(events []action.Event) []action.Event {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]action.Event, len(events))
	copy(sorted, events)
	Sort(sorted)

	out := make([]action.Event, 0, len(sorted))
	acc := sorted[0]

	for _, next := range sorted[1:] {
		window := m.config.Window(acc.Kind).Seconds()
		if next.Kind == acc.Kind && next.Start-acc.End < window {
			acc = join(acc, next)
			continue
		}
		out = append(out, acc)
		acc = next
	}

	return append(out, acc)
}

func join(acc, next action.Event) action.Event {
	acc.End = max(acc.End, next.End)

	if a, ok := acc.Extra.(action.Twist); ok {
		if b, ok := next.Extra.(action.Twist); ok {
			a.RotationDegrees += b.RotationDegrees
			acc.Extra = a
		}
	}

	return acc
}
