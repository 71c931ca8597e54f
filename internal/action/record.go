package action

import (
	"fmt"
)

// Record is the flat serialized form of an Event.
type Record struct {
	Action          string   `json:"action"`
	Object          *string  `json:"object"`
	StartTime       float64  `json:"start_time"`
	EndTime         float64  `json:"end_time"`
	Duration        float64  `json:"duration"`
	Confidence      float64  `json:"confidence"`
	RotationDegrees *float64 `json:"rotation_degrees,omitempty"`
	Direction       string   `json:"direction,omitempty"`
	TiltDegrees     *float64 `json:"tilt_degrees,omitempty"`
	NetDisplacement *float64 `json:"net_displacement,omitempty"`
}

// ToRecord flattens e.
func (e Event) ToRecord() Record {
	r := Record{
		Action:     string(e.Kind),
		Object:     e.Object,
		StartTime:  e.Start,
		EndTime:    e.End,
		Duration:   e.Duration(),
		Confidence: e.Confidence,
	}

	switch x := e.Extra.(type) {
	case Twist:
		deg := x.RotationDegrees
		r.RotationDegrees = &deg
		r.Direction = x.Direction
	case Tilt:
		tilt := x.TiltDegrees
		r.TiltDegrees = &tilt
	case Displacement:
		net := x.Net
		r.NetDisplacement = &net
	}

	return r
}

// Records flattens a list of events.
func Records(events []Event) []Record {
	out := make([]Record, len(events))
	for i, e := range events {
		out[i] = e.ToRecord()
	}
	return out
}

// Event rebuilds the Event described by r. The stored duration is ignored.
func (r Record) Event() (Event, error) {
	kind, err := ParseKind(r.Action)
	if err != nil {
		return Event{}, err
	}
	if r.EndTime < r.StartTime {
		return Event{}, fmt.Errorf("action %s ends before it starts", r.Action)
	}

	e := Event{
		Kind:       kind,
		Object:     r.Object,
		Start:      r.StartTime,
		End:        r.EndTime,
		Confidence: r.Confidence,
	}

	switch kind {
	case TwistOpen, TwistClose:
		t := Twist{Direction: r.Direction}
		if r.RotationDegrees != nil {
			t.RotationDegrees = *r.RotationDegrees
		}
		e.Extra = t
	case Pour:
		p := Tilt{}
		if r.TiltDegrees != nil {
			p.TiltDegrees = *r.TiltDegrees
		}
		e.Extra = p
	case Push, Pull:
		d := Displacement{}
		if r.NetDisplacement != nil {
			d.Net = *r.NetDisplacement
		}
		e.Extra = d
	}

	return e, nil
}
