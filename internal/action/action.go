// Package action defines the labeled manipulation events produced by the
// detectors and their flat output record.
package action

import (
	"fmt"
)

// Kind identifies a manipulation action.
type Kind string

const (
	Reach          Kind = "reach"
	Grasp          Kind = "grasp"
	Lift           Kind = "lift"
	Place          Kind = "place"
	Push           Kind = "push"
	Pull           Kind = "pull"
	Slide          Kind = "slide"
	TwistOpen      Kind = "twist_open"
	TwistClose     Kind = "twist_close"
	Pour           Kind = "pour"
	ContainerOpen  Kind = "container_open"
	ContainerClose Kind = "container_close"
)

// Kinds lists every action kind in a stable order.
var Kinds = []Kind{
	Reach, Grasp, Lift, Place, Push, Pull, Slide,
	TwistOpen, TwistClose, Pour, ContainerOpen, ContainerClose,
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action kind %q", s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

func (k Kind) String() string {
	return string(k)
}

// Rotation directions as seen by the camera.
const (
	Clockwise        = "clockwise"
	CounterClockwise = "counter-clockwise"
)

// Extra carries the fields that only some kinds have. It is nil for kinds
// without extra fields.
type Extra interface {
	isExtra()
}

// Twist is the extra data of TwistOpen and TwistClose.
type Twist struct {
	RotationDegrees float64
	Direction       string
}

// Tilt is the extra data of a Pour event.
type Tilt struct {
	TiltDegrees float64
}

// Displacement is the net depth displacement of a Push or Pull.
type Displacement struct {
	Net float64
}

func (Twist) isExtra()        {}
func (Tilt) isExtra()         {}
func (Displacement) isExtra() {}

// Event is one detected action. Duration is always derived from Start and End.
type Event struct {
	Kind       Kind
	Object     *string
	Start      float64
	End        float64
	Confidence float64
	Extra      Extra
}

// Duration returns End - Start.
func (e Event) Duration() float64 {
	return e.End - e.Start
}

// ObjectName returns the attributed object or "" when there is none.
func (e Event) ObjectName() string {
	if e.Object == nil {
		return ""
	}
	return *e.Object
}

// Rotation returns the twist rotation in degrees, or 0 for non-twist events.
func (e Event) Rotation() float64 {
	if t, ok := e.Extra.(Twist); ok {
		return t.RotationDegrees
	}
	return 0
}

// Object returns a pointer to name, or nil when name is empty.
func Object(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
