package action

import (
	"fmt"
	"strings"
)

// Narrative renders events as a numbered, human readable account.
func Narrative(events []Event) string {
	if len(events) == 0 {
		return "No actions detected.\n"
	}

	var b strings.Builder
	b.WriteString("Based on the detected actions, here's what happened:\n\n")

	for i, e := range events {
		fmt.Fprintf(&b, "%d. %.1fs-%.1fs: %s\n", i+1, e.Start, e.End, describe(e))
	}

	return b.String()
}

func describe(e Event) string {
	obj := e.ObjectName()
	if obj == "" {
		obj = "object"
	}

	switch e.Kind {
	case TwistOpen, TwistClose:
		verb := "open"
		if e.Kind == TwistClose {
			verb = "close"
		}
		t, _ := e.Extra.(Twist)
		return fmt.Sprintf("Twisted %s to %s it (%.0f° %s)", obj, verb, t.RotationDegrees, t.Direction)
	case Pour:
		p, _ := e.Extra.(Tilt)
		return fmt.Sprintf("Poured from %s (tilted %.0f° for %.1fs)", obj, p.TiltDegrees, e.Duration())
	case ContainerOpen:
		return fmt.Sprintf("Opened the %s", obj)
	case ContainerClose:
		return fmt.Sprintf("Closed the %s", obj)
	case Lift:
		return fmt.Sprintf("Lifted %s", obj)
	case Place:
		return fmt.Sprintf("Placed %s down", obj)
	case Push:
		return fmt.Sprintf("Pushed %s away", obj)
	case Pull:
		return fmt.Sprintf("Pulled %s closer", obj)
	case Slide:
		return fmt.Sprintf("Slid %s sideways", obj)
	case Reach:
		return "Reached toward " + obj
	case Grasp:
		return "Grasped " + obj
	default:
		return string(e.Kind)
	}
}
