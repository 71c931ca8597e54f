// Package hand converts 21-point hand landmarks into a hand orientation.
package hand

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Hand landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

var (
	// ErrMissingLandmark is returned when a landmark needed for orientation is absent or not finite.
	ErrMissingLandmark = errors.New("missing landmark")
	// ErrDegenerateVector is returned when the palm axes collapse to zero length.
	ErrDegenerateVector = errors.New("degenerate palm vector")
)

// degenerateEps is the shortest axis length treated as a real direction.
const degenerateEps = 1e-8

// OrientationError reports why orientation could not be computed for a frame.
type OrientationError struct {
	Landmark int // offending landmark index, or -1 when not landmark specific
	Err      error
}

func (e *OrientationError) Error() string {
	if e.Landmark >= 0 {
		return fmt.Sprintf("hand orientation: landmark %d: %v", e.Landmark, e.Err)
	}
	return fmt.Sprintf("hand orientation: %v", e.Err)
}

func (e *OrientationError) Unwrap() error {
	return e.Err
}

// Landmarks holds the 21 hand landmarks of one detected hand.
type Landmarks struct {
	Points  [NumLandmarks]r3.Vector
	present [NumLandmarks]bool
}

// FromSlice builds Landmarks from raw [x, y, z] triples. Entries that are short,
// nil or non-finite are recorded as missing rather than rejected, so that
// ComputeOrientation can name the landmark it needed.
func FromSlice(raw [][]float64) Landmarks {
	var l Landmarks
	for i := 0; i < NumLandmarks && i < len(raw); i++ {
		p := raw[i]
		if len(p) < 3 || !finite(p[0]) || !finite(p[1]) || !finite(p[2]) {
			continue
		}
		l.Points[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
		l.present[i] = true
	}
	return l
}

// Set stores a landmark and marks it present.
func (l *Landmarks) Set(idx int, p r3.Vector) {
	l.Points[idx] = p
	l.present[idx] = true
}

// Has reports whether landmark idx is present.
func (l *Landmarks) Has(idx int) bool {
	return idx >= 0 && idx < NumLandmarks && l.present[idx]
}

// Orientation is the hand frame derived from the palm landmarks. Angles are radians.
type Orientation struct {
	Roll       float64
	Pitch      float64
	Yaw        float64
	PalmNormal r3.Vector
	Forward    r3.Vector // wrist to middle finger base
	Across     r3.Vector // across the palm, re-orthogonalised
}

// ComputeOrientation derives roll, pitch, yaw and the palm normal.
//
// Axes:
//   - forward: wrist -> middle MCP
//   - normal:  forward x (index MCP -> pinky MCP)
//   - across:  normal x forward
//
// Pitch is measured against image Y pointing down, so a hand tilted down has
// negative pitch.
func ComputeOrientation(l Landmarks) (Orientation, error) {
	for _, idx := range []int{Wrist, IndexMCP, MiddleMCP, PinkyMCP} {
		if !l.Has(idx) {
			return Orientation{}, &OrientationError{Landmark: idx, Err: ErrMissingLandmark}
		}
	}

	forward := l.Points[MiddleMCP].Sub(l.Points[Wrist])
	if forward.Norm() < degenerateEps {
		return Orientation{}, &OrientationError{Landmark: -1, Err: ErrDegenerateVector}
	}
	forward = forward.Normalize()

	across := l.Points[PinkyMCP].Sub(l.Points[IndexMCP])
	normal := forward.Cross(across)
	if normal.Norm() < degenerateEps {
		return Orientation{}, &OrientationError{Landmark: -1, Err: ErrDegenerateVector}
	}
	normal = normal.Normalize()
	across = normal.Cross(forward).Normalize()

	return Orientation{
		Roll:       math.Atan2(across.Y, across.Z),
		Pitch:      math.Asin(clampUnit(-forward.Y)),
		Yaw:        math.Atan2(forward.X, -forward.Z),
		PalmNormal: normal,
		Forward:    forward,
		Across:     across,
	}, nil
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
