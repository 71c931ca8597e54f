// Package trajectory holds the immutable per-frame motion trace consumed by the
// action detectors.
package trajectory

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

var (
	// ErrEmptyTrajectory is returned when a trajectory has no samples.
	ErrEmptyTrajectory = errors.New("trajectory has no samples")
	// ErrNonMonotonic is returned when timestamps are not strictly increasing.
	ErrNonMonotonic = errors.New("trajectory timestamps are not strictly increasing")
	// ErrObjectsLength is returned when the per-frame object lists outnumber the samples.
	ErrObjectsLength = errors.New("more object lists than samples")
)

// Orientation is the hand's rotation for one frame. Angles are in radians.
type Orientation struct {
	Roll       float64
	Pitch      float64
	Yaw        float64
	PalmNormal r3.Vector
}

// Sample is one frame of smoothed, gap-filled hand kinematics in camera
// coordinates: X grows to the right, Y grows downward and Z (depth) shrinks as
// the hand moves away from the camera. Orientation is nil when the frame had
// no usable hand pose.
type Sample struct {
	Timestamp    float64
	Position     r3.Vector
	Velocity     r3.Vector
	Speed        float64
	GripOpenness float64
	Orientation  *Orientation
}

// BoundingBox is an object detection box as (X1, Y1) top-left and (X2, Y2) bottom-right.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Center returns the box centre.
func (b BoundingBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// DetectedObject is a single object detection in one frame.
type DetectedObject struct {
	Class      string
	BBox       BoundingBox
	Confidence float64
}

// Trajectory is an ordered, non-empty sequence of samples plus the objects
// detected in each frame. It is never mutated after New returns.
type Trajectory struct {
	samples []Sample
	objects [][]DetectedObject
}

// New validates samples and builds a Trajectory. objects may be shorter than
// samples (including nil); missing frames get an empty object list.
func New(samples []Sample, objects [][]DetectedObject) (*Trajectory, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrajectory
	}
	if len(objects) > len(samples) {
		return nil, fmt.Errorf("%w: %d lists for %d samples", ErrObjectsLength, len(objects), len(samples))
	}

	for i := 1; i < len(samples); i++ {
		if !(samples[i].Timestamp > samples[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: frame %d at %.4fs follows %.4fs",
				ErrNonMonotonic, i, samples[i].Timestamp, samples[i-1].Timestamp)
		}
	}

	s := make([]Sample, len(samples))
	copy(s, samples)

	o := make([][]DetectedObject, len(samples))
	copy(o, objects)

	return &Trajectory{samples: s, objects: o}, nil
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// At returns the sample at index i.
func (t *Trajectory) At(i int) Sample {
	return t.samples[i]
}

// Objects returns the objects detected in frame i.
func (t *Trajectory) Objects(i int) []DetectedObject {
	return t.objects[i]
}

// Start returns the first timestamp.
func (t *Trajectory) Start() float64 {
	return t.samples[0].Timestamp
}

// End returns the last timestamp.
func (t *Trajectory) End() float64 {
	return t.samples[len(t.samples)-1].Timestamp
}

// Duration returns End() - Start().
func (t *Trajectory) Duration() float64 {
	return t.End() - t.Start()
}

// MeanInterval returns the average time between consecutive samples, or 0 for
// a single-sample trajectory.
func (t *Trajectory) MeanInterval() float64 {
	if len(t.samples) < 2 {
		return 0
	}
	return t.Duration() / float64(len(t.samples)-1)
}

// Timestamp returns the timestamp of sample i, clamped to the valid range.
func (t *Trajectory) Timestamp(i int) float64 {
	return t.samples[t.Clamp(i)].Timestamp
}

// Clamp limits i to [0, Len()-1].
func (t *Trajectory) Clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(t.samples) {
		return len(t.samples) - 1
	}
	return i
}

// IndexNearest returns the index of the sample whose timestamp is closest to ts.
// Ties resolve to the earlier sample.
func (t *Trajectory) IndexNearest(ts float64) int {
	lo, hi := 0, len(t.samples)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if t.samples[mid].Timestamp < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo > 0 && math.Abs(t.samples[lo-1].Timestamp-ts) <= math.Abs(t.samples[lo].Timestamp-ts) {
		return lo - 1
	}
	return lo
}

// Window returns a trajectory over the samples whose timestamps fall in
// [start, end]. If no sample falls inside, the single nearest sample is used.
func (t *Trajectory) Window(start, end float64) *Trajectory {
	from := t.IndexNearest(start)
	if t.samples[from].Timestamp < start && from < len(t.samples)-1 {
		from++
	}
	to := from
	for to+1 < len(t.samples) && t.samples[to+1].Timestamp <= end {
		to++
	}
	return &Trajectory{
		samples: t.samples[from : to+1],
		objects: t.objects[from : to+1],
	}
}

// HasOrientation reports whether any sample carries an orientation.
func (t *Trajectory) HasOrientation() bool {
	for i := range t.samples {
		if t.samples[i].Orientation != nil {
			return true
		}
	}
	return false
}

// Displacement returns Position(j) - Position(i).
func (t *Trajectory) Displacement(i, j int) r3.Vector {
	return t.samples[t.Clamp(j)].Position.Sub(t.samples[t.Clamp(i)].Position)
}
