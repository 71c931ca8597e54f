// Package synth builds synthetic trajectories for tests.
//
// A Builder appends segments of constant behaviour (holding still, moving at a
// fixed velocity, rolling the wrist) and integrates position and orientation
// as it goes, so the resulting samples are physically consistent.
package synth

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/ayusman/kinelabel/internal/trajectory"
)

// DefaultRate is the sample rate used by New, in samples per second.
const DefaultRate = 30.0

// Builder accumulates samples. Methods return the builder for chaining.
type Builder struct {
	dt       float64
	pos      r3.Vector
	open     float64
	roll     float64
	pitch    float64
	oriented bool

	samples []trajectory.Sample
	objects [][]trajectory.DetectedObject
}

// New returns a builder sampling at DefaultRate with a closed grip.
func New() *Builder {
	return NewRate(DefaultRate)
}

// NewRate returns a builder sampling at rate samples per second.
func NewRate(rate float64) *Builder {
	return &Builder{dt: 1 / rate}
}

// Interval returns the time between samples.
func (b *Builder) Interval() float64 {
	return b.dt
}

// Len returns the number of samples so far.
func (b *Builder) Len() int {
	return len(b.samples)
}

// Grip sets the grip openness used by following samples.
func (b *Builder) Grip(open float64) *Builder {
	b.open = open
	return b
}

// Oriented makes following samples carry orientation.
func (b *Builder) Oriented() *Builder {
	b.oriented = true
	return b
}

// Unoriented makes following samples carry no orientation.
func (b *Builder) Unoriented() *Builder {
	b.oriented = false
	return b
}

// Tilt sets the pitch, in degrees, used by following samples.
func (b *Builder) Tilt(degrees float64) *Builder {
	b.pitch = radians(degrees)
	return b
}

// Hold appends n stationary samples.
func (b *Builder) Hold(n int) *Builder {
	return b.Move(n, r3.Vector{})
}

// Move appends n samples travelling at velocity v.
func (b *Builder) Move(n int, v r3.Vector) *Builder {
	for i := 0; i < n; i++ {
		b.emit(v)
		b.pos = b.pos.Add(v.Mul(b.dt))
	}
	return b
}

// Ramp appends n stationary samples with openness moving linearly to open.
func (b *Builder) Ramp(n int, open float64) *Builder {
	from := b.open
	for i := 1; i <= n; i++ {
		b.open = from + (open-from)*float64(i)/float64(n)
		b.emit(r3.Vector{})
	}
	return b
}

// Roll appends n stationary, oriented samples whose roll changes at rate
// degrees per second.
func (b *Builder) Roll(n int, rate float64) *Builder {
	return b.Spin(n, rate, r3.Vector{})
}

// Spin is Roll while travelling at velocity v.
func (b *Builder) Spin(n int, rate float64, v r3.Vector) *Builder {
	b.oriented = true
	step := radians(rate) * b.dt
	for i := 0; i < n; i++ {
		b.emit(v)
		b.roll += step
		b.pos = b.pos.Add(v.Mul(b.dt))
	}
	return b
}

// See attaches an object detection to every frame in [from, to) that is a
// multiple of step past from. A step below one is treated as one.
func (b *Builder) See(class string, confidence float64, from, to, step int) *Builder {
	if step < 1 {
		step = 1
	}
	for i := from; i < to && i < len(b.objects); i += step {
		b.objects[i] = append(b.objects[i], trajectory.DetectedObject{
			Class:      class,
			BBox:       trajectory.BoundingBox{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6},
			Confidence: confidence,
		})
	}
	return b
}

// Build returns the trajectory. It panics when the builder holds no samples,
// which is a bug in the calling test.
func (b *Builder) Build() *trajectory.Trajectory {
	t, err := trajectory.New(b.samples, b.objects)
	if err != nil {
		panic(fmt.Sprintf("synth: %v", err))
	}
	return t
}

func (b *Builder) emit(v r3.Vector) {
	s := trajectory.Sample{
		Timestamp:    float64(len(b.samples)) * b.dt,
		Position:     b.pos,
		Velocity:     v,
		Speed:        v.Norm(),
		GripOpenness: b.open,
	}
	if b.oriented {
		s.Orientation = &trajectory.Orientation{
			Roll:       b.roll,
			Pitch:      b.pitch,
			PalmNormal: r3.Vector{Y: -1},
		}
	}
	b.samples = append(b.samples, s)
	b.objects = append(b.objects, nil)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
