package trajectory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"

	"github.com/ayusman/kinelabel/internal/hand"
	"github.com/ayusman/kinelabel/internal/monitoring"
)

// Record is the on-disk form of a trajectory as produced by the extraction
// pipeline.
type Record struct {
	Frames []FrameRecord `json:"frames"`
}

// FrameRecord is one frame of a Record. Velocity and speed are optional and are
// derived from positions when absent. Orientation may be given directly or as
// raw hand landmarks.
type FrameRecord struct {
	Timestamp       float64            `json:"timestamp"`
	Position        [3]float64         `json:"position"`
	Velocity        *[3]float64        `json:"velocity,omitempty"`
	Speed           *float64           `json:"speed,omitempty"`
	GripperOpenness float64            `json:"gripper_openness"`
	Orientation     *OrientationRecord `json:"orientation,omitempty"`
	Landmarks       [][]float64        `json:"landmarks,omitempty"`
	Objects         []ObjectRecord     `json:"objects,omitempty"`
}

// OrientationRecord carries angles in radians.
type OrientationRecord struct {
	Roll       float64    `json:"roll"`
	Pitch      float64    `json:"pitch"`
	Yaw        float64    `json:"yaw"`
	PalmNormal [3]float64 `json:"palm_normal"`
}

// ObjectRecord is one detected object. A missing confidence counts as 1.0.
type ObjectRecord struct {
	Class      string     `json:"class"`
	BBox       [4]float64 `json:"bbox"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// maxRecordSize bounds trajectory files read from disk.
const maxRecordSize = 256 * 1024 * 1024

// ReadFile loads a trajectory record from a JSON file.
func ReadFile(path string) (*Trajectory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat trajectory file: %w", err)
	}
	if info.Size() > maxRecordSize {
		return nil, fmt.Errorf("trajectory file too large: %d bytes (max %d)", info.Size(), maxRecordSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// ErrInvalidRecord marks every Decode failure caused by the input itself,
// as opposed to I/O errors of the reader.
var ErrInvalidRecord = errors.New("invalid trajectory record")

// Decode reads a JSON Record from r and builds a Trajectory.
func Decode(r io.Reader) (*Trajectory, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typ) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return nil, fmt.Errorf("failed to decode trajectory: %w", err)
	}

	t, err := FromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return t, nil
}

// FromRecord converts a Record into a validated Trajectory.
func FromRecord(rec Record) (*Trajectory, error) {
	if len(rec.Frames) == 0 {
		return nil, ErrEmptyTrajectory
	}

	samples := make([]Sample, len(rec.Frames))
	objects := make([][]DetectedObject, len(rec.Frames))
	needVelocity := false
	orientationFailures := 0

	for i, f := range rec.Frames {
		s := Sample{
			Timestamp:    f.Timestamp,
			Position:     vec(f.Position),
			GripOpenness: f.GripperOpenness,
		}

		if f.Velocity != nil {
			s.Velocity = vec(*f.Velocity)
		} else {
			needVelocity = true
		}

		switch {
		case f.Orientation != nil:
			s.Orientation = &Orientation{
				Roll:       f.Orientation.Roll,
				Pitch:      f.Orientation.Pitch,
				Yaw:        f.Orientation.Yaw,
				PalmNormal: vec(f.Orientation.PalmNormal),
			}
		case len(f.Landmarks) > 0:
			o, err := hand.ComputeOrientation(hand.FromSlice(f.Landmarks))
			if err != nil {
				var oerr *hand.OrientationError
				if !errors.As(err, &oerr) {
					return nil, fmt.Errorf("frame %d: %w", i, err)
				}
				orientationFailures++
				break
			}
			s.Orientation = &Orientation{
				Roll:       o.Roll,
				Pitch:      o.Pitch,
				Yaw:        o.Yaw,
				PalmNormal: o.PalmNormal,
			}
		}

		for _, o := range f.Objects {
			conf := 1.0
			if o.Confidence != nil {
				conf = *o.Confidence
			}
			objects[i] = append(objects[i], DetectedObject{
				Class:      o.Class,
				BBox:       BoundingBox{X1: o.BBox[0], Y1: o.BBox[1], X2: o.BBox[2], Y2: o.BBox[3]},
				Confidence: conf,
			})
		}

		samples[i] = s
	}

	if orientationFailures > 0 {
		monitoring.Logf("[trajectory] %d of %d frames have unusable hand landmarks", orientationFailures, len(samples))
	}

	if needVelocity {
		deriveVelocity(samples, rec.Frames)
	}
	for i, f := range rec.Frames {
		if f.Speed != nil {
			samples[i].Speed = *f.Speed
		} else {
			samples[i].Speed = samples[i].Velocity.Norm()
		}
	}

	return New(samples, objects)
}

// deriveVelocity fills in velocity for frames that did not carry one.
func deriveVelocity(samples []Sample, frames []FrameRecord) {
	n := len(samples)
	ts := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	for i, s := range samples {
		ts[i] = s.Timestamp
		xs[i] = s.Position.X
		ys[i] = s.Position.Y
		zs[i] = s.Position.Z
	}

	// Gradient divides by timestamp deltas; leave velocity at zero rather than
	// produce NaN when timestamps are not increasing. New rejects those anyway.
	for i := 1; i < n; i++ {
		if ts[i] <= ts[i-1] {
			return
		}
	}

	vx, vy, vz := Gradient(xs, ts), Gradient(ys, ts), Gradient(zs, ts)
	for i := range samples {
		if frames[i].Velocity == nil {
			samples[i].Velocity = r3.Vector{X: vx[i], Y: vy[i], Z: vz[i]}
		}
	}
}

// ToRecord converts a trajectory back into its on-disk form.
func ToRecord(t *Trajectory) Record {
	rec := Record{Frames: make([]FrameRecord, t.Len())}
	for i := 0; i < t.Len(); i++ {
		s := t.At(i)
		v := arr(s.Velocity)
		speed := s.Speed
		f := FrameRecord{
			Timestamp:       s.Timestamp,
			Position:        arr(s.Position),
			Velocity:        &v,
			Speed:           &speed,
			GripperOpenness: s.GripOpenness,
		}
		if s.Orientation != nil {
			f.Orientation = &OrientationRecord{
				Roll:       s.Orientation.Roll,
				Pitch:      s.Orientation.Pitch,
				Yaw:        s.Orientation.Yaw,
				PalmNormal: arr(s.Orientation.PalmNormal),
			}
		}
		for _, o := range t.Objects(i) {
			conf := o.Confidence
			f.Objects = append(f.Objects, ObjectRecord{
				Class:      o.Class,
				BBox:       [4]float64{o.BBox.X1, o.BBox.Y1, o.BBox.X2, o.BBox.Y2},
				Confidence: &conf,
			})
		}
		rec.Frames[i] = f
	}
	return rec
}

func vec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

func arr(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
