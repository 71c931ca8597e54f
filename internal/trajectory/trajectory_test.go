package trajectory

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(n int, dt float64) []Sample {
	s := make([]Sample, n)
	for i := range s {
		s[i] = Sample{Timestamp: float64(i) * dt, Position: r3.Vector{X: float64(i)}}
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("empty is rejected", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.True(t, errors.Is(err, ErrEmptyTrajectory))
	})

	t.Run("non monotonic is rejected", func(t *testing.T) {
		s := uniform(3, 0.1)
		s[2].Timestamp = s[1].Timestamp
		_, err := New(s, nil)
		assert.True(t, errors.Is(err, ErrNonMonotonic))
	})

	t.Run("too many object lists", func(t *testing.T) {
		_, err := New(uniform(1, 0.1), make([][]DetectedObject, 2))
		assert.True(t, errors.Is(err, ErrObjectsLength))
	})

	t.Run("short object lists are padded", func(t *testing.T) {
		tr, err := New(uniform(4, 0.1), [][]DetectedObject{{{Class: "cup"}}})
		require.NoError(t, err)
		assert.Len(t, tr.Objects(0), 1)
		assert.Empty(t, tr.Objects(3))
	})

	t.Run("input slice is copied", func(t *testing.T) {
		s := uniform(2, 0.1)
		tr, err := New(s, nil)
		require.NoError(t, err)
		s[0].GripOpenness = 0.9
		assert.Equal(t, 0.0, tr.At(0).GripOpenness)
	})
}

func TestTrajectory_Accessors(t *testing.T) {
	tr, err := New(uniform(11, 0.1), nil)
	require.NoError(t, err)

	assert.Equal(t, 11, tr.Len())
	assert.InDelta(t, 0, tr.Start(), 1e-12)
	assert.InDelta(t, 1.0, tr.End(), 1e-12)
	assert.InDelta(t, 0.1, tr.MeanInterval(), 1e-12)
	assert.Equal(t, 0, tr.Clamp(-3))
	assert.Equal(t, 10, tr.Clamp(40))
	assert.InDelta(t, 1.0, tr.Timestamp(99), 1e-12)
	assert.InDelta(t, 3.0, tr.Displacement(2, 5).X, 1e-12)
}

func TestTrajectory_IndexNearest(t *testing.T) {
	tr, err := New(uniform(11, 0.1), nil)
	require.NoError(t, err)

	tests := []struct {
		ts   float64
		want int
	}{
		{-5, 0},
		{0.0, 0},
		{0.14, 1},
		{0.16, 2},
		{0.15, 1}, // tie goes to the earlier sample
		{0.99, 10},
		{42, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.IndexNearest(tt.ts), "ts=%v", tt.ts)
	}
}

func TestTrajectory_Window(t *testing.T) {
	tr, err := New(uniform(11, 0.1), nil)
	require.NoError(t, err)

	w := tr.Window(0.25, 0.55)
	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, 0.3, w.Start(), 1e-12)
	assert.InDelta(t, 0.5, w.End(), 1e-12)

	whole := tr.Window(-1, 5)
	assert.Equal(t, tr.Len(), whole.Len())
}

func TestGradient(t *testing.T) {
	ts := []float64{0, 0.1, 0.2, 0.35, 0.5}
	values := make([]float64, len(ts))
	for i, x := range ts {
		values[i] = 3*x + 1
	}

	for i, g := range Gradient(values, ts) {
		assert.InDelta(t, 3.0, g, 1e-9, "index %d", i)
	}

	assert.Equal(t, []float64{0}, Gradient([]float64{5}, []float64{0}))
}

func TestUnwrap(t *testing.T) {
	in := []float64{3.0, -3.0, -2.9, 3.1, 2.9}
	out := Unwrap(in)

	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, math.Abs(out[i]-out[i-1]), math.Pi, "step %d", i)
	}
	assert.InDelta(t, -3.0+2*math.Pi, out[1], 1e-12)
	assert.InDelta(t, 2.9, out[4], 1e-12)
}

func TestDecode(t *testing.T) {
	t.Run("derives velocity and speed", func(t *testing.T) {
		in := `{"frames":[
			{"timestamp":0.0,"position":[0,0,0],"gripper_openness":0.2},
			{"timestamp":0.5,"position":[1,0,0],"gripper_openness":0.2},
			{"timestamp":1.0,"position":[2,0,0],"gripper_openness":0.2,
			 "objects":[{"class":"cup","bbox":[0,0,1,1]}]}
		]}`

		tr, err := Decode(strings.NewReader(in))
		require.NoError(t, err)
		require.Equal(t, 3, tr.Len())

		for i := 0; i < tr.Len(); i++ {
			assert.InDelta(t, 2.0, tr.At(i).Velocity.X, 1e-9)
			assert.InDelta(t, 2.0, tr.At(i).Speed, 1e-9)
		}
		require.Len(t, tr.Objects(2), 1)
		assert.Equal(t, 1.0, tr.Objects(2)[0].Confidence)
	})

	t.Run("computes orientation from landmarks", func(t *testing.T) {
		landmarks := make([][]float64, 21)
		for i := range landmarks {
			landmarks[i] = []float64{0, 0, 0}
		}
		landmarks[9] = []float64{0, 0, -1}
		landmarks[5] = []float64{-0.3, 0, -0.9}
		landmarks[17] = []float64{0.3, 0, -0.9}

		rec := Record{Frames: []FrameRecord{
			{Timestamp: 0, Landmarks: landmarks},
			{Timestamp: 0.1, Landmarks: [][]float64{{0, 0, 0}}},
		}}

		tr, err := FromRecord(rec)
		require.NoError(t, err)
		require.NotNil(t, tr.At(0).Orientation)
		assert.InDelta(t, 0, tr.At(0).Orientation.Pitch, 1e-9)
		assert.Nil(t, tr.At(1).Orientation)
		assert.True(t, tr.HasOrientation())
	})

	t.Run("empty frames", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"frames":[]}`))
		assert.True(t, errors.Is(err, ErrEmptyTrajectory))
		assert.True(t, errors.Is(err, ErrInvalidRecord))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"frames":`))
		assert.True(t, errors.Is(err, ErrInvalidRecord))
	})
}

func TestDecode_NonMonotonic(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"frames":[{"timestamp":1},{"timestamp":0.5}]}`))
	assert.True(t, errors.Is(err, ErrNonMonotonic))
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestToRecord_RoundTrip(t *testing.T) {
	s := uniform(3, 0.2)
	s[1].Orientation = &Orientation{Roll: 0.5, PalmNormal: r3.Vector{Y: -1}}
	tr, err := New(s, [][]DetectedObject{nil, {{Class: "door", Confidence: 0.8}}})
	require.NoError(t, err)

	back, err := FromRecord(ToRecord(tr))
	require.NoError(t, err)

	assert.Equal(t, tr.Len(), back.Len())
	require.NotNil(t, back.At(1).Orientation)
	assert.InDelta(t, 0.5, back.At(1).Orientation.Roll, 1e-12)
	assert.Equal(t, "door", back.Objects(1)[0].Class)
}
