package hand

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

// flatHand returns a palm pointing into the scene (-Z) with the palm facing up (-Y).
func flatHand() Landmarks {
	var l Landmarks
	l.Set(Wrist, r3.Vector{X: 0, Y: 0, Z: 0})
	l.Set(MiddleMCP, r3.Vector{X: 0, Y: 0, Z: -1})
	l.Set(IndexMCP, r3.Vector{X: -0.3, Y: 0, Z: -0.9})
	l.Set(PinkyMCP, r3.Vector{X: 0.3, Y: 0, Z: -0.9})
	return l
}

func TestComputeOrientation(t *testing.T) {
	t.Run("flat hand has zero angles", func(t *testing.T) {
		o, err := ComputeOrientation(flatHand())
		require.NoError(t, err)

		assert.InDelta(t, 0, o.Roll, epsilon)
		assert.InDelta(t, 0, o.Pitch, epsilon)
		assert.InDelta(t, 0, o.Yaw, epsilon)
		assert.InDelta(t, -1, o.PalmNormal.Y, epsilon)
		assert.InDelta(t, 1, o.PalmNormal.Norm(), epsilon)
	})

	t.Run("tilting fingers down gives negative pitch", func(t *testing.T) {
		theta := 40 * math.Pi / 180
		l := flatHand()
		l.Set(MiddleMCP, r3.Vector{X: 0, Y: math.Sin(theta), Z: -math.Cos(theta)})

		o, err := ComputeOrientation(l)
		require.NoError(t, err)

		assert.InDelta(t, -theta, o.Pitch, 1e-6)
	})

	t.Run("axes are orthonormal", func(t *testing.T) {
		l := flatHand()
		l.Set(MiddleMCP, r3.Vector{X: 0.2, Y: 0.1, Z: -0.9})

		o, err := ComputeOrientation(l)
		require.NoError(t, err)

		assert.InDelta(t, 0, o.Forward.Dot(o.Across), 1e-9)
		assert.InDelta(t, 0, o.Forward.Dot(o.PalmNormal), 1e-9)
		assert.InDelta(t, 0, o.Across.Dot(o.PalmNormal), 1e-9)
	})
}

func TestComputeOrientation_Errors(t *testing.T) {
	tests := []struct {
		name     string
		hand     func() Landmarks
		want     error
		landmark int
	}{
		{
			name: "missing pinky",
			hand: func() Landmarks {
				raw := make([][]float64, NumLandmarks)
				for i := range raw {
					raw[i] = []float64{float64(i), 0, -float64(i)}
				}
				raw[PinkyMCP] = nil
				return FromSlice(raw)
			},
			want:     ErrMissingLandmark,
			landmark: PinkyMCP,
		},
		{
			name: "non-finite wrist",
			hand: func() Landmarks {
				raw := make([][]float64, NumLandmarks)
				for i := range raw {
					raw[i] = []float64{0.1 * float64(i), 0, 0}
				}
				raw[Wrist] = []float64{math.NaN(), 0, 0}
				return FromSlice(raw)
			},
			want:     ErrMissingLandmark,
			landmark: Wrist,
		},
		{
			name: "wrist on middle MCP",
			hand: func() Landmarks {
				l := flatHand()
				l.Set(MiddleMCP, l.Points[Wrist])
				return l
			},
			want:     ErrDegenerateVector,
			landmark: -1,
		},
		{
			name: "palm collapsed to a line",
			hand: func() Landmarks {
				l := flatHand()
				l.Set(IndexMCP, r3.Vector{X: 0, Y: 0, Z: -0.5})
				l.Set(PinkyMCP, r3.Vector{X: 0, Y: 0, Z: -0.9})
				return l
			},
			want:     ErrDegenerateVector,
			landmark: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeOrientation(tt.hand())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var oerr *OrientationError
			require.True(t, errors.As(err, &oerr))
			assert.Equal(t, tt.landmark, oerr.Landmark)
		})
	}
}

func TestFromSlice_ShortInput(t *testing.T) {
	l := FromSlice([][]float64{{1, 2, 3}})

	assert.True(t, l.Has(Wrist))
	assert.False(t, l.Has(IndexMCP))
	assert.False(t, l.Has(-1))
	assert.False(t, l.Has(NumLandmarks))
}
