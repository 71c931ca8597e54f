package boundary

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/synth"
)

func TestResolver_Trim(t *testing.T) {
	r := New(DefaultConfig())

	t.Run("push that returns to rest is cut at the peak", func(t *testing.T) {
		traj := synth.New().Hold(20).
			Move(30, r3.Vector{Z: -1}).
			Move(30, r3.Vector{Z: 1}).
			Hold(20).Build()
		e := action.Event{Kind: action.Push, Start: traj.Timestamp(20), End: traj.Timestamp(80), Confidence: 0.75}

		got := r.Trim(traj, e)
		assert.Equal(t, action.Push, got.Kind)
		assert.InDelta(t, traj.Timestamp(50), got.End, 1e-9)
		assert.Equal(t, e.Start, got.Start)
		assert.Equal(t, 0.75, got.Confidence)

		d := got.Extra.(action.Displacement)
		assert.InDelta(t, -1.0, d.Net, 1e-9)
	})

	t.Run("overshooting return relabels pull as push", func(t *testing.T) {
		traj := synth.New().Hold(20).
			Move(30, r3.Vector{Z: -1}).
			Move(30, r3.Vector{Z: 1.5}).
			Hold(20).Build()
		e := action.Event{Kind: action.Pull, Start: traj.Timestamp(20), End: traj.Timestamp(80), Extra: action.Displacement{Net: 0.5}}

		got := r.Trim(traj, e)
		assert.Equal(t, action.Push, got.Kind)
		assert.InDelta(t, traj.Timestamp(50), got.End, 1e-9)
	})

	t.Run("small settle back is kept", func(t *testing.T) {
		traj := synth.New().Hold(20).
			Move(30, r3.Vector{Z: -1}).
			Move(3, r3.Vector{Z: 1}).
			Hold(20).Build()
		e := action.Event{Kind: action.Push, Start: traj.Timestamp(20), End: traj.Timestamp(53)}

		assert.Equal(t, e, r.Trim(traj, e))
	})

	t.Run("lift is trimmed on the vertical axis", func(t *testing.T) {
		traj := synth.New().Grip(0.1).Hold(10).
			Move(20, r3.Vector{Y: -1.2}).
			Move(20, r3.Vector{Y: 1.2}).
			Hold(10).Build()
		e := action.Event{Kind: action.Lift, Start: traj.Timestamp(10), End: traj.Timestamp(50)}

		got := r.Trim(traj, e)
		assert.Equal(t, action.Lift, got.Kind)
		assert.InDelta(t, traj.Timestamp(30), got.End, 1e-9)
	})

	t.Run("other kinds are untouched", func(t *testing.T) {
		traj := synth.New().Hold(20).
			Move(30, r3.Vector{Z: -1}).
			Move(30, r3.Vector{Z: 1}).Build()
		e := action.Event{Kind: action.Place, Start: traj.Timestamp(20), End: traj.Timestamp(79)}

		assert.Equal(t, e, r.Trim(traj, e))
	})
}

func twist(kind action.Kind, start, deg float64) action.Event {
	return action.Event{Kind: kind, Start: start, End: start + 0.5, Confidence: 0.85, Extra: action.Twist{RotationDegrees: deg}}
}

func TestResolver_FilterTwists(t *testing.T) {
	r := New(DefaultConfig())

	tests := []struct {
		name      string
		in        []action.Event
		wantOpen  float64
		wantClose float64
	}{
		{
			name: "first significant open and last significant close",
			in: []action.Event{
				twist(action.TwistOpen, 1, 45),
				twist(action.TwistOpen, 5, 120),
				twist(action.TwistClose, 9, 200),
				twist(action.TwistClose, 12, 35),
			},
			wantOpen:  1,
			wantClose: 12,
		},
		{
			name: "largest wins when the edge twist is small",
			in: []action.Event{
				twist(action.TwistOpen, 1, 20),
				twist(action.TwistOpen, 5, 90),
				twist(action.TwistOpen, 7, 60),
				twist(action.TwistClose, 9, 80),
				twist(action.TwistClose, 12, 25),
			},
			wantOpen:  5,
			wantClose: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]action.Event{{Kind: action.Lift, Start: 3, End: 4}}, tt.in...)
			got := r.FilterTwists(in)
			require.Len(t, got, 3)

			for _, e := range got {
				switch e.Kind {
				case action.TwistOpen:
					assert.Equal(t, tt.wantOpen, e.Start)
				case action.TwistClose:
					assert.Equal(t, tt.wantClose, e.Start)
				}
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	traj := synth.New().Hold(20).
		Move(30, r3.Vector{Z: -1}).
		Move(30, r3.Vector{Z: 1}).
		Hold(40).Build()

	in := []action.Event{
		twist(action.TwistOpen, 3.0, 25),
		{Kind: action.Push, Start: traj.Timestamp(20), End: traj.Timestamp(80)},
		twist(action.TwistOpen, 2.5, 60),
	}

	got := New(DefaultConfig()).Resolve(traj, in)
	require.Len(t, got, 2)
	assert.Equal(t, action.Push, got[0].Kind)
	assert.InDelta(t, traj.Timestamp(50), got[0].End, 1e-9)
	assert.Equal(t, action.TwistOpen, got[1].Kind)
	assert.Equal(t, 2.5, got[1].Start)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Start, got[i].Start)
	}
}
