package detect

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/synth"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

func kinds(events []action.Event) []action.Kind {
	out := make([]action.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestLinear_Detect(t *testing.T) {
	tests := []struct {
		name  string
		build func() *synth.Builder
		want  []action.Kind
	}{
		{
			name: "push away from the camera",
			build: func() *synth.Builder {
				return synth.New().Hold(20).Move(30, r3.Vector{Z: -1}).Hold(60)
			},
			want: []action.Kind{action.Push},
		},
		{
			name: "pull toward the camera",
			build: func() *synth.Builder {
				return synth.New().Hold(20).Move(30, r3.Vector{Z: 1}).Hold(60)
			},
			want: []action.Kind{action.Pull},
		},
		{
			name: "slide sideways",
			build: func() *synth.Builder {
				return synth.New().Hold(20).Move(20, r3.Vector{X: 0.8}).Hold(30)
			},
			want: []action.Kind{action.Slide},
		},
		{
			name: "lift with a closed grip",
			build: func() *synth.Builder {
				return synth.New().Grip(0.1).Hold(20).Move(15, r3.Vector{Y: -0.8}).Hold(30)
			},
			want: []action.Kind{action.Lift},
		},
		{
			name: "rising with an open hand is not a lift",
			build: func() *synth.Builder {
				return synth.New().Grip(0.7).Hold(20).Move(15, r3.Vector{Y: -0.8}).Hold(30)
			},
			want: []action.Kind{},
		},
		{
			name: "place ends with the grip opening",
			build: func() *synth.Builder {
				return synth.New().Grip(0.2).Hold(20).Move(15, r3.Vector{Y: 0.6}).Ramp(10, 0.8).Hold(30)
			},
			want: []action.Kind{action.Place},
		},
		{
			name: "descent without release is not a place",
			build: func() *synth.Builder {
				return synth.New().Grip(0.2).Hold(20).Move(15, r3.Vector{Y: 0.6}).Hold(30)
			},
			want: []action.Kind{},
		},
		{
			name: "short depth motion is ignored",
			build: func() *synth.Builder {
				return synth.New().Hold(20).Move(10, r3.Vector{Z: -1}).Hold(60)
			},
			want: []action.Kind{},
		},
		{
			name: "lift then place",
			build: func() *synth.Builder {
				return synth.New().Grip(0.1).Hold(20).
					Move(15, r3.Vector{Y: -0.8}).Hold(20).
					Move(15, r3.Vector{Y: 0.6}).Ramp(10, 0.8).Hold(30)
			},
			want: []action.Kind{action.Lift, action.Place},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traj := tt.build().Build()
			got := NewLinear(DefaultLinearConfig()).Detect(traj)
			assert.ElementsMatch(t, tt.want, kinds(got))

			for _, e := range got {
				assert.GreaterOrEqual(t, e.End, e.Start)
				assert.GreaterOrEqual(t, e.Start, traj.Start())
				assert.LessOrEqual(t, e.End, traj.End())
			}
		})
	}
}

func TestLinear_PushBoundaries(t *testing.T) {
	traj := synth.New().Hold(20).Move(30, r3.Vector{Z: -1}).Hold(60).Build()

	got := NewLinear(DefaultLinearConfig()).Detect(traj)
	require.Len(t, got, 1)

	e := got[0]
	assert.InDelta(t, traj.Timestamp(20), e.Start, 1e-9)
	assert.InDelta(t, traj.Timestamp(50), e.End, 1e-9)
	assert.Equal(t, 0.75, e.Confidence)

	d, ok := e.Extra.(action.Displacement)
	require.True(t, ok)
	assert.InDelta(t, -1.0, d.Net, 1e-9)
}

func TestLinear_PushDirectionFollowsNetDisplacement(t *testing.T) {
	// Velocity says "away" at the trigger, but the hand ends up nearer.
	traj := synth.New().Hold(20).
		Move(5, r3.Vector{Z: -0.6}).
		Move(30, r3.Vector{Z: 1}).
		Hold(60).Build()

	got := NewLinear(DefaultLinearConfig()).Detect(traj)
	require.Len(t, got, 1)
	assert.Equal(t, action.Pull, got[0].Kind)
}

func TestLinear_Scan(t *testing.T) {
	traj := synth.New().Grip(0.1).Hold(20).
		Move(30, r3.Vector{Z: -1}).Hold(30).
		Move(15, r3.Vector{Y: -0.8}).Hold(40).Build()
	d := NewLinear(DefaultLinearConfig())

	t.Run("kind filter", func(t *testing.T) {
		got := d.Scan(traj, Scope{From: 0, To: traj.Len() - 1, Kinds: []action.Kind{action.Lift}})
		assert.Equal(t, []action.Kind{action.Lift}, kinds(got))
	})

	t.Run("range filter", func(t *testing.T) {
		got := d.Scan(traj, Scope{From: 0, To: 60})
		assert.Equal(t, []action.Kind{action.Push}, kinds(got))
	})

	t.Run("out of range bounds are clamped", func(t *testing.T) {
		got := d.Scan(traj, Scope{From: -50, To: 10_000})
		assert.Equal(t, []action.Kind{action.Push, action.Lift}, kinds(got))
	})
}

func TestLinear_ShortTrajectory(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10, 11} {
		traj := synth.New().Move(n, r3.Vector{Z: -2}).Build()
		assert.Empty(t, NewLinear(DefaultLinearConfig()).Detect(traj), "n=%d", n)
	}

	single, err := trajectory.New([]trajectory.Sample{{Timestamp: 0}}, nil)
	require.NoError(t, err)
	assert.Empty(t, NewLinear(DefaultLinearConfig()).Detect(single))
}
