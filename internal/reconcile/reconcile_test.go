package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/synth"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

type stubClassifier struct {
	verdict Verdict
	err     error

	calls       int
	window      *trajectory.Trajectory
	suggestions []action.Event
}

func (s *stubClassifier) Classify(_ context.Context, window *trajectory.Trajectory, suggestions []action.Event) (Verdict, error) {
	s.calls++
	s.window = window
	s.suggestions = suggestions
	return s.verdict, s.err
}

func ev(kind action.Kind, start, end, conf float64) action.Event {
	return action.Event{Kind: kind, Start: start, End: end, Confidence: conf}
}

func TestJunction_Assess(t *testing.T) {
	j := NewJunction(DefaultConfig(), nil)

	tests := []struct {
		name   string
		events []action.Event
		want   Status
	}{
		{"empty", nil, Unclear},
		{"single strong lift", []action.Event{ev(action.Lift, 0, 1, 0.85)}, Confident},
		{"push and pull conflict", []action.Event{ev(action.Push, 0, 1, 0.75), ev(action.Pull, 2, 3, 0.75)}, Ambiguous},
		{"push and pull conflict despite strong lead", []action.Event{ev(action.ContainerOpen, 0, 1, 0.9), ev(action.Push, 2, 3, 0.75), ev(action.Pull, 4, 5, 0.70)}, Ambiguous},
		{"weak top", []action.Event{ev(action.Slide, 0, 1, 0.65)}, Ambiguous},
		{"exactly at minimum confidence", []action.Event{ev(action.Slide, 0, 1, 0.70)}, Confident},
		{"close runner-up", []action.Event{ev(action.Lift, 0, 1, 0.85), ev(action.TwistOpen, 2, 3, 0.80)}, Ambiguous},
		{"clear lead", []action.Event{ev(action.ContainerOpen, 0, 1, 0.90), ev(action.Lift, 2, 3, 0.70)}, Confident},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := j.Assess(tt.events)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestRank(t *testing.T) {
	in := []action.Event{
		ev(action.Lift, 5, 6, 0.75),
		ev(action.Pour, 1, 2, 0.80),
		ev(action.Push, 2, 3, 0.75),
	}

	got := Rank(in)
	assert.Equal(t, []action.Kind{action.Pour, action.Push, action.Lift},
		[]action.Kind{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.Equal(t, action.Lift, in[0].Kind, "input must not be reordered")
}

func TestJunction_Reconcile(t *testing.T) {
	traj := synth.New().Hold(300).Build() // 0s .. 9.97s
	ctx := context.Background()

	t.Run("confident physics ignores vision", func(t *testing.T) {
		vision := &stubClassifier{verdict: Verdict{Action: action.Pour, Confidence: 0.9}}
		j := NewJunction(DefaultConfig(), vision)

		res, err := j.Reconcile(ctx, traj, []action.Event{ev(action.Lift, 1, 2, 0.85)})
		require.NoError(t, err)
		assert.Equal(t, Confident, res.Status)
		assert.Equal(t, Physics, res.Method)
		assert.Equal(t, action.Lift, res.Action.Kind)
		assert.Equal(t, 0, vision.calls)
	})

	t.Run("ambiguous uses the vision verdict over the physics span", func(t *testing.T) {
		obj := "drawer"
		physics := []action.Event{
			{Kind: action.Push, Object: &obj, Start: 2, End: 3, Confidence: 0.75, Extra: action.Displacement{Net: -0.3}},
			ev(action.Pull, 4, 6, 0.75),
		}
		vision := &stubClassifier{verdict: Verdict{Action: action.Push, Confidence: 0.66, Reasoning: "hand moves away"}}
		j := NewJunction(DefaultConfig(), vision)

		res, err := j.Reconcile(ctx, traj, physics)
		require.NoError(t, err)
		assert.Equal(t, Ambiguous, res.Status)
		assert.Equal(t, VisionOverride, res.Method)
		assert.Equal(t, action.Push, res.Action.Kind)
		assert.Equal(t, 2.0, res.Action.Start)
		assert.Equal(t, 6.0, res.Action.End)
		assert.Equal(t, 0.66, res.Action.Confidence)
		assert.Equal(t, "drawer", res.Action.ObjectName())
		assert.Contains(t, res.Reason, "hand moves away")

		require.Equal(t, 1, vision.calls)
		assert.Len(t, vision.suggestions, 2)
		assert.GreaterOrEqual(t, vision.window.Start(), 2.0)
		assert.LessOrEqual(t, vision.window.End(), 6.0)
	})

	t.Run("ambiguous without vision falls back to physics", func(t *testing.T) {
		j := NewJunction(DefaultConfig(), nil)

		res, err := j.Reconcile(ctx, traj, []action.Event{ev(action.Push, 2, 3, 0.75), ev(action.Pull, 4, 5, 0.75)})
		require.NoError(t, err)
		assert.Equal(t, Ambiguous, res.Status)
		assert.Equal(t, PhysicsFallback, res.Method)
		assert.Equal(t, action.Push, res.Action.Kind)
		assert.Equal(t, 0.75, res.Action.Confidence)
	})

	t.Run("ambiguous with failing vision falls back to physics", func(t *testing.T) {
		vision := &stubClassifier{err: errors.New("model offline")}
		j := NewJunction(DefaultConfig(), vision)

		res, err := j.Reconcile(ctx, traj, []action.Event{ev(action.Slide, 1, 2, 0.65)})
		require.NoError(t, err)
		assert.Equal(t, PhysicsFallback, res.Method)
		assert.Equal(t, action.Slide, res.Action.Kind)
	})

	t.Run("ambiguous with nonsense verdict falls back to physics", func(t *testing.T) {
		vision := &stubClassifier{verdict: Verdict{Action: "dance", Confidence: 0.9}}
		j := NewJunction(DefaultConfig(), vision)

		res, err := j.Reconcile(ctx, traj, []action.Event{ev(action.Slide, 1, 2, 0.65)})
		require.NoError(t, err)
		assert.Equal(t, PhysicsFallback, res.Method)
	})

	t.Run("unclear uses vision over the whole trajectory", func(t *testing.T) {
		vision := &stubClassifier{verdict: Verdict{Action: action.Pour, Confidence: 0.55}}
		j := NewJunction(DefaultConfig(), vision)

		res, err := j.Reconcile(ctx, traj, nil)
		require.NoError(t, err)
		assert.Equal(t, Unclear, res.Status)
		assert.Equal(t, VisionOnly, res.Method)
		assert.Equal(t, action.Pour, res.Action.Kind)
		assert.Equal(t, traj.Start(), res.Action.Start)
		assert.Equal(t, traj.End(), res.Action.End)
		assert.Equal(t, traj.Len(), vision.window.Len())
	})

	t.Run("unclear without vision is an error", func(t *testing.T) {
		j := NewJunction(DefaultConfig(), nil)

		res, err := j.Reconcile(ctx, traj, nil)
		assert.True(t, errors.Is(err, ErrVisionRequired))
		assert.Equal(t, Unclear, res.Status)
		assert.Zero(t, res.Action.Confidence)
	})

	t.Run("unclear with failing vision is an error", func(t *testing.T) {
		j := NewJunction(DefaultConfig(), &stubClassifier{err: context.DeadlineExceeded})

		_, err := j.Reconcile(ctx, traj, nil)
		assert.True(t, errors.Is(err, ErrVisionRequired))
	})
}
