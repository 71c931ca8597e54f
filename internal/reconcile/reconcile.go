// Package reconcile arbitrates between the physics detections and an optional
// vision classifier.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// ErrVisionRequired is returned when the physics stream found nothing and no
// vision verdict could be obtained.
var ErrVisionRequired = errors.New("vision classifier required but unavailable")

// Status is how well the physics stream explains the trajectory.
type Status string

const (
	Confident Status = "confident"
	Ambiguous Status = "ambiguous"
	Unclear   Status = "unclear"
)

// Method records how the final action was chosen.
type Method string

const (
	Physics         Method = "physics"
	PhysicsFallback Method = "physics_fallback"
	VisionOverride  Method = "vision_override"
	VisionOnly      Method = "vision_only"
)

// Verdict is a vision classifier's answer.
type Verdict struct {
	Action     action.Kind
	Confidence float64
	Reasoning  string
}

// Classifier is the vision stream. It is only consulted when the physics
// stream is not confident.
type Classifier interface {
	Classify(ctx context.Context, window *trajectory.Trajectory, suggestions []action.Event) (Verdict, error)
}

// Result is the reconciled outcome for one trajectory.
type Result struct {
	Action action.Event
	Method Method
	Status Status
	Reason string
}

// Config holds the arbitration thresholds.
type Config struct {
	// MinConfidence is the top confidence below which physics is ambiguous.
	MinConfidence float64 `json:"min_confidence" toml:"min_confidence"`

	// MinMargin is the lead the top action needs over the runner-up.
	MinMargin float64 `json:"min_margin" toml:"min_margin"`
}

// DefaultConfig returns the standard arbitration thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.7,
		MinMargin:     0.15,
	}
}

// Junction decides the final action. A nil classifier means the vision
// stream is unavailable.
type Junction struct {
	config     Config
	classifier Classifier
}

// NewJunction creates a Junction.
func NewJunction(config Config, classifier Classifier) *Junction {
	return &Junction{config: config, classifier: classifier}
}

// Rank returns a copy of events ordered by confidence, highest first. Equal
// confidences keep the earlier action first.
func Rank(events []action.Event) []action.Event {
	ranked := make([]action.Event, len(events))
	copy(ranked, events)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Start < ranked[j].Start
	})
	return ranked
}

// Assess classifies the physics events and explains why.
func (j *Junction) Assess(events []action.Event) (Status, string) {
	if len(events) == 0 {
		return Unclear, "no physics actions detected"
	}

	var push, pull bool
	for _, e := range events {
		switch e.Kind {
		case action.Push:
			push = true
		case action.Pull:
			pull = true
		}
	}
	if push && pull {
		return Ambiguous, "both push and pull detected"
	}

	ranked := Rank(events)
	top := ranked[0]
	if top.Confidence < j.config.MinConfidence {
		return Ambiguous, fmt.Sprintf("top confidence %.2f below %.2f", top.Confidence, j.config.MinConfidence)
	}
	if len(ranked) > 1 {
		if margin := top.Confidence - ranked[1].Confidence; margin < j.config.MinMargin {
			return Ambiguous, fmt.Sprintf("top two actions within %.2f (%s %.2f, %s %.2f)",
				j.config.MinMargin, top.Kind, top.Confidence, ranked[1].Kind, ranked[1].Confidence)
		}
	}

	return Confident, fmt.Sprintf("%s at %.2f", top.Kind, top.Confidence)
}

// Reconcile produces the final result for t given its resolved physics
// events. It returns ErrVisionRequired when status is Unclear and no vision
// verdict is available.
func (j *Junction) Reconcile(ctx context.Context, t *trajectory.Trajectory, events []action.Event) (Result, error) {
	status, reason := j.Assess(events)

	switch status {
	case Confident:
		return Result{Action: Rank(events)[0], Method: Physics, Status: status, Reason: reason}, nil

	case Ambiguous:
		start, end := span(events)
		verdict, err := j.classify(ctx, t.Window(start, end), events)
		if err != nil {
			monitoring.Logf("[reconcile] falling back to physics: %v", err)
			return Result{Action: Rank(events)[0], Method: PhysicsFallback, Status: status, Reason: reason}, nil
		}
		return Result{
			Action: fromVerdict(verdict, events, start, end),
			Method: VisionOverride,
			Status: status,
			Reason: reason + joinReason(verdict.Reasoning),
		}, nil

	default:
		verdict, err := j.classify(ctx, t, nil)
		if err != nil {
			return Result{Status: status, Reason: reason}, fmt.Errorf("%w: %v", ErrVisionRequired, err)
		}
		return Result{
			Action: fromVerdict(verdict, nil, t.Start(), t.End()),
			Method: VisionOnly,
			Status: status,
			Reason: reason + joinReason(verdict.Reasoning),
		}, nil
	}
}

var errNoClassifier = errors.New("no classifier configured")

func (j *Junction) classify(ctx context.Context, window *trajectory.Trajectory, suggestions []action.Event) (Verdict, error) {
	if j.classifier == nil {
		return Verdict{}, errNoClassifier
	}

	v, err := j.classifier.Classify(ctx, window, Rank(suggestions))
	if err != nil {
		return Verdict{}, fmt.Errorf("classify: %w", err)
	}
	if !v.Action.Valid() {
		return Verdict{}, fmt.Errorf("classifier returned unknown action %q", v.Action)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return Verdict{}, fmt.Errorf("classifier confidence %v out of range", v.Confidence)
	}
	return v, nil
}

// fromVerdict builds the event reported for a vision verdict. When physics saw
// the same kind, its object and extra fields are kept.
func fromVerdict(v Verdict, events []action.Event, start, end float64) action.Event {
	e := action.Event{Kind: v.Action, Start: start, End: end, Confidence: v.Confidence}
	for _, p := range Rank(events) {
		if p.Kind == v.Action {
			e.Object = p.Object
			e.Extra = p.Extra
			break
		}
	}
	return e
}

// span returns the first start and last end of events.
func span(events []action.Event) (float64, float64) {
	start, end := events[0].Start, events[0].End
	for _, e := range events[1:] {
		start = min(start, e.Start)
		end = max(end, e.End)
	}
	return start, end
}

func joinReason(s string) string {
	if s == "" {
		return ""
	}
	return "; vision: " + s
}
