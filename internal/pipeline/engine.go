// Package pipeline runs the physics detectors, merges and resolves their
// events, and reconciles the result with the vision stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/boundary"
	"github.com/ayusman/kinelabel/internal/config"
	"github.com/ayusman/kinelabel/internal/container"
	"github.com/ayusman/kinelabel/internal/detect"
	"github.com/ayusman/kinelabel/internal/merge"
	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/reconcile"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// Output is everything one run produces.
type Output struct {
	// Containers are the accepted containers, sorted by first sighting.
	Containers []container.Container

	// Events are the merged and resolved physics events, sorted by start.
	Events []action.Event

	// Result is the reconciled action. It is nil when the status is Unclear
	// and no vision verdict was available.
	Result *reconcile.Result

	Status reconcile.Status
	Reason string
}

// Engine labels trajectories. It holds no per-run state and is safe for
// concurrent use as long as the classifier is.
type Engine struct {
	containers  *container.Detector
	linear      *detect.Linear
	rotation    *detect.Rotation
	interaction *detect.Interaction
	approach    *detect.Approach
	merger      *merge.Merger
	resolver    *boundary.Resolver
	junction    *reconcile.Junction
}

// New creates an Engine from tuning. classifier may be nil.
func New(tuning config.Tuning, classifier reconcile.Classifier) *Engine {
	linear := detect.NewLinear(tuning.Linear)
	return &Engine{
		containers:  container.NewDetector(tuning.Container),
		linear:      linear,
		rotation:    detect.NewRotation(tuning.Rotation),
		interaction: detect.NewInteraction(tuning.Interaction, linear),
		approach:    detect.NewApproach(tuning.Approach),
		merger:      merge.New(tuning.Merge),
		resolver:    boundary.New(tuning.Boundary),
		junction:    reconcile.NewJunction(tuning.Reconcile, classifier),
	}
}

// Detect runs every physics detector and returns the merged, resolved
// events together with the accepted containers.
func (e *Engine) Detect(t *trajectory.Trajectory) ([]action.Event, []container.Container) {
	containers := e.containers.Detect(t)
	contained := e.interaction.Detect(t, containers)

	var events []action.Event
	events = append(events, supersede(e.linear.Detect(t), contained)...)

	rot, err := e.rotation.Detect(t)
	if err != nil {
		// Rotation is optional; the other detectors still apply.
		monitoring.Logf("[pipeline] skipping rotation detection: %v", err)
	}
	events = append(events, rot...)

	events = append(events, contained...)
	events = append(events, e.approach.Detect(t)...)

	merged := e.merger.Merge(events)
	resolved := e.resolver.Resolve(t, merged)
	monitoring.Logf("[pipeline] %d raw, %d merged, %d resolved events", len(events), len(merged), len(resolved))

	return resolved, containers
}

// supersede drops the full-pass linear events that the container detector
// already accounts for: pushes and pulls overlapping an open or close, and
// any event overlapping an interior event of the same kind.
func supersede(linear, contained []action.Event) []action.Event {
	if len(contained) == 0 {
		return linear
	}

	covered := func(e action.Event) bool {
		for _, c := range contained {
			if !overlaps(e, c) {
				continue
			}
			switch c.Kind {
			case action.ContainerOpen, action.ContainerClose:
				if e.Kind == action.Push || e.Kind == action.Pull {
					return true
				}
			default:
				if e.Kind == c.Kind {
					return true
				}
			}
		}
		return false
	}

	kept := make([]action.Event, 0, len(linear))
	for _, e := range linear {
		if covered(e) {
			monitoring.Logf("[pipeline] dropping %s %.2f-%.2f inside the container window", e.Kind, e.Start, e.End)
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func overlaps(a, b action.Event) bool {
	return a.Start < b.End && b.Start < a.End
}

// Run labels t. When the physics stream found nothing and no vision verdict
// can be had, Run returns the partial output together with an error wrapping
// reconcile.ErrVisionRequired.
func (e *Engine) Run(ctx context.Context, t *trajectory.Trajectory) (*Output, error) {
	if t == nil || t.Len() == 0 {
		return nil, trajectory.ErrEmptyTrajectory
	}

	events, containers := e.Detect(t)
	out := &Output{Containers: containers, Events: events}

	res, err := e.junction.Reconcile(ctx, t, events)
	out.Status, out.Reason = res.Status, res.Reason
	if err != nil {
		if errors.Is(err, reconcile.ErrVisionRequired) {
			return out, err
		}
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	out.Result = &res
	return out, nil
}
