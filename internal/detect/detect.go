// Package detect holds the primitive detectors. Each one is a pure scanner
// over a trajectory that finds one family of action patterns.
package detect

import (
	"errors"

	"github.com/ayusman/kinelabel/internal/trajectory"
)

// ErrMissingOrientation is returned by the rotation detector when no sample
// carries orientation. Callers treat it as "no rotation events".
var ErrMissingOrientation = errors.New("trajectory has no orientation data")

// preferredObjects are attributed first for twists and pours.
var preferredObjects = []string{"bottle", "cup", "wine glass"}

// attribute names the object the hand is most likely handling in frame i.
func attribute(t *trajectory.Trajectory, i int) *string {
	objs := t.Objects(i)
	if len(objs) == 0 {
		return nil
	}

	for _, obj := range objs {
		for _, p := range preferredObjects {
			if obj.Class == p {
				name := obj.Class
				return &name
			}
		}
	}

	name := objs[0].Class
	return &name
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
