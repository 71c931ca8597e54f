// Package container identifies appliances and doors that are really present in
// a recording, as opposed to sporadic false positive detections.
package container

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/kinelabel/internal/monitoring"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// Kind is a container class.
type Kind string

const (
	Refrigerator Kind = "refrigerator"
	Oven         Kind = "oven"
	Microwave    Kind = "microwave"
	Door         Kind = "door"
)

// kinds is the container vocabulary. Other object classes are ignored.
var kinds = map[string]Kind{
	string(Refrigerator): Refrigerator,
	string(Oven):         Oven,
	string(Microwave):    Microwave,
	string(Door):         Door,
}

// Container is an accepted container and the span over which it was seen.
type Container struct {
	Kind           Kind
	FirstSeen      float64
	LastSeen       float64
	DetectionCount uint32
}

// Config holds the acceptance thresholds of the container detector.
type Config struct {
	// MinConfidence is the lowest object detection confidence that counts.
	MinConfidence float64 `json:"min_confidence" toml:"min_confidence"`

	// MinFrames is the minimum number of frames the class must appear in.
	MinFrames int `json:"min_frames" toml:"min_frames"`

	// MinFraction is the minimum share of all frames the class must appear in.
	MinFraction float64 `json:"min_fraction" toml:"min_fraction"`

	// MaxMeanGap is the exclusive upper bound on the mean frame gap between
	// consecutive detections.
	MaxMeanGap float64 `json:"max_mean_gap" toml:"max_mean_gap"`
}

// DefaultConfig returns a Config with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		MinFrames:     20,
		MinFraction:   0.10,
		MaxMeanGap:    10,
	}
}

// Detector accepts or rejects container classes seen in a trajectory.
type Detector struct {
	config Config
}

// NewDetector creates a container detector.
func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

type sighting struct {
	frames []int
	first  float64
	last   float64
}

// Detect returns the accepted containers ordered by FirstSeen.
func (d *Detector) Detect(t *trajectory.Trajectory) []Container {
	seen := make(map[Kind]*sighting)

	for i := 0; i < t.Len(); i++ {
		ts := t.Timestamp(i)
		counted := make(map[Kind]bool)
		for _, obj := range t.Objects(i) {
			kind, ok := kinds[obj.Class]
			if !ok || obj.Confidence < d.config.MinConfidence || counted[kind] {
				continue
			}
			counted[kind] = true

			s := seen[kind]
			if s == nil {
				s = &sighting{first: ts}
				seen[kind] = s
			}
			s.frames = append(s.frames, i)
			s.last = ts
		}
	}

	var out []Container
	total := float64(t.Len())

	for kind, s := range seen {
		count := len(s.frames)
		fraction := float64(count) / total

		if count < d.config.MinFrames || fraction < d.config.MinFraction {
			monitoring.Logf("[container] rejected %s: only %d frames (%.1f%%)", kind, count, fraction*100)
			continue
		}

		gap := meanGap(s.frames)
		if gap >= d.config.MaxMeanGap {
			monitoring.Logf("[container] rejected %s: sporadic detections, mean gap %.1f frames", kind, gap)
			continue
		}

		out = append(out, Container{
			Kind:           kind,
			FirstSeen:      s.first,
			LastSeen:       s.last,
			DetectionCount: uint32(count),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].Kind < out[j].Kind
	})

	return out
}

func meanGap(frames []int) float64 {
	if len(frames) < 2 {
		return 0
	}
	gaps := make([]float64, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		gaps[i-1] = float64(frames[i] - frames[i-1])
	}
	return stat.Mean(gaps, nil)
}

// Span returns the earliest FirstSeen and latest LastSeen of cs.
func Span(cs []Container) (start, end float64, ok bool) {
	if len(cs) == 0 {
		return 0, 0, false
	}
	start, end = cs[0].FirstSeen, cs[0].LastSeen
	for _, c := range cs[1:] {
		if c.FirstSeen < start {
			start = c.FirstSeen
		}
		if c.LastSeen > end {
			end = c.LastSeen
		}
	}
	return start, end, true
}

// MostDetected returns the container with the highest detection count.
// Ties keep the earliest.
func MostDetected(cs []Container) (Container, bool) {
	if len(cs) == 0 {
		return Container{}, false
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if c.DetectionCount > best.DetectionCount {
			best = c
		}
	}
	return best, true
}
