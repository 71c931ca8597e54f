// Package keyframe extracts still frames of a recording for the vision
// classifier. It links OpenCV through gocv.
package keyframe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// DefaultCount is the number of frames sampled per window.
const DefaultCount = 4

// ErrNoFrames is returned when no frame of the window could be read.
var ErrNoFrames = errors.New("no frames read from recording")

// Sampler extracts evenly spaced frames of a recording as JPEG files.
type Sampler struct {
	videoPath string
	outDir    string
	count     int

	// minChange is the percentage of pixels that must differ from the last
	// written keyframe for a frame to be written.
	minChange float64
}

// NewSampler creates a sampler reading videoPath and writing into outDir. A
// non-positive count selects DefaultCount.
func NewSampler(videoPath, outDir string, count int) *Sampler {
	if count <= 0 {
		count = DefaultCount
	}
	return &Sampler{videoPath: videoPath, outDir: outDir, count: count}
}

// WithMinChange drops keyframes that differ from the previously written one
// in less than percent of their pixels. Zero keeps every frame.
func (s *Sampler) WithMinChange(percent float64) *Sampler {
	s.minChange = max(0, percent)
	return s
}

// FrameIndices returns count frame numbers spread evenly over [start, end]
// seconds at fps, clamped to [0, total). Consecutive duplicates are dropped.
func FrameIndices(start, end, fps float64, total, count int) []int {
	if fps <= 0 || total <= 0 || count <= 0 || end < start {
		return nil
	}

	clamp := func(f int) int {
		return max(0, min(f, total-1))
	}

	var out []int
	for k := 0; k < count; k++ {
		ts := start
		if count > 1 {
			ts = start + (end-start)*float64(k)/float64(count-1)
		}
		f := clamp(int(ts*fps + 0.5))
		if len(out) > 0 && out[len(out)-1] == f {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Keyframes implements vision.Keyframer. The caller owns the written files.
func (s *Sampler) Keyframes(start, end float64) ([]string, error) {
	vc, err := gocv.VideoCaptureFile(s.videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer vc.Close()

	fps := vc.Get(gocv.VideoCaptureFPS)
	total := int(vc.Get(gocv.VideoCaptureFrameCount))
	indices := FrameIndices(start, end, fps, total, s.count)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: window %.2fs-%.2fs outside recording", ErrNoFrames, start, end)
	}

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create keyframe dir: %w", err)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	meter := newChangeMeter()
	defer meter.Close()

	var paths []string
	for _, f := range indices {
		vc.Set(gocv.VideoCapturePosFrames, float64(f))
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			continue
		}
		if s.minChange > 0 {
			if meter.Measure(mat) < s.minChange {
				continue
			}
			meter.Keep(mat)
		}
		path := filepath.Join(s.outDir, fmt.Sprintf("frame_%06d.jpg", f))
		if ok := gocv.IMWrite(path, mat); !ok {
			return paths, fmt.Errorf("failed to write keyframe %s", path)
		}
		paths = append(paths, path)
	}

	if len(paths) == 0 {
		return nil, ErrNoFrames
	}
	return paths, nil
}
