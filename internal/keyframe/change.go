package keyframe

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	changeBlurSize       = 21
	changePixelThreshold = 25
)

// changeMeter measures how much of a frame differs from the last frame it
// kept. Frames are compared in blurred grayscale so sensor noise does not
// count as change.
type changeMeter struct {
	prev gocv.Mat
	has  bool
}

func newChangeMeter() *changeMeter {
	return &changeMeter{prev: gocv.NewMat()}
}

// Measure returns the percentage of pixels of frame that changed since the
// last kept frame, and 100 when there is none yet. It does not keep frame.
func (m *changeMeter) Measure(frame gocv.Mat) float64 {
	if frame.Empty() {
		return 0
	}

	gray := m.prepare(frame)
	defer gray.Close()

	if !m.has {
		return 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.prev, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, changePixelThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(thresh)) / float64(total) * 100
}

// Keep makes frame the reference for the next Measure.
func (m *changeMeter) Keep(frame gocv.Mat) {
	gray := m.prepare(frame)
	defer gray.Close()
	gray.CopyTo(&m.prev)
	m.has = true
}

// prepare returns frame in blurred grayscale. The caller closes it.
func (m *changeMeter) prepare(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: changeBlurSize, Y: changeBlurSize}, 0, 0, gocv.BorderDefault)
	return blurred
}

// Close releases the reference frame.
func (m *changeMeter) Close() {
	m.prev.Close()
	m.has = false
}
