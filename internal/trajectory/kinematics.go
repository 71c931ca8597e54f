package trajectory

import "math"

// Gradient returns d(values)/d(ts) using central differences in the interior
// and one-sided differences at the two ends. Both slices must have the same
// length; fewer than two points yields all zeros.
func Gradient(values, ts []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	out[0] = (values[1] - values[0]) / (ts[1] - ts[0])
	out[n-1] = (values[n-1] - values[n-2]) / (ts[n-1] - ts[n-2])

	// Non-uniform second-order central difference.
	for i := 1; i < n-1; i++ {
		h1 := ts[i] - ts[i-1]
		h2 := ts[i+1] - ts[i]
		out[i] = (h1*h1*values[i+1] - h2*h2*values[i-1] + (h2*h2-h1*h1)*values[i]) / (h1 * h2 * (h1 + h2))
	}

	return out
}

// Unwrap removes 2π jumps from a sequence of angles in radians, so that
// consecutive values never differ by more than π.
func Unwrap(angles []float64) []float64 {
	out := make([]float64, len(angles))
	if len(angles) == 0 {
		return out
	}

	out[0] = angles[0]
	offset := 0.0
	for i := 1; i < len(angles); i++ {
		d := angles[i] - angles[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi * math.Ceil((d-math.Pi)/(2*math.Pi))
		} else if d < -math.Pi {
			offset += 2 * math.Pi * math.Ceil((-d-math.Pi)/(2*math.Pi))
		}
		out[i] = angles[i] + offset
	}

	return out
}
