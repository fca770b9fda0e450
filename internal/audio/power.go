package audio

import "math"

// Power computes the average and peak absolute amplitude of a frame.
// An empty frame yields (0, 0).
func Power(frame Frame) (avg, peak float64) {
	if len(frame) == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range frame {
		a := math.Abs(float64(s))
		sum += a
		if a > peak {
			peak = a
		}
	}
	return sum / float64(len(frame)), peak
}
