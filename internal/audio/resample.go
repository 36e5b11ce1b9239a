package audio

import (
	"math"
)

// resampleZeroCrossings is the half-width of the interpolation kernel in
// zero crossings of the (possibly narrowed) sinc
const resampleZeroCrossings = 16

// resampleRolloff keeps the anti-alias cutoff just below the lower Nyquist rate
const resampleRolloff = 0.95

// Resample converts samples from fsIn to fsOut with a Blackman-windowed sinc
// interpolator. When downsampling the sinc is widened so it also acts as the
// anti-alias filter. The output has floor(len*fsOut/fsIn) samples.
func Resample(samples []float64, fsIn, fsOut float64) []float64 {
	if fsIn == fsOut || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	ratio := fsOut / fsIn
	nOut := int(math.Floor(float64(len(samples)) * ratio))
	out := make([]float64, nOut)

	// cutoff in cycles per input sample, relative to input Nyquist
	cutoff := resampleRolloff * math.Min(1, ratio)
	halfWidth := float64(resampleZeroCrossings) / cutoff

	for n := range out {
		t := float64(n) / ratio // position in input samples
		first := int(math.Ceil(t - halfWidth))
		last := int(math.Floor(t + halfWidth))

		acc := 0.0
		for k := max(first, 0); k <= last && k < len(samples); k++ {
			x := float64(k) - t
			acc += samples[k] * cutoff * sinc(cutoff*x) * blackman(x/halfWidth)
		}
		out[n] = acc
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman evaluates a Blackman window centred on 0 with support [-1, 1]
func blackman(u float64) float64 {
	if u <= -1 || u >= 1 {
		return 0
	}
	p := math.Pi * (u + 1)
	return 0.42 - 0.5*math.Cos(p) + 0.08*math.Cos(2*p)
}
