package processor

import (
	"math"
)

// lfilter applies the direct-form IIR filter b/a to x with zero initial
// state. Coefficients are normalised by a[0].
func lfilter(b, a, x []float64) []float64 {
	a0 := a[0]
	nb, na := len(b), len(a)
	y := make([]float64, len(x))
	for n := range x {
		acc := 0.0
		for k := 0; k < nb && k <= n; k++ {
			acc += b[k] * x[n-k]
		}
		for k := 1; k < na && k <= n; k++ {
			acc -= a[k] * y[n-k]
		}
		y[n] = acc / a0
	}
	return y
}

// PreEmphasis applies the fixed pre-emphasis filter to the waveform
func PreEmphasis(wav []float64, cfg PreEmphasisConfig) []float64 {
	return lfilter(cfg.Num, cfg.Den, wav)
}

// biquad is a normalised second-order section in transposed direct form II
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// newNotch designs an RBJ cookbook notch at freq Hz
func newNotch(fs, freq, q float64) *biquad {
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	a0 := 1 + alpha

	return &biquad{
		b0: 1 / a0,
		b1: -2 * cosw0 / a0,
		b2: 1 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// HumFrequencies returns the notch centres for a mains fundamental: the
// fundamental and its harmonics, up to count of them, stopping below Nyquist.
func HumFrequencies(fundamental, fs float64, count int) []float64 {
	var freqs []float64
	for h := 1; h <= count; h++ {
		f := fundamental * float64(h)
		if f >= fs/2 {
			break
		}
		freqs = append(freqs, f)
	}
	return freqs
}

// HumNotch removes mains hum by cascading one notch per entry of freqs.
// The input is returned unchanged when freqs is empty.
func HumNotch(wav []float64, fs float64, freqs []float64, q float64) []float64 {
	out := make([]float64, len(wav))
	copy(out, wav)
	if len(freqs) == 0 {
		return out
	}

	filters := make([]*biquad, len(freqs))
	for i, f := range freqs {
		filters[i] = newNotch(fs, f, q)
	}
	for n, x := range out {
		for _, f := range filters {
			x = f.process(x)
		}
		out[n] = x
	}
	return out
}
