package processor

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// tinyMagnitude keeps log2 finite for silent channels
const tinyMagnitude = 1e-30

// FFTFilterbank transforms every windowed frame (one column of frames) into
// its half spectrum. The result has one row per bin and one column per frame.
func FFTFilterbank(frames *mat.Dense, cfg FilterbankConfig) *mat.CDense {
	nFft, nFrames := frames.Dims()
	nBins := nFft / 2
	if cfg.IncludeNyquistBin {
		nBins++
	}

	fft := fourier.NewFFT(nFft)
	col := make([]float64, nFft)
	coeffs := make([]complex128, nFft/2+1)
	out := mat.NewCDense(nBins, nFrames, nil)

	scale := complex(1, 0)
	if cfg.CompensateFftLength {
		scale = complex(2/float64(nFft), 0)
	}

	for k := 0; k < nFrames; k++ {
		mat.Col(col, k, frames)
		coeffs = fft.Coefficients(coeffs, col)

		if cfg.CombineDcNy {
			// Nyquist is real for real input; carry it in the imaginary part of DC
			coeffs[0] = complex(real(coeffs[0]), real(coeffs[nFft/2]))
		}
		for b := 0; b < nBins; b++ {
			out.Set(b, k, coeffs[b]*scale)
		}
	}
	return out
}

// HilbertEnvelope computes the log2 envelope of every channel from the sum of
// its bins with alternating sign, which approximates the analytic signal at
// the centre of the window. Values are offset then clamped to the configured bounds.
func HilbertEnvelope(spec *mat.CDense, bins [][2]int, cfg HilbertConfig) *mat.Dense {
	_, nFrames := spec.Dims()
	env := mat.NewDense(len(bins), nFrames, nil)

	for ch, r := range bins {
		for k := 0; k < nFrames; k++ {
			var sum complex128
			for b := r[0]; b < r[1]; b++ {
				if b%2 == 0 {
					sum += spec.At(b, k)
				} else {
					sum -= spec.At(b, k)
				}
			}
			v := math.Log2(math.Max(cmplx.Abs(sum), tinyMagnitude)) + cfg.OutputOffset
			env.Set(ch, k, math.Max(cfg.OutputLowerBound, math.Min(cfg.OutputUpperBound, v)))
		}
	}
	return env
}

// ChannelEnergy computes the root power of every channel and divides out the
// AGC gain at the last sample of each frame, giving an input-referred level
// for noise estimation.
func ChannelEnergy(spec *mat.CDense, bins [][2]int, gain []float64, domain string, nHop int) *mat.Dense {
	_, nFrames := spec.Dims()
	energy := mat.NewDense(len(bins), nFrames, nil)

	for k := 0; k < nFrames; k++ {
		g := 1.0
		if idx := (k+1)*nHop - 1; idx < len(gain) {
			g = gain[idx]
			if domain == GainDomainLog2 {
				g = math.Exp2(g)
			}
		}
		if g <= 0 {
			g = 1
		}

		for ch, r := range bins {
			pow := 0.0
			for b := r[0]; b < r[1]; b++ {
				x := spec.At(b, k)
				pow += real(x)*real(x) + imag(x)*imag(x)
			}
			energy.Set(ch, k, math.Sqrt(pow)/g)
		}
	}
	return energy
}
