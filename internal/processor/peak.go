package processor

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

const (
	// peakDecimation: the peak locator only runs on every third frame
	peakDecimation = 3
	// peakAlignPad frames of zeros realign the upsampled estimates with the frame grid
	peakAlignPad = peakDecimation - 1
)

// PeakResult holds the per-channel dominant frequency and cochlear location
type PeakResult struct {
	Freq *mat.Dense // Hz
	Loc  *mat.Dense // electrode units
}

// parabolicOffset returns the fractional bin offset of a spectral peak from
// the magnitudes around it, limited to half a bin.
func parabolicOffset(left, centre, right float64) float64 {
	denom := left - 2*centre + right
	if denom == 0 {
		return 0
	}
	d := 0.5 * (left - right) / denom
	return math.Max(-0.5, math.Min(0.5, d))
}

// binToLocation linearly interpolates the bin to location map at a fractional bin
func binToLocation(bin float64, locMap []float64) float64 {
	last := len(locMap) - 1
	if bin <= 0 {
		return locMap[0]
	}
	if bin >= float64(last) {
		return locMap[last]
	}
	lo := int(math.Floor(bin))
	frac := bin - float64(lo)
	return locMap[lo] + frac*(locMap[lo+1]-locMap[lo])
}

// LocatePeaks finds the strongest bin of every channel in frames 2, 5, 8, ...
// refines it by parabolic interpolation, and converts it to a frequency and
// a steering location. The last channel always points at the most basal location.
func LocatePeaks(spec *mat.CDense, bins [][2]int, locMap []float64, fs float64, nFft int) PeakResult {
	nBins, nFrames := spec.Dims()
	nDec := 0
	if nFrames > peakAlignPad {
		nDec = (nFrames-peakAlignPad-1)/peakDecimation + 1
	}
	nChan := len(bins)

	res := PeakResult{}
	if nDec == 0 {
		return res
	}
	res.Freq = mat.NewDense(nChan, nDec, nil)
	res.Loc = mat.NewDense(nChan, nDec, nil)

	maxLoc := locMap[0]
	for _, v := range locMap {
		maxLoc = math.Max(maxLoc, v)
	}

	mag := func(b, k int) float64 { return cmplx.Abs(spec.At(b, k)) }

	for d := 0; d < nDec; d++ {
		k := peakAlignPad + d*peakDecimation
		for ch, r := range bins {
			peak := r[0]
			for b := r[0] + 1; b < r[1]; b++ {
				if mag(b, k) > mag(peak, k) {
					peak = b
				}
			}

			delta := 0.0
			if peak > 0 && peak < nBins-1 {
				delta = parabolicOffset(mag(peak-1, k), mag(peak, k), mag(peak+1, k))
			}
			bin := float64(peak) + delta

			res.Freq.Set(ch, d, bin*fs/float64(nFft))
			if ch == nChan-1 {
				res.Loc.Set(ch, d, maxLoc)
			} else {
				res.Loc.Set(ch, d, binToLocation(bin, locMap))
			}
		}
	}
	return res
}

// UpsamplePeaks repeats every decimated estimate three times and shifts the
// result by two frames so it lines up with the full frame grid.
func UpsamplePeaks(dec *mat.Dense, nChan, nFrames int) *mat.Dense {
	out := mat.NewDense(nChan, nFrames, nil)
	if dec == nil {
		return out
	}
	_, nDec := dec.Dims()
	for ch := 0; ch < nChan; ch++ {
		for k := peakAlignPad; k < nFrames; k++ {
			d := (k - peakAlignPad) / peakDecimation
			if d >= nDec {
				d = nDec - 1
			}
			out.Set(ch, k, dec.At(ch, d))
		}
	}
	return out
}
