package processor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CarrierResult holds the per-channel carrier at the FT rate
type CarrierResult struct {
	Carrier    *mat.Dense // nChan x nFt, in [1-MaxModDepth, 1]
	IdxFtToFrm []int      // analysis frame sampled by every FT frame
}

// NumFtFrames returns how many FT frames cover nFrames analysis frames
func NumFtFrames(nFrames int, frameDur, ftDur float64) int {
	return int(math.Ceil(float64(nFrames) * frameDur / ftDur))
}

// FtToFrameIndex maps every FT frame to the analysis frame in effect at its start
func FtToFrameIndex(nFt, nFrames int, frameDur, ftDur float64) []int {
	idx := make([]int, nFt)
	for k := range idx {
		f := int(math.Floor(float64(k) * ftDur / frameDur))
		idx[k] = min(f, nFrames-1)
	}
	return idx
}

// CarrierSynthesis builds a raised-cosine carrier per channel whose rate
// follows the channel peak frequency. Phase advances by f*ftDur cycles per
// FT frame, limited to DeltaPhaseMax. Modulation depth is MaxModDepth for
// slow carriers and fades to zero between FModOn and FModOff of the maximum rate.
func CarrierSynthesis(peakFreq *mat.Dense, frameDur, ftDur float64, cfg CarrierConfig) CarrierResult {
	nChan, nFrames := peakFreq.Dims()
	nFt := NumFtFrames(nFrames, frameDur, ftDur)
	res := CarrierResult{IdxFtToFrm: FtToFrameIndex(nFt, nFrames, frameDur, ftDur)}
	if nFt == 0 {
		return res
	}
	res.Carrier = mat.NewDense(nChan, nFt, nil)

	fMax := cfg.DeltaPhaseMax / ftDur
	span := cfg.FModOff - cfg.FModOn

	for ch := 0; ch < nChan; ch++ {
		phase := 0.0
		for k := 0; k < nFt; k++ {
			f := peakFreq.At(ch, res.IdxFtToFrm[k])
			phase += math.Min(f*ftDur, cfg.DeltaPhaseMax)
			phase -= math.Floor(phase)

			depth := cfg.MaxModDepth * math.Max(0, math.Min(1, (cfg.FModOff-f/fMax)/span))
			res.Carrier.Set(ch, k, 1-depth*0.5*(1-math.Cos(2*math.Pi*phase)))
		}
	}
	return res
}
