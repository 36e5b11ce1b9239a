package processor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// noiseFloorDB is the lowest channel level the SNR estimator tracks, and the
// default initial state of both trackers.
const noiseFloorDB = -30.0

// dbPerLog2 converts log2 units to dB
var dbPerLog2 = 20 * math.Log10(2)

// NoiseGainCurve maps an SNR estimate (dB) to a gain in dB: MaxAtt at or below
// SnrFloor, 0 dB at or above SnrCeil, a clamped linear ramp in between.
func NoiseGainCurve(snr float64, cfg NoiseReductionConfig) float64 {
	switch {
	case snr >= cfg.SnrCeil:
		return 0
	case snr <= cfg.SnrFloor:
		return cfg.MaxAtt
	}
	g := cfg.MaxAtt + cfg.SnrSlope*cfg.SlopeFact*(snr-cfg.SnrFloor)
	return math.Max(cfg.MaxAtt, math.Min(0, g))
}

// noiseTracker holds the speech and noise level estimates of one channel
type noiseTracker struct {
	vS, vN  float64
	counter int
}

// NoiseReduction estimates the per-channel SNR from the channel energies and
// returns a gain mask in cfg.GainDomain. The speech tracker is a one-pole
// smoother; the noise tracker follows it downwards immediately and upwards
// slowly, and freezes for DurHold seconds whenever the speech level rises
// more than ThreshHold dB above it.
func NoiseReduction(energy *mat.Dense, frameRate float64, cfg NoiseReductionConfig) *mat.Dense {
	nChan, nFrames := energy.Dims()
	gains := mat.NewDense(nChan, nFrames, nil)

	dec := cfg.NoiseEstDecimation
	alphaS := math.Exp(-1 / (cfg.TauSpeech * frameRate))
	alphaN := math.Exp(-float64(dec) / (cfg.TauNoise * frameRate))
	holdFrames := int(math.Ceil(cfg.DurHold * frameRate / float64(dec)))
	floor := math.Pow(10, noiseFloorDB/20)

	for ch := 0; ch < nChan; ch++ {
		tr := noiseTracker{vS: noiseFloorDB, vN: noiseFloorDB}
		if ch < len(cfg.InitState.VS) {
			tr.vS = cfg.InitState.VS[ch]
		}
		if ch < len(cfg.InitState.VN) {
			tr.vN = cfg.InitState.VN[ch]
		}

		for k := 0; k < nFrames; k++ {
			e := 20 * math.Log10(math.Max(energy.At(ch, k), floor))
			tr.vS = e + alphaS*(tr.vS-e)

			if k%dec == 0 {
				tr.updateNoise(alphaN, holdFrames, cfg)
			}

			g := NoiseGainCurve(tr.vS-tr.vN, cfg)
			switch cfg.GainDomain {
			case GainDomainLog2:
				g /= dbPerLog2
			case GainDomainLinear:
				g = math.Pow(10, g/20)
			}
			gains.Set(ch, k, g)
		}
	}
	return gains
}

func (t *noiseTracker) updateNoise(alphaN float64, holdFrames int, cfg NoiseReductionConfig) {
	switch {
	case t.vS <= t.vN:
		t.vN = t.vS
		t.counter = 0
	case t.vS-t.vN > cfg.ThreshHold:
		t.counter++
		if cfg.EnableContinuous || t.counter > holdFrames {
			t.vN = t.vS + alphaN*(t.vN-t.vS)
		}
	default:
		t.counter = 0
		t.vN = t.vS + alphaN*(t.vN-t.vS)
	}
}

// ApplyNoiseGain adds a log2 gain mask to a log2 envelope
func ApplyNoiseGain(env, gains *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Add(env, gains)
	return &out
}
