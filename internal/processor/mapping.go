package processor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MapLevel converts a log2 envelope value to a current in µA for one
// electrode. Levels more than MapIdr dB below saturation give 0; the
// remaining range maps linearly from T to M at saturation. Louder envelopes
// keep the same slope until they reach MapClip.
func MapLevel(env float64, e int, cfg MapperConfig) float64 {
	envDB := env*dbPerLog2 + cfg.MapGain[e]
	satDB := cfg.MapSat * dbPerLog2
	x := (envDB - (satDB - cfg.MapIdr[e])) / cfg.MapIdr[e]
	if x <= 0 {
		return 0
	}
	return math.Min(cfg.MapClip[e], cfg.MapT[e]+(cfg.MapM[e]-cfg.MapT[e])*x)
}

// F120Mapping produces the amplitude words of every FT frame: row 2c is the
// current on the lower electrode of channel c, row 2c+1 on the upper one.
// Each value is the mapped envelope, times the carrier, times the steering
// weight, clipped to [0, MapClip].
func F120Mapping(env, weights *mat.Dense, carrier CarrierResult, cfg MapperConfig) *mat.Dense {
	nChan, _ := env.Dims()
	nFt := len(carrier.IdxFtToFrm)
	if nFt == 0 {
		return nil
	}
	amp := mat.NewDense(2*nChan, nFt, nil)

	for ch := 0; ch < nChan; ch++ {
		elecs := [2]int{cfg.ChanToElecPair[ch], cfg.ChanToElecPair[ch] + 1}
		for k, frame := range carrier.IdxFtToFrm {
			c := 1.0
			if cfg.CarrierMode == CarrierModeModulated {
				c = carrier.Carrier.At(ch, k)
			}
			for side, e := range elecs {
				row := 2*ch + side
				a := MapLevel(env.At(ch, frame), e, cfg) * c * weights.At(row, frame)
				amp.Set(row, k, math.Max(0, math.Min(cfg.MapClip[e], a)))
			}
		}
	}
	return amp
}
