package processor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SteeringWeights splits every channel between its electrode pair. Row 2c
// holds the weight of the lower electrode of channel c, row 2c+1 the upper.
// The relative location inside the pair is quantised to NDiscreteSteps steps
// spread over SteeringRange around the pair midpoint; the two weights sum to 1.
func SteeringWeights(loc *mat.Dense, cfg SteeringConfig) *mat.Dense {
	nChan, nFrames := loc.Dims()
	w := mat.NewDense(2*nChan, nFrames, nil)

	steps := float64(cfg.NDiscreteSteps - 1)
	lowest := 0.5 - cfg.SteeringRange/2

	for ch := 0; ch < nChan; ch++ {
		for k := 0; k < nFrames; k++ {
			rel := math.Max(0, math.Min(1, loc.At(ch, k)-float64(ch)))
			step := math.Round(rel * steps)
			hi := lowest + step/steps*cfg.SteeringRange
			w.Set(2*ch, k, 1-hi)
			w.Set(2*ch+1, k, hi)
		}
	}
	return w
}
