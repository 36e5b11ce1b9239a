package processor

import (
	"gonum.org/v1/gonum/mat"
)

// NumFrames returns the number of analysis frames produced for nSamp samples
func NumFrames(nSamp, nHop int) int {
	if nHop <= 0 {
		return 0
	}
	return nSamp / nHop
}

// WinBuf cuts the waveform into overlapping windowed frames. Frame k holds
// the NFft samples ending at sample (k+1)*NHop; samples before the start of
// the waveform come from bufOpt when given, zeros otherwise. The result has
// one column per frame.
func WinBuf(wav []float64, nFft, nHop int, win, bufOpt []float64) *mat.Dense {
	nFrames := NumFrames(len(wav), nHop)
	if nFrames == 0 {
		return nil
	}

	preRoll := nFft - nHop
	buf := mat.NewDense(nFft, nFrames, nil)
	for k := 0; k < nFrames; k++ {
		first := (k+1)*nHop - nFft
		for i := 0; i < nFft; i++ {
			n := first + i
			var v float64
			switch {
			case n >= 0:
				v = wav[n]
			case len(bufOpt) == preRoll:
				v = bufOpt[preRoll+n]
			}
			buf.Set(i, k, v*win[i])
		}
	}
	return buf
}
