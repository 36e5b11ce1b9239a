// Package validate checks a coded electrodogram before it is saved and
// persists electrodograms as sparse parquet files.
package validate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/linuxmatters/f120/internal/processor"
)

var (
	ErrShape      = errors.New("electrodogram has the wrong shape")
	ErrLength     = errors.New("electrodogram length does not match the source")
	ErrRate       = errors.New("electrodogram sample rate does not match")
	ErrTooSimilar = errors.New("electrodogram is too similar to the reference")
)

// Config holds the validator parameters
type Config struct {
	LengthTolerance     float64 `yaml:"length_tolerance"`     // relative, against the coded duration
	FrameDuration       float64 `yaml:"frame_duration"`       // s; output is whole FT frames and may overrun by one
	SaveIfSimilar       bool    `yaml:"save_if_similar"`      // save even when too similar to the reference
	DifferenceThreshold float64 `yaml:"difference_threshold"` // µA; mean absolute difference below this is "similar"
	MaxSimilarChannels  int     `yaml:"max_similar_channels"`
	ElGramFs            float64 `yaml:"el_gram_fs"` // Hz; 0 = accept the electrodogram's own rate
	OutFile             string  `yaml:"out_file"`   // empty = derived from the source name
}

// DefaultConfig returns the validator defaults; ElGramFs follows the strategy pulse width
func DefaultConfig(s processor.Strategy) Config {
	return Config{
		LengthTolerance:     0.005,
		SaveIfSimilar:       true,
		DifferenceThreshold: 1,
		MaxSimilarChannels:  8,
		ElGramFs:            1e6 / s.PulseWidth,
		FrameDuration:       s.FtFrameDuration(),
	}
}

// Report is the outcome of Check
type Report struct {
	Electrodes    int
	Samples       int
	Duration      float64 // s
	CodedDuration float64 // s
	LengthError   float64 // relative

	Compared        bool
	Differences     []float64 // µA per electrode, set when Compared
	SimilarChannels int
	TooSimilar      bool

	Save bool
}

// Check validates eg against the duration the analysis frames covered (see
// processor.Result.CodedDuration) and, when ref is non-nil, against a
// reference electrodogram. The length may differ by LengthTolerance of the
// coded duration plus one FrameDuration. A non-nil error is returned only
// when the output must not be saved.
func Check(eg processor.Electrodogram, codedDuration float64, nElectrodes int, ref *processor.Electrodogram, cfg Config) (*Report, error) {
	if eg.Data == nil {
		return nil, fmt.Errorf("%w: empty", ErrShape)
	}
	rows, cols := eg.Data.Dims()
	if rows != nElectrodes {
		return nil, fmt.Errorf("%w: %d electrodes, want %d", ErrShape, rows, nElectrodes)
	}
	if cfg.ElGramFs > 0 && math.Abs(eg.Fs-cfg.ElGramFs) > 1e-6*cfg.ElGramFs {
		return nil, fmt.Errorf("%w: %.3f Hz, want %.3f Hz", ErrRate, eg.Fs, cfg.ElGramFs)
	}

	rep := &Report{
		Electrodes:    rows,
		Samples:       cols,
		Duration:      eg.Duration(),
		CodedDuration: codedDuration,
	}
	if codedDuration > 0 {
		diff := math.Abs(rep.Duration - codedDuration)
		rep.LengthError = diff / codedDuration
		if diff > cfg.LengthTolerance*codedDuration+cfg.FrameDuration {
			return rep, fmt.Errorf("%w: %.4fs coded from %.4fs (%.2f%% off, tolerance %.2f%%)",
				ErrLength, rep.Duration, codedDuration, 100*rep.LengthError, 100*cfg.LengthTolerance)
		}
	}

	rep.Save = true
	if ref == nil {
		return rep, nil
	}

	diffs, err := Differences(eg, *ref)
	if err != nil {
		return rep, err
	}
	rep.Compared = true
	rep.Differences = diffs
	for _, d := range diffs {
		if d < cfg.DifferenceThreshold {
			rep.SimilarChannels++
		}
	}
	rep.TooSimilar = rep.SimilarChannels > cfg.MaxSimilarChannels
	if rep.TooSimilar && !cfg.SaveIfSimilar {
		rep.Save = false
		return rep, fmt.Errorf("%w: %d of %d electrodes within %g µA", ErrTooSimilar, rep.SimilarChannels, rows, cfg.DifferenceThreshold)
	}
	return rep, nil
}

// Differences returns the mean absolute difference per electrode over the
// samples both electrodograms cover.
func Differences(a, b processor.Electrodogram) ([]float64, error) {
	if a.Data == nil || b.Data == nil {
		return nil, fmt.Errorf("%w: nothing to compare", ErrShape)
	}
	ra, ca := a.Data.Dims()
	rb, cb := b.Data.Dims()
	if ra != rb {
		return nil, fmt.Errorf("%w: %d electrodes against %d in the reference", ErrShape, ra, rb)
	}
	if math.Abs(a.Fs-b.Fs) > 1e-6*a.Fs {
		return nil, fmt.Errorf("%w: %.3f Hz against %.3f Hz in the reference", ErrRate, a.Fs, b.Fs)
	}

	n := min(ca, cb)
	diffs := make([]float64, ra)
	if n == 0 {
		return diffs, nil
	}
	row := make([]float64, n)
	for e := 0; e < ra; e++ {
		floats.SubTo(row, a.Data.RawRowView(e)[:n], b.Data.RawRowView(e)[:n])
		diffs[e] = floats.Norm(row, 1) / float64(n)
	}
	return diffs, nil
}
