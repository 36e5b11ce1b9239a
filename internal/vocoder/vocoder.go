// Package vocoder renders an electrodogram back into audio so the coding
// can be auditioned. Each electrode drives one carrier, sine or band-limited
// noise, placed at the electrode's position on the frequency axis and
// modulated by the electrode's smoothed current.
package vocoder

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/linuxmatters/f120/internal/audio"
	"github.com/linuxmatters/f120/internal/processor"
)

// Carrier selects the per-electrode carrier signal
type Carrier string

const (
	CarrierSine  Carrier = "sine"
	CarrierNoise Carrier = "noise"
)

// maxCarrierRatio keeps carriers below the output Nyquist rate
const maxCarrierRatio = 0.45

var ErrEmpty = errors.New("nothing to render")

// Config holds the vocoder parameters
type Config struct {
	AudioFs    float64 `yaml:"audio_fs"`    // Hz
	Carrier    Carrier `yaml:"carrier"`     // sine | noise
	EnvelopeMs float64 `yaml:"envelope_ms"` // current smoothing window
	Peak       float64 `yaml:"peak"`        // output peak, full scale = 1; 0 leaves the level alone
	Seed       int64   `yaml:"seed"`        // noise carrier seed
	SaveFile   string  `yaml:"save_file"`   // empty = do not save
}

// DefaultConfig returns the vocoder defaults
func DefaultConfig() Config {
	return Config{
		AudioFs:    16000,
		Carrier:    CarrierSine,
		EnvelopeMs: 4,
		Peak:       0.9,
		Seed:       1,
	}
}

// Validate checks the vocoder configuration
func (c Config) Validate() error {
	if c.AudioFs <= 0 {
		return fmt.Errorf("vocoder audio_fs must be positive, got %g", c.AudioFs)
	}
	if c.Carrier != CarrierSine && c.Carrier != CarrierNoise {
		return fmt.Errorf("vocoder carrier %q unknown (sine, noise)", c.Carrier)
	}
	if c.EnvelopeMs <= 0 {
		return fmt.Errorf("vocoder envelope_ms must be positive, got %g", c.EnvelopeMs)
	}
	if c.Peak < 0 || c.Peak > 1 {
		return fmt.Errorf("vocoder peak must be in [0, 1], got %g", c.Peak)
	}
	return nil
}

// ElectrodeFrequencies places each electrode at the band edge between the
// two channels it is shared by. The outer electrodes take the outer edges.
func ElectrodeFrequencies(s processor.Strategy, audioFs float64) []float64 {
	bins := s.ChannelBins()
	binHz := s.Fs / float64(s.NFft)
	ceiling := maxCarrierRatio * audioFs

	freqs := make([]float64, s.NumElectrodes())
	for e := range freqs {
		var edge int
		if e < len(bins) {
			edge = bins[e][0]
		} else {
			edge = bins[len(bins)-1][1]
		}
		freqs[e] = math.Min((float64(edge)-0.5)*binHz, ceiling)
	}
	return freqs
}

// Envelopes returns the mean absolute current of every electrode over a
// window of windowSec centred on each output sample.
func Envelopes(eg processor.Electrodogram, audioFs, windowSec float64) *mat.Dense {
	nElec, nIn := eg.Data.Dims()
	nOut := int(math.Floor(eg.Duration() * audioFs))
	if nOut == 0 {
		return nil
	}
	half := max(1, int(math.Round(windowSec*eg.Fs/2)))

	env := mat.NewDense(nElec, nOut, nil)
	cum := make([]float64, nIn+1)
	row := make([]float64, nIn)
	for e := 0; e < nElec; e++ {
		for n := 0; n < nIn; n++ {
			row[n] = math.Abs(eg.Data.At(e, n))
		}
		floats.CumSum(cum[1:], row)

		for k := 0; k < nOut; k++ {
			centre := int(float64(k) / audioFs * eg.Fs)
			lo, hi := max(0, centre-half), min(nIn, centre+half)
			env.Set(e, k, (cum[hi]-cum[lo])/float64(hi-lo))
		}
	}
	return env
}

// Render converts eg into audio at cfg.AudioFs. freqs gives the carrier
// frequency of each electrode.
func Render(eg processor.Electrodogram, freqs []float64, cfg Config) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eg.Data == nil {
		return nil, ErrEmpty
	}
	nElec, _ := eg.Data.Dims()
	if len(freqs) != nElec {
		return nil, fmt.Errorf("%d carrier frequencies for %d electrodes", len(freqs), nElec)
	}

	env := Envelopes(eg, cfg.AudioFs, cfg.EnvelopeMs/1000)
	if env == nil {
		return nil, ErrEmpty
	}
	_, nOut := env.Dims()

	var carriers [][]float64
	switch cfg.Carrier {
	case CarrierNoise:
		carriers = noiseCarriers(freqs, nOut, cfg.AudioFs, cfg.Seed)
	default:
		carriers = sineCarriers(freqs, nOut, cfg.AudioFs)
	}

	out := make([]float64, nOut)
	prod := make([]float64, nOut)
	for e := 0; e < nElec; e++ {
		floats.MulTo(prod, carriers[e], env.RawRowView(e))
		floats.Add(out, prod)
	}

	if cfg.Peak > 0 {
		if peak := floats.Norm(out, math.Inf(1)); peak > 0 {
			floats.Scale(cfg.Peak/peak, out)
		}
	}
	return out, nil
}

// RenderFile renders eg and writes it as a 16-bit WAV file
func RenderFile(path string, eg processor.Electrodogram, freqs []float64, cfg Config) error {
	out, err := Render(eg, freqs, cfg)
	if err != nil {
		return err
	}
	return audio.WriteWav(path, out, int(cfg.AudioFs))
}

func sineCarriers(freqs []float64, n int, fs float64) [][]float64 {
	carriers := make([][]float64, len(freqs))
	for e, f := range freqs {
		c := make([]float64, n)
		w := 2 * math.Pi * f / fs
		for k := range c {
			c[k] = math.Sin(w * float64(k))
		}
		carriers[e] = c
	}
	return carriers
}

// noiseCarriers band-limits one white noise sequence around every electrode
// frequency. Band edges are the geometric midpoints between neighbouring
// electrodes; each band is scaled to unit RMS.
func noiseCarriers(freqs []float64, n int, fs float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	noise := make([]float64, n)
	for k := range noise {
		noise[k] = rng.NormFloat64()
	}

	fft := fourier.NewFFT(n)
	spec := fft.Coefficients(nil, noise)
	binHz := fs / float64(n)

	carriers := make([][]float64, len(freqs))
	band := make([]complex128, len(spec))
	for e := range freqs {
		lo, hi := bandEdges(freqs, e, fs)
		for b := range spec {
			fb := float64(b) * binHz
			if fb >= lo && fb < hi {
				band[b] = spec[b]
			} else {
				band[b] = 0
			}
		}
		c := fft.Sequence(nil, band)
		if rms := floats.Norm(c, 2) / math.Sqrt(float64(n)); rms > 0 {
			floats.Scale(1/rms, c)
		}
		carriers[e] = c
	}
	return carriers
}

func bandEdges(freqs []float64, e int, fs float64) (lo, hi float64) {
	f := freqs[e]
	switch {
	case e > 0:
		lo = math.Sqrt(freqs[e-1] * f)
	case len(freqs) > 1:
		lo = f * f / math.Sqrt(f*freqs[1])
	default:
		lo = f / 2
	}
	switch {
	case e+1 < len(freqs):
		hi = math.Sqrt(f * freqs[e+1])
	case e > 0:
		hi = f * f / math.Sqrt(freqs[e-1]*f)
	default:
		hi = 2 * f
	}
	return lo, math.Min(hi, fs/2)
}
