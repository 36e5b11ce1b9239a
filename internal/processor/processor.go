package processor

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/linuxmatters/f120/internal/audio"
	"github.com/linuxmatters/f120/internal/mains"
)

// ProgressFunc receives the stage about to run and the fraction of the chain completed
type ProgressFunc func(stage StageID, progress float64)

// Options carries the ambient dependencies of a run
type Options struct {
	Logger *zap.Logger // nil = no logging
}

// Result holds the output of every stage so callers can inspect intermediates
type Result struct {
	SourceName string
	SourceFs   float64         // rate of the file before resampling, 0 for in-memory input
	Source     *audio.Metadata // nil for in-memory input

	WavIn    []float64 // at Strategy.Fs
	HumFreq  []float64 // notch centres applied, empty when the notch is off
	WavNotch []float64 // WavIn after the hum notch (same slice when it is off)
	WavPre   []float64
	Agc      AgcResult

	AudBuffers *mat.Dense  // NFft x nFrames windowed frames
	FFT        *mat.CDense // bins x nFrames
	Hilbert    *mat.Dense  // nChan x nFrames, log2
	Energy     *mat.Dense  // nChan x nFrames, input-referred
	GainNr     *mat.Dense  // nChan x nFrames, log2
	HilbertMod *mat.Dense  // nChan x nFrames, log2

	PeakFreqDec  *mat.Dense // nChan x decimated frames, Hz
	PeakLocDec   *mat.Dense // nChan x decimated frames
	PeakFreq     *mat.Dense // nChan x nFrames, Hz
	PeakLoc      *mat.Dense // nChan x nFrames
	SteerWeights *mat.Dense // 2*nChan x nFrames

	Carrier       CarrierResult
	AmpWords      *mat.Dense // 2*nChan x nFt, µA
	Electrodogram Electrodogram

	Timings map[StageID]time.Duration
}

// NumFrames returns the number of analysis frames
func (r *Result) NumFrames() int {
	if r.AudBuffers == nil {
		return 0
	}
	_, n := r.AudBuffers.Dims()
	return n
}

// Duration returns the source duration in seconds at the implant rate
func (r *Result) Duration(fs float64) float64 {
	return float64(len(r.WavIn)) / fs
}

// CodedDuration returns the span of whole analysis frames in seconds. The
// trailing partial hop is never coded.
func (r *Result) CodedDuration(s Strategy) float64 {
	return float64(r.NumFrames()*s.NHop) / s.Fs
}

// run times one stage and reports progress before it starts
type run struct {
	result   *Result
	progress ProgressFunc
	log      *zap.Logger
	step     int
}

func (r *run) stage(id StageID, fn func()) {
	if r.progress != nil {
		r.progress(id, float64(r.step)/float64(len(PipelineOrder)))
	}
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	r.result.Timings[id] = elapsed
	r.step++
	r.log.Debug("stage complete", zap.String("stage", string(id)), zap.Duration("elapsed", elapsed))
}

// Process runs the complete chain on a waveform already at cfg.Strategy.Fs.
// The configuration is validated first; no stage runs on an invalid configuration.
func Process(wav []float64, cfg *Config, opts Options, progress ProgressFunc) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := cfg.Strategy
	if len(wav) < s.NHop {
		return nil, &DataError{Stage: StageReadWav, Err: fmt.Errorf("%d samples is shorter than one frame (%d)", len(wav), s.NHop)}
	}
	for i, v := range wav {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &NumericError{Stage: StageReadWav, Index: i, Value: v}
		}
	}

	res := &Result{
		WavIn:   wav,
		Timings: make(map[StageID]time.Duration, len(PipelineOrder)),
	}
	r := &run{result: res, progress: progress, log: log}
	bins := s.ChannelBins()
	nFrames := NumFrames(len(wav), s.NHop)
	frameDur := float64(s.NHop) / s.Fs
	ftDur := s.FtFrameDuration()

	log.Debug("processing",
		zap.Int("samples", len(wav)),
		zap.Float64("fs", s.Fs),
		zap.Int("frames", nFrames),
		zap.Int("ft_frames", NumFtFrames(nFrames, frameDur, ftDur)),
	)

	r.stage(StageHumNotch, func() {
		src := wav
		if cfg.HumNotch.Enabled {
			fundamental := cfg.HumNotch.Frequency
			if fundamental == 0 {
				fundamental = float64(mains.Detect().Frequency)
			}
			res.HumFreq = HumFrequencies(fundamental, s.Fs, cfg.HumNotch.Harmonics)
			src = HumNotch(wav, s.Fs, res.HumFreq, cfg.HumNotch.Q)
			log.Debug("hum notch", zap.Float64s("frequencies", res.HumFreq))
		}
		res.WavNotch = src
	})
	r.stage(StagePreEmphasis, func() {
		res.WavPre = PreEmphasis(res.WavNotch, cfg.PreEmphasis)
	})
	r.stage(StageAGC, func() {
		res.Agc = DualLoopAGC(res.WavPre, s.Fs, cfg.Agc)
	})
	r.stage(StageWinBuf, func() {
		res.AudBuffers = WinBuf(res.Agc.Wav, s.NFft, s.NHop, s.Window(), cfg.WinBuf.BufOpt)
	})
	r.stage(StageFFT, func() {
		res.FFT = FFTFilterbank(res.AudBuffers, cfg.Filterbank)
	})
	r.stage(StageHilbert, func() {
		res.Hilbert = HilbertEnvelope(res.FFT, bins, cfg.Hilbert)
		if lo, hi := countClamped(res.Hilbert, cfg.Hilbert.OutputLowerBound, cfg.Hilbert.OutputUpperBound); lo+hi > 0 {
			log.Warn("envelope clamped", zap.String("stage", string(StageHilbert)),
				zap.Int("at_floor", lo), zap.Int("at_ceiling", hi))
		}
	})
	r.stage(StageEnergy, func() {
		gain := res.Agc.SmpGain
		if cfg.Energy.GainDomain == GainDomainLog2 {
			gain = make([]float64, len(res.Agc.SmpGain))
			for i, g := range res.Agc.SmpGain {
				gain[i] = math.Log2(g)
			}
		}
		res.Energy = ChannelEnergy(res.FFT, bins, gain, cfg.Energy.GainDomain, s.NHop)
	})
	r.stage(StageNoiseReduction, func() {
		res.GainNr = NoiseReduction(res.Energy, s.FrameRate(), cfg.NoiseReduction)
		res.HilbertMod = ApplyNoiseGain(res.Hilbert, res.GainNr)
	})
	r.stage(StagePeakLocator, func() {
		peaks := LocatePeaks(res.FFT, bins, cfg.Peak.BinToLocMap, s.Fs, s.NFft)
		res.PeakFreqDec, res.PeakLocDec = peaks.Freq, peaks.Loc
		res.PeakFreq = UpsamplePeaks(peaks.Freq, s.NChan, nFrames)
		res.PeakLoc = UpsamplePeaks(peaks.Loc, s.NChan, nFrames)
	})
	r.stage(StageSteering, func() {
		res.SteerWeights = SteeringWeights(res.PeakLoc, cfg.Steering)
	})
	r.stage(StageCarrier, func() {
		res.Carrier = CarrierSynthesis(res.PeakFreq, frameDur, ftDur, cfg.Carrier)
	})
	r.stage(StageMapping, func() {
		res.AmpWords = F120Mapping(res.HilbertMod, res.SteerWeights, res.Carrier, cfg.Mapper)
	})
	r.stage(StageElectrodogram, func() {
		res.Electrodogram = ElectrodogramFromAmpWords(res.AmpWords, cfg.Mapper.ChanToElecPair,
			cfg.Electrodogram.ChannelOrder, s.NumElectrodes(), s.PulseWidth, cfg.Electrodogram.CathodicFirst)
	})

	if progress != nil {
		progress(StageElectrodogram, 1.0)
	}
	return res, nil
}

// countClamped counts the values of m sitting at either bound
func countClamped(m *mat.Dense, lower, upper float64) (lo, hi int) {
	for _, v := range m.RawMatrix().Data {
		switch {
		case v <= lower:
			lo++
		case v >= upper:
			hi++
		}
	}
	return lo, hi
}

// ProcessFile reads a WAV file, resamples it to the implant rate and runs the chain
func ProcessFile(path string, cfg *Config, opts Options, progress ProgressFunc) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	src, err := audio.Load(path, cfg.Input, cfg.Strategy.Fs)
	if err != nil {
		return nil, &DataError{Stage: StageReadWav, Path: path, Err: err}
	}
	wav := src.Samples
	readTime := time.Since(start)

	log.Info("read source",
		zap.String("path", path),
		zap.Int("sample_rate", src.SampleRate),
		zap.Int("channels", src.Channels),
		zap.Int("bit_depth", src.BitDepth),
		zap.Int("resampled_samples", len(wav)),
	)

	res, err := Process(wav, cfg, Options{Logger: log.With(zap.String("source", filepath.Base(path)))}, progress)
	if err != nil {
		var de *DataError
		if errors.As(err, &de) && de.Path == "" {
			de.Path = path
		}
		return nil, err
	}
	res.SourceName = src.Name
	res.SourceFs = float64(src.SampleRate)
	res.Source = &src.Metadata
	res.Timings[StageReadWav] = readTime
	return res, nil
}
