package processor

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// centreBin30 is the centre of FFT bin 30, inside channel 10 (bins 28..32)
var centreBin30 = 30 * testFs / 256

// dominantElectrode returns the electrode carrying the most charge
func dominantElectrode(eg Electrodogram) int {
	nElec, nSamples := eg.Data.Dims()
	best, bestSum := -1, 0.0
	for e := 0; e < nElec; e++ {
		sum := 0.0
		for n := 0; n < nSamples; n++ {
			sum += math.Abs(eg.Data.At(e, n))
		}
		if sum > bestSum {
			best, bestSum = e, sum
		}
	}
	return best
}

func TestProcessTone(t *testing.T) {
	cfg := DefaultConfig()
	x := generateSignal(TestSignalOptions{DurationSecs: 0.5, ToneFreq: centreBin30, ToneAmp: 0.1})

	res, err := Process(x, cfg, Options{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	nFrames := res.NumFrames()
	if want := len(x) / cfg.Strategy.NHop; nFrames != want {
		t.Errorf("frames = %d, want %d", nFrames, want)
	}
	for name, m := range map[string]*mat.Dense{
		"Hilbert": res.Hilbert, "Energy": res.Energy, "GainNr": res.GainNr,
		"HilbertMod": res.HilbertMod, "PeakFreq": res.PeakFreq, "PeakLoc": res.PeakLoc,
	} {
		if r, c := m.Dims(); r != 15 || c != nFrames {
			t.Errorf("%s dims = %dx%d, want 15x%d", name, r, c, nFrames)
		}
	}
	if r, c := res.SteerWeights.Dims(); r != 30 || c != nFrames {
		t.Errorf("SteerWeights dims = %dx%d, want 30x%d", r, c, nFrames)
	}

	nFt := len(res.Carrier.IdxFtToFrm)
	if r, c := res.AmpWords.Dims(); r != 30 || c != nFt {
		t.Errorf("AmpWords dims = %dx%d, want 30x%d", r, c, nFt)
	}
	nElec, nSamples := res.Electrodogram.Data.Dims()
	if nElec != 16 || nSamples != nFt*30 {
		t.Errorf("electrodogram dims = %dx%d, want 16x%d", nElec, nSamples, nFt*30)
	}

	// the tone sits 70% of the way up channel 10, steering towards its upper electrode
	if got := dominantElectrode(res.Electrodogram); got != 10 {
		t.Errorf("dominant electrode = %d, want 10", got)
	}
	if got := res.PeakLoc.At(9, nFrames-1); math.Abs(got-9.7) > 0.05 {
		t.Errorf("channel 10 location = %v, want about 9.7", got)
	}

	// output duration covers the input
	if got, want := res.Electrodogram.Duration(), float64(len(x))/testFs; got < want-0.0011 {
		t.Errorf("electrodogram lasts %vs, input %vs", got, want)
	}

	for _, id := range PipelineOrder {
		if _, ok := res.Timings[id]; !ok {
			t.Errorf("no timing recorded for %s", id)
		}
	}
}

func TestProcessSilence(t *testing.T) {
	res, err := Process(make([]float64, 4000), DefaultConfig(), Options{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	r, c := res.Electrodogram.Data.Dims()
	for e := 0; e < r; e++ {
		for n := 0; n < c; n++ {
			if v := res.Electrodogram.Data.At(e, n); v != 0 {
				t.Fatalf("silence produced %v µA on electrode %d", v, e)
			}
		}
	}
}

func TestProcessProgress(t *testing.T) {
	x := generateSignal(TestSignalOptions{DurationSecs: 0.1, ToneFreq: 1000, ToneAmp: 0.1})

	var stages []StageID
	last := -1.0
	_, err := Process(x, DefaultConfig(), Options{}, func(stage StageID, progress float64) {
		if progress < last {
			t.Errorf("progress went backwards: %v after %v", progress, last)
		}
		last = progress
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if last != 1.0 {
		t.Errorf("final progress = %v, want 1", last)
	}
	for i, id := range PipelineOrder {
		if stages[i] != id {
			t.Errorf("stage %d = %s, want %s", i, stages[i], id)
		}
	}
}

func TestProcessHumNotch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HumNotch.Enabled = true
	cfg.HumNotch.Frequency = 50

	x := generateSignal(TestSignalOptions{DurationSecs: 0.2, ToneFreq: 50, ToneAmp: 0.2})
	res, err := Process(x, cfg, Options{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.HumFreq) != 4 || res.HumFreq[0] != 50 {
		t.Errorf("HumFreq = %v, want 4 harmonics of 50 Hz", res.HumFreq)
	}
	if &res.WavNotch[0] == &res.WavIn[0] {
		t.Error("notch enabled but the waveform passed through untouched")
	}
}

func TestProcessErrors(t *testing.T) {
	t.Run("invalid config runs nothing", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Agc.ClipMode = "wrap"
		called := false
		_, err := Process(make([]float64, 1000), cfg, Options{}, func(StageID, float64) { called = true })
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("error = %v, want *ConfigError", err)
		}
		if ce.Stage != StageAGC {
			t.Errorf("stage = %s, want %s", ce.Stage, StageAGC)
		}
		if called {
			t.Error("a stage ran on an invalid configuration")
		}
	})

	fixed := []struct {
		name   string
		modify func(c *Config)
	}{
		{"pulse width", func(c *Config) { c.Strategy.PulseWidth = 25 }},
		{"fft size", func(c *Config) { c.Strategy.NFft = 512 }},
		{"channel count", func(c *Config) { c.Strategy.NChan = 14 }},
		{"channel order", func(c *Config) { c.Electrodogram.ChannelOrder = numericOrder(15) }},
		{"output rate", func(c *Config) { c.Electrodogram.OutputFs = 40000 }},
	}
	for _, tt := range fixed {
		t.Run("fixed "+tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			called := false
			res, err := Process(make([]float64, 1000), cfg, Options{}, func(StageID, float64) { called = true })
			var ce *ConfigError
			if !errors.As(err, &ce) || res != nil {
				t.Fatalf("Process() = %v, %v, want *ConfigError", res, err)
			}
			if called {
				t.Error("a stage ran with a changed device parameter")
			}
		})
	}

	t.Run("non-finite sample", func(t *testing.T) {
		x := make([]float64, 1000)
		x[321] = math.NaN()
		_, err := Process(x, DefaultConfig(), Options{}, nil)
		var ne *NumericError
		if !errors.As(err, &ne) || ne.Index != 321 {
			t.Fatalf("error = %v, want *NumericError at 321", err)
		}
	})

	t.Run("shorter than a frame", func(t *testing.T) {
		_, err := Process(make([]float64, 5), DefaultConfig(), Options{}, nil)
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("error = %v, want *DataError", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.wav")
		_, err := ProcessFile(path, DefaultConfig(), Options{}, nil)
		var de *DataError
		if !errors.As(err, &de) || de.Path != path {
			t.Fatalf("error = %v, want *DataError for %s", err, path)
		}
	})
}

func TestProcessFile(t *testing.T) {
	const fileRate = 44100
	x := generateSignal(TestSignalOptions{DurationSecs: 0.5, SampleRate: fileRate, ToneFreq: centreBin30, ToneAmp: 0.1})
	path := writeTestWav(t, "tone-2039.wav", x, fileRate)

	res, err := ProcessFile(path, DefaultConfig(), Options{}, nil)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if res.SourceName != "tone-2039" {
		t.Errorf("SourceName = %q, want tone-2039", res.SourceName)
	}
	if res.SourceFs != fileRate {
		t.Errorf("SourceFs = %v, want %d", res.SourceFs, fileRate)
	}
	if want := int(0.5 * testFs); math.Abs(float64(len(res.WavIn)-want)) > 1 {
		t.Errorf("resampled length = %d, want %d", len(res.WavIn), want)
	}
	if got := dominantElectrode(res.Electrodogram); got != 10 {
		t.Errorf("dominant electrode = %d, want 10", got)
	}
	if _, ok := res.Timings[StageReadWav]; !ok {
		t.Error("no timing recorded for reading")
	}
}

func TestProcessFileStereo(t *testing.T) {
	left := generateSignal(TestSignalOptions{DurationSecs: 0.3, ToneFreq: centreBin30, ToneAmp: 0.1})
	right := generateSignal(TestSignalOptions{DurationSecs: 0.3, ToneFreq: 500, ToneAmp: 0.2})
	path := writeStereoWav(t, left, right, int(testFs))

	tests := []struct {
		name    string
		channel int // -1 keeps the default
		want    func(i int) float64
	}{
		{"default codes the left channel", -1, func(i int) float64 { return left[i] }},
		{"second channel", 2, func(i int) float64 { return right[i] }},
		{"downmix", 0, func(i int) float64 { return (left[i] + right[i]) / 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.channel >= 0 {
				cfg.Input.Channel = tt.channel
			}
			res, err := ProcessFile(path, cfg, Options{}, nil)
			if err != nil {
				t.Fatalf("ProcessFile() error = %v", err)
			}
			if len(res.WavIn) != len(left) {
				t.Fatalf("len(WavIn) = %d, want %d", len(res.WavIn), len(left))
			}
			for i, v := range res.WavIn {
				if !approxEqual(v, tt.want(i), 1e-4) {
					t.Fatalf("WavIn[%d] = %v, want %v", i, v, tt.want(i))
				}
			}
		})
	}
}

func TestCountClamped(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{-1, 0, 5, -2, 3, 5})
	lo, hi := countClamped(m, -1, 5)
	if lo != 2 || hi != 2 {
		t.Errorf("countClamped = %d, %d, want 2, 2", lo, hi)
	}
}
