package validate

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/linuxmatters/f120/internal/processor"
)

const testFs = 1e6 / 18

// pulseTrain returns a 16-electrode electrodogram lasting dur seconds with a
// biphasic pulse of amp µA every 30 samples on each of the given electrodes
func pulseTrain(dur, amp float64, electrodes ...int) processor.Electrodogram {
	n := int(math.Ceil(dur * testFs))
	data := mat.NewDense(16, n, nil)
	for _, e := range electrodes {
		for k := 0; k+1 < n; k += 30 {
			data.Set(e, k, -amp)
			data.Set(e, k+1, amp)
		}
	}
	return processor.Electrodogram{Data: data, Fs: testFs}
}

func testConfig() Config {
	return DefaultConfig(processor.DefaultConfig().Strategy)
}

func TestDefaultConfig(t *testing.T) {
	cfg := testConfig()
	if cfg.LengthTolerance != 0.005 || !cfg.SaveIfSimilar || cfg.DifferenceThreshold != 1 || cfg.MaxSimilarChannels != 8 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if math.Abs(cfg.FrameDuration-540e-6) > 1e-12 {
		t.Errorf("FrameDuration = %v, want 540µs", cfg.FrameDuration)
	}
	if math.Abs(cfg.ElGramFs-testFs) > 1e-9 {
		t.Errorf("ElGramFs = %v, want %v", cfg.ElGramFs, testFs)
	}
}

func TestCheck(t *testing.T) {
	eg := pulseTrain(0.5, 200, 3, 4)

	tests := []struct {
		name    string
		eg      processor.Electrodogram
		srcDur  float64
		nElec   int
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", eg, 0.5, 16, nil, nil},
		{"within tolerance", eg, 0.501, 16, nil, nil},
		{"too short", eg, 0.6, 16, nil, ErrLength},
		{"short excerpt within one frame", pulseTrain(0.0055, 200, 3), 0.005, 16, nil, nil},
		{"short excerpt without frame allowance", pulseTrain(0.0055, 200, 3), 0.005, 16, func(c *Config) { c.FrameDuration = 0 }, ErrLength},
		{"wrong electrode count", eg, 0.5, 22, nil, ErrShape},
		{"empty", processor.Electrodogram{}, 0.5, 16, nil, ErrShape},
		{"wrong rate", eg, 0.5, 16, func(c *Config) { c.ElGramFs = 1e6 / 25 }, ErrRate},
		{"any rate accepted", eg, 0.5, 16, func(c *Config) { c.ElGramFs = 0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			rep, err := Check(tt.eg, tt.srcDur, tt.nElec, nil, cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if !rep.Save || rep.Compared {
				t.Errorf("report = %+v, want saved without comparison", rep)
			}
		})
	}
}

func TestCheckShortRecording(t *testing.T) {
	cfg := processor.DefaultConfig()
	s := cfg.Strategy
	// 119 samples: five frames cover 100, the last 19 are never coded
	wav := make([]float64, 119)
	for i := range wav {
		wav[i] = 0.1 * math.Sin(2*math.Pi*1000*float64(i)/s.Fs)
	}
	res, err := processor.Process(wav, cfg, processor.Options{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if _, err := Check(res.Electrodogram, res.CodedDuration(s), s.NumElectrodes(), nil, DefaultConfig(s)); err != nil {
		t.Errorf("Check() against the coded duration = %v", err)
	}
	if _, err := Check(res.Electrodogram, res.Duration(s.Fs), s.NumElectrodes(), nil, DefaultConfig(s)); !errors.Is(err, ErrLength) {
		t.Errorf("Check() against the raw sample count = %v, want ErrLength", err)
	}
}

func TestCheckReference(t *testing.T) {
	out := pulseTrain(0.5, 200, 3, 4)

	t.Run("identical is too similar but saved by default", func(t *testing.T) {
		rep, err := Check(out, 0.5, 16, &out, testConfig())
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !rep.Compared || rep.SimilarChannels != 16 || !rep.TooSimilar || !rep.Save {
			t.Errorf("report = %+v", rep)
		}
	})

	t.Run("identical refused when similar output is not saved", func(t *testing.T) {
		cfg := testConfig()
		cfg.SaveIfSimilar = false
		rep, err := Check(out, 0.5, 16, &out, cfg)
		if !errors.Is(err, ErrTooSimilar) {
			t.Fatalf("error = %v, want ErrTooSimilar", err)
		}
		if rep.Save {
			t.Error("report says save")
		}
	})

	t.Run("different output passes", func(t *testing.T) {
		cfg := testConfig()
		cfg.SaveIfSimilar = false
		cfg.MaxSimilarChannels = 14
		ref := pulseTrain(0.5, 200, 8, 9)
		rep, err := Check(out, 0.5, 16, &ref, cfg)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if rep.SimilarChannels != 12 || rep.TooSimilar {
			t.Errorf("similar = %d, too similar %v; want 12, false", rep.SimilarChannels, rep.TooSimilar)
		}
	})
}

func TestDifferences(t *testing.T) {
	a := pulseTrain(0.01, 100, 0)
	b := pulseTrain(0.02, 40, 0) // longer: only the overlap counts

	diffs, err := Differences(a, b)
	if err != nil {
		t.Fatalf("Differences() error = %v", err)
	}
	_, n := a.Data.Dims()
	pulses := (n + 28) / 30 // pulses whose two phases fit in the shorter train
	want := float64(2*pulses) * 60 / float64(n)
	if math.Abs(diffs[0]-want) > 1e-9 {
		t.Errorf("electrode 0 difference = %v, want %v", diffs[0], want)
	}
	if diffs[1] != 0 {
		t.Errorf("silent electrode difference = %v, want 0", diffs[1])
	}

	c := processor.Electrodogram{Data: mat.NewDense(12, 10, nil), Fs: testFs}
	if _, err := Differences(a, c); !errors.Is(err, ErrShape) {
		t.Errorf("electrode mismatch error = %v, want ErrShape", err)
	}
}

func processorElectrodogram(data *mat.Dense) processor.Electrodogram {
	return processor.Electrodogram{Data: data, Fs: testFs}
}
