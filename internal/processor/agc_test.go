package processor

import (
	"math"
	"testing"
)

func TestStaticGain(t *testing.T) {
	cfg := DefaultConfig().Agc
	g0 := math.Exp(cfg.G0)

	// below the knee the gain is constant
	for _, c := range []float64{1e-5, 1e-3, 0.05} {
		if got := StaticGain(c, cfg); !approxEqual(got, g0, g0*1e-9) {
			t.Errorf("StaticGain(%v) = %v, want %v", c, got, g0)
		}
	}

	// above the knee the output level rises 1/CompRatio as fast as the input
	c1, c2 := 0.2, 0.4
	out1 := math.Log(c1 * StaticGain(c1, cfg))
	out2 := math.Log(c2 * StaticGain(c2, cfg))
	slope := (out2 - out1) / (math.Log(c2) - math.Log(c1))
	if !approxEqual(slope, 1/cfg.CompRatio, 1e-9) {
		t.Errorf("compression slope = %v, want %v", slope, 1/cfg.CompRatio)
	}
}

func TestAgcEnvelope(t *testing.T) {
	coefs := []float64{0.25, 0.25, 0.25, 0.25}
	x := []float64{1, -1, 1, -1, 2, -2}

	tests := []struct {
		end  int
		want float64
	}{
		{0, 0},   // entirely before the signal
		{2, 0.5}, // two of four taps inside
		{4, 1},
		{6, 1.5},
		{8, 1}, // runs past the end
	}
	for _, tt := range tests {
		if got := agcEnvelope(x, tt.end, coefs); !approxEqual(got, tt.want, 1e-12) {
			t.Errorf("agcEnvelope(end=%d) = %v, want %v", tt.end, got, tt.want)
		}
	}
}

func TestDualLoopAGCSteadyTone(t *testing.T) {
	cfg := DefaultConfig().Agc
	x := generateSignal(TestSignalOptions{DurationSecs: 2, ToneFreq: 1000, ToneAmp: 0.5})
	res := DualLoopAGC(x, testFs, cfg)

	if len(res.Wav) != len(x) || len(res.SmpGain) != len(x) {
		t.Fatalf("output lengths %d/%d, want %d", len(res.Wav), len(res.SmpGain), len(x))
	}

	// mean block envelope over the last half second
	from := len(x) - int(testFs/2)
	sum, n := 0.0, 0
	for end := from; end <= len(x); end += cfg.DecFact {
		sum += agcEnvelope(x, end, cfg.EnvCoefs)
		n++
	}
	meanEnv := sum / float64(n)
	if level := math.Log(meanEnv) + cfg.G0; level <= cfg.KneePt {
		t.Fatalf("test tone below the knee: level %v", level)
	}

	want := StaticGain(meanEnv, cfg)
	got := res.SmpGain[len(x)-1]
	diffDB := 20 * math.Abs(math.Log10(got/want))
	if diffDB > 1 {
		t.Errorf("settled gain %v differs from static curve %v by %.2f dB", got, want, diffDB)
	}
}

func TestDualLoopAGCDelayAndLimit(t *testing.T) {
	cfg := DefaultConfig().Agc
	x := make([]float64, 400)
	x[0] = 1

	res := DualLoopAGC(x, testFs, cfg)
	delay := cfg.EnvBufLen - cfg.GainBufLen
	for n := 0; n < delay; n++ {
		if res.Wav[n] != 0 {
			t.Fatalf("output[%d] = %v before the %d sample delay", n, res.Wav[n], delay)
		}
	}
	if res.Wav[delay] == 0 {
		t.Errorf("impulse missing at output[%d]", delay)
	}

	// overdriven input is held at the ceiling in limit mode
	loud := generateSignal(TestSignalOptions{DurationSecs: 0.2, ToneFreq: 500, ToneAmp: 1})
	for i := range loud {
		loud[i] *= 100
	}
	limit := LimitCeiling(cfg)
	for i, v := range DualLoopAGC(loud, testFs, cfg).Wav {
		if math.Abs(v) > limit+1e-9 {
			t.Fatalf("output[%d] = %v exceeds limit %v", i, v, limit)
		}
	}
}

func TestDualLoopAGCClipModes(t *testing.T) {
	limited := DefaultConfig().Agc
	unlimited := limited
	unlimited.ClipMode = ClipModeNone
	ceiling := LimitCeiling(limited)
	if math.IsInf(ceiling, 1) || ceiling >= math.Exp(limited.G0) {
		t.Fatalf("ceiling %v is not below the maximum gain %v", ceiling, math.Exp(limited.G0))
	}

	tests := []struct {
		name     string
		amp      float64
		emphasis bool
		clipped  bool
	}{
		// the gain is still near exp(G0) when a full-scale tone starts
		{"full-scale onset", 1, false, true},
		{"pre-emphasized full-scale onset", 1, true, true},
		{"quiet tone", 0.1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := generateSignal(TestSignalOptions{DurationSecs: 0.2, ToneFreq: 1000, ToneAmp: tt.amp})
			if tt.emphasis {
				x = PreEmphasis(x, DefaultConfig().PreEmphasis)
			}
			a := DualLoopAGC(x, testFs, limited).Wav
			b := DualLoopAGC(x, testFs, unlimited).Wav

			peakNone := 0.0
			differ := 0
			for i := range a {
				peakNone = math.Max(peakNone, math.Abs(b[i]))
				if math.Abs(a[i]) > ceiling+1e-9 {
					t.Fatalf("limit output[%d] = %v above ceiling %v", i, a[i], ceiling)
				}
				if a[i] != b[i] {
					differ++
				}
			}
			if tt.clipped {
				if peakNone <= ceiling {
					t.Errorf("none peak %v never passes ceiling %v", peakNone, ceiling)
				}
				if differ == 0 {
					t.Error("limit and none outputs are identical on a full-scale onset")
				}
				return
			}
			if differ != 0 {
				t.Errorf("%d samples differ between limit and none below full scale", differ)
			}
		})
	}
}

func TestDualLoopAGCFastAttack(t *testing.T) {
	// quiet, then a sudden loud burst: the fast loop pulls the gain down within a few ms
	cfg := DefaultConfig().Agc
	quiet := generateSignal(TestSignalOptions{DurationSecs: 1, ToneFreq: 1000, ToneAmp: 0.01})
	loud := generateSignal(TestSignalOptions{DurationSecs: 0.2, ToneFreq: 1000, ToneAmp: 0.8})
	x := append(quiet, loud...)

	res := DualLoopAGC(x, testFs, cfg)
	before := res.SmpGain[len(quiet)-1]
	after := res.SmpGain[len(quiet)+int(0.01*testFs)]
	if after >= before/2 {
		t.Errorf("gain 10 ms after onset %v, before onset %v: fast attack too slow", after, before)
	}

	simple := cfg
	simple.ControlMode = ControlModeSimple
	resSimple := DualLoopAGC(x, testFs, simple)
	if resSimple.SmpGain[len(x)-1] <= 0 {
		t.Error("simple mode produced a non-positive gain")
	}
}

func TestDualLoopAGCEmpty(t *testing.T) {
	res := DualLoopAGC(nil, testFs, DefaultConfig().Agc)
	if len(res.Wav) != 0 || len(res.SmpGain) != 0 {
		t.Error("empty input produced output")
	}
}
