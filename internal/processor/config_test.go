package processor

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}

	s := cfg.Strategy
	if got := s.FrameRate(); got != 870 {
		t.Errorf("FrameRate() = %v, want 870", got)
	}
	if got := s.NumElectrodes(); got != 16 {
		t.Errorf("NumElectrodes() = %d, want 16", got)
	}
	if got := s.FtFrameDuration(); !approxEqual(got, 540e-6, 1e-12) {
		t.Errorf("FtFrameDuration() = %v, want 540µs", got)
	}
	if got := s.PulseRate(); !approxEqual(got, 55555.555, 0.01) {
		t.Errorf("PulseRate() = %v, want 55555.56", got)
	}
	if got := len(cfg.Peak.BinToLocMap); got != 128 {
		t.Errorf("len(BinToLocMap) = %d, want 128", got)
	}
	if got := cfg.Peak.BinToLocMap[127]; got != 7679.0/512 {
		t.Errorf("BinToLocMap[127] = %v, want %v", got, 7679.0/512)
	}
}

func TestChannelBins(t *testing.T) {
	bins := DefaultConfig().Strategy.ChannelBins()
	if len(bins) != 15 {
		t.Fatalf("len(ChannelBins()) = %d, want 15", len(bins))
	}
	if bins[0] != [2]int{6, 8} {
		t.Errorf("channel 1 bins = %v, want [6 8]", bins[0])
	}
	if bins[7] != [2]int{20, 24} {
		t.Errorf("channel 8 bins = %v, want [20 24]", bins[7])
	}
	for i := 1; i < len(bins); i++ {
		if bins[i][0] != bins[i-1][1] {
			t.Errorf("channel %d starts at %d, previous ends at %d", i+1, bins[i][0], bins[i-1][1])
		}
	}
	if last := bins[14][1]; last > 128 {
		t.Errorf("bin groups end at %d, beyond 128 bins", last)
	}
}

func TestWindow(t *testing.T) {
	w := DefaultConfig().Strategy.Window()
	if len(w) != 256 {
		t.Fatalf("len(Window()) = %d, want 256", len(w))
	}
	for i := 0; i < len(w)/2; i++ {
		if !approxEqual(w[i], w[len(w)-1-i], 1e-12) {
			t.Fatalf("window not symmetric at %d: %v vs %v", i, w[i], w[len(w)-1-i])
		}
	}
	if w[0] > 1e-9 {
		t.Errorf("window[0] = %v, want 0", w[0])
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		param  string
	}{
		{"unknown control mode", func(c *Config) { c.Agc.ControlMode = "fast" }, "agc.control_mode"},
		{"unknown clip mode", func(c *Config) { c.Agc.ClipMode = "soft" }, "agc.clip_mode"},
		{"bin groups short", func(c *Config) { c.Strategy.NBinLims = c.Strategy.NBinLims[:14] }, "strategy.n_bin_lims"},
		{"bin groups overflow", func(c *Config) { c.Strategy.NBinLims[14] = 80 }, "strategy.n_bin_lims"},
		{"env coefs mismatch", func(c *Config) { c.Agc.EnvCoefs = c.Agc.EnvCoefs[:10] }, "agc.env_coefs"},
		{"energy domain", func(c *Config) { c.Energy.GainDomain = "db" }, "energy.gain_domain"},
		{"noise domain", func(c *Config) { c.NoiseReduction.GainDomain = GainDomainDB }, "noise_reduction.gain_domain"},
		{"snr ceiling", func(c *Config) { c.NoiseReduction.SnrCeil = -5 }, "noise_reduction.snr_ceil"},
		{"steering range", func(c *Config) { c.Steering.SteeringRange = 1.5 }, "steering.steering_range"},
		{"steps", func(c *Config) { c.Steering.NDiscreteSteps = 1 }, "steering.n_discrete_steps"},
		{"carrier mode", func(c *Config) { c.Mapper.CarrierMode = 3 }, "mapper.carrier_mode"},
		{"map levels", func(c *Config) { c.Mapper.MapT[3] = 600 }, "mapper.map_m"},
		{"short map", func(c *Config) { c.Mapper.MapClip = c.Mapper.MapClip[:4] }, "mapper.map_clip"},
		{"channel order", func(c *Config) { c.Electrodogram.ChannelOrder[0] = 5 }, "electrodogram.channel_order"},
		{"output fs", func(c *Config) { c.Electrodogram.OutputFs = 44100 }, "electrodogram.output_fs"},
		{"fixed pulse width", func(c *Config) { c.Strategy.PulseWidth = 25 }, "strategy.pulse_width"},
		{"fixed fft size", func(c *Config) { c.Strategy.NFft = 512 }, "strategy.n_fft"},
		{"fixed channel count", func(c *Config) { c.Strategy.NChan = 14 }, "strategy.n_chan"},
		{"fixed channel order", func(c *Config) { c.Electrodogram.ChannelOrder = numericOrder(15) }, "electrodogram.channel_order"},
		{"buf opt length", func(c *Config) { c.WinBuf.BufOpt = make([]float64, 10) }, "win_buf.buf_opt"},
		{"hum notch q", func(c *Config) { c.HumNotch.Enabled = true; c.HumNotch.Q = 0 }, "hum_notch.q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error %T is not a *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.param) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.param)
			}
		})
	}
}

// numericOrder returns 1..n, a valid permutation that is not the firing order
func numericOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i + 1
	}
	return order
}

func TestLoadConfigOverrides(t *testing.T) {
	yml := `
agc:
  control_mode: simple
noise_reduction:
  max_att: -20
hilbert:
  output_upper_bound: .inf
steering:
  n_discrete_steps: 5
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadConfigFromReader() error = %v", err)
	}
	if cfg.Agc.ControlMode != ControlModeSimple {
		t.Errorf("ControlMode = %q, want simple", cfg.Agc.ControlMode)
	}
	if cfg.NoiseReduction.MaxAtt != -20 {
		t.Errorf("MaxAtt = %v, want -20", cfg.NoiseReduction.MaxAtt)
	}
	if cfg.Steering.NDiscreteSteps != 5 {
		t.Errorf("NDiscreteSteps = %d, want 5", cfg.Steering.NDiscreteSteps)
	}
	if !math.IsInf(cfg.Hilbert.OutputUpperBound, 1) {
		t.Errorf("OutputUpperBound = %v, want +Inf", cfg.Hilbert.OutputUpperBound)
	}
	// untouched values keep their defaults
	if cfg.Agc.CompRatio != 12 {
		t.Errorf("CompRatio = %v, want default 12", cfg.Agc.CompRatio)
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadConfigFromReader(\"\") error = %v", err)
	}
	if cfg.Strategy.NHop != 20 {
		t.Errorf("NHop = %d, want 20", cfg.Strategy.NHop)
	}
}

func TestLoadConfigRejectsImmutable(t *testing.T) {
	tests := []struct {
		name  string
		yml   string
		param string
	}{
		{"n_fft", "strategy:\n  n_fft: 512\n", "strategy.n_fft"},
		{"n_chan", "strategy:\n  n_chan: 12\n", "strategy.n_chan"},
		{"pulse_width", "strategy:\n  pulse_width: 25\n", "strategy.pulse_width"},
		{"channel_order", "electrodogram:\n  channel_order: [1,2,3,4,5,6,7,8,9,10,11,12,13,14,15]\n", "electrodogram.channel_order"},
		{"output_fs", "electrodogram:\n  output_fs: 48000\n", "electrodogram.output_fs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.yml))
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("LoadConfigFromReader() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.param) || !strings.Contains(err.Error(), "immutable") {
				t.Errorf("error %q does not name immutable %s", err, tt.param)
			}
		})
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("agc:\n  knee: 3\n"))
	if err == nil {
		t.Fatal("LoadConfigFromReader() accepted an unknown field")
	}
}

func TestPoleTauRoundTrip(t *testing.T) {
	for _, pole := range []float64{.25, .9901, .9967, .9988} {
		tau := poleToTau(8, testFs, pole)
		if got := tauToPole(tau, 8, testFs); !approxEqual(got, pole, 1e-12) {
			t.Errorf("tauToPole(poleToTau(%v)) = %v", pole, got)
		}
	}
}
