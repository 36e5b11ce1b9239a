package processor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/mjibson/go-dsp/window"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/f120/internal/audio"
)

// Strategy holds the constants shared by every stage of the F120 chain.
// Stages never read it implicitly: each entry point is handed the fields it needs.
type Strategy struct {
	Fs         float64 `yaml:"fs"`          // Hz, implant internal audio rate; input is resampled to this
	NFft       int     `yaml:"n_fft"`       // DO NOT CHANGE
	NHop       int     `yaml:"n_hop"`       // samples between analysis frames
	NChan      int     `yaml:"n_chan"`      // DO NOT CHANGE
	StartBin   int     `yaml:"start_bin"`   // first FFT bin assigned to channel 1
	NBinLims   []int   `yaml:"n_bin_lims"`  // FFT bins per channel, low to high
	PulseWidth float64 `yaml:"pulse_width"` // µs per pulse phase, DO NOT CHANGE
}

// FrameRate returns the STFT frame rate in Hz
func (s Strategy) FrameRate() float64 {
	return s.Fs / float64(s.NHop)
}

// NumElectrodes returns the number of physical electrodes (one more than channels)
func (s Strategy) NumElectrodes() int {
	return s.NChan + 1
}

// NumBins returns the number of usable half-spectrum bins
func (s Strategy) NumBins(includeNyquist bool) int {
	if includeNyquist {
		return s.NFft/2 + 1
	}
	return s.NFft / 2
}

// ChannelBins returns the [start, end) FFT bin range of every channel
func (s Strategy) ChannelBins() [][2]int {
	ranges := make([][2]int, len(s.NBinLims))
	start := s.StartBin
	for i, n := range s.NBinLims {
		ranges[i] = [2]int{start, start + n}
		start += n
	}
	return ranges
}

// FtFrameDuration returns the duration in seconds of one FT frame: every
// channel fires one biphasic pulse, two phases of PulseWidth each.
func (s Strategy) FtFrameDuration() float64 {
	return float64(2*s.NChan) * s.PulseWidth * 1e-6
}

// PulseRate returns the electrodogram sample rate in Hz (one sample per phase)
func (s Strategy) PulseRate() float64 {
	return 1e6 / s.PulseWidth
}

// Window returns the strategy analysis window: the mean of a Blackman and a
// Hann window of length NFft.
func (s Strategy) Window() []float64 {
	blackman := window.Blackman(s.NFft)
	hann := window.Hann(s.NFft)
	w := make([]float64, s.NFft)
	for i := range w {
		w[i] = 0.5 * (blackman[i] + hann[i])
	}
	return w
}

// PreEmphasisConfig holds the fixed IIR shaping filter
type PreEmphasisConfig struct {
	Num []float64 `yaml:"coeff_num"`
	Den []float64 `yaml:"coeff_denom"`
}

// HumNotchConfig configures the optional mains hum notch applied before pre-emphasis
type HumNotchConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float64 `yaml:"frequency"` // Hz, 0 = detect from local timezone
	Harmonics int     `yaml:"harmonics"` // number of harmonics notched, including the fundamental
	Q         float64 `yaml:"q"`
}

// AGC control and clip modes
const (
	ControlModeNaida  = "naida"
	ControlModeSimple = "simple"
	ClipModeLimit     = "limit"
	ClipModeNone      = "none"
)

// AgcConfig holds the dual-loop AGC parameters
type AgcConfig struct {
	KneePt        float64   `yaml:"knee_pt"`         // natural-log level where compression starts
	CompRatio     float64   `yaml:"comp_ratio"`      // static compression ratio above the knee
	TauRelFast    float64   `yaml:"tau_rel_fast"`    // ms
	TauAttFast    float64   `yaml:"tau_att_fast"`    // ms
	TauRelSlow    float64   `yaml:"tau_rel_slow"`    // ms
	TauAttSlow    float64   `yaml:"tau_att_slow"`    // ms
	MaxHold       int       `yaml:"max_hold"`        // samples the fast detector keeps control after a switch
	G0            float64   `yaml:"g0"`              // natural-log gain below the knee
	FastThreshRel float64   `yaml:"fast_thresh_rel"` // dB the fast envelope must exceed the slow one by
	CSlowInit     float64   `yaml:"c_slow_init"`
	CFastInit     float64   `yaml:"c_fast_init"`
	ControlMode   string    `yaml:"control_mode"` // "naida" or "simple"
	ClipMode      string    `yaml:"clip_mode"`    // "limit" or "none"
	DecFact       int       `yaml:"dec_fact"`     // samples per envelope/gain update
	EnvBufLen     int       `yaml:"env_buf_len"`
	GainBufLen    int       `yaml:"gain_buf_len"`
	EnvCoefs      []float64 `yaml:"env_coefs"` // FIR applied to the last EnvBufLen rectified samples
}

// WinBufConfig configures frame buffering
type WinBufConfig struct {
	// BufOpt optionally pre-fills the first buffer (length NFft-NHop) instead of zeros
	BufOpt []float64 `yaml:"buf_opt"`
}

// FilterbankConfig configures the FFT filterbank
type FilterbankConfig struct {
	CombineDcNy         bool `yaml:"combine_dc_ny"`
	CompensateFftLength bool `yaml:"compensate_fft_length"`
	IncludeNyquistBin   bool `yaml:"include_nyquist_bin"`
}

// HilbertConfig bounds the log2 Hilbert envelope
type HilbertConfig struct {
	OutputOffset     float64 `yaml:"output_offset"`
	OutputLowerBound float64 `yaml:"output_lower_bound"`
	OutputUpperBound float64 `yaml:"output_upper_bound"`
}

// Gain domains
const (
	GainDomainLinear = "linear"
	GainDomainLog2   = "log2"
	GainDomainDB     = "db"
)

// EnergyConfig configures channel energy estimation
type EnergyConfig struct {
	GainDomain string `yaml:"gain_domain"` // domain of the AGC gain trace
}

// NoiseInitState seeds the per-channel speech and noise trackers (dB)
type NoiseInitState struct {
	VS []float64 `yaml:"v_s"`
	VN []float64 `yaml:"v_n"`
}

// NoiseReductionConfig holds the SNR estimator and gain curve parameters
type NoiseReductionConfig struct {
	GainDomain         string         `yaml:"gain_domain"` // domain of the output gain mask
	TauSpeech          float64        `yaml:"tau_speech"`  // s
	TauNoise           float64        `yaml:"tau_noise"`   // s
	ThreshHold         float64        `yaml:"thresh_hold"` // dB above the noise estimate that starts a hold
	DurHold            float64        `yaml:"dur_hold"`    // s the noise estimate stays frozen
	MaxAtt             float64        `yaml:"max_att"`     // dB, most negative gain
	SnrFloor           float64        `yaml:"snr_floor"`   // dB, at or below: MaxAtt
	SnrCeil            float64        `yaml:"snr_ceil"`    // dB, at or above: 0 dB
	SnrSlope           float64        `yaml:"snr_slope"`
	SlopeFact          float64        `yaml:"slope_fact"`
	NoiseEstDecimation int            `yaml:"noise_est_decimation"`
	EnableContinuous   bool           `yaml:"enable_continuous"`
	InitState          NoiseInitState `yaml:"init_state"`
}

// PeakConfig holds the bin to cochlear location lookup table
type PeakConfig struct {
	// BinToLocMap gives the nominal steering location of every FFT bin,
	// in electrode units (0 = most apical electrode)
	BinToLocMap []float64 `yaml:"bin_to_loc_map"`
}

// SteeringConfig configures current steering
type SteeringConfig struct {
	NDiscreteSteps int     `yaml:"n_discrete_steps"`
	SteeringRange  float64 `yaml:"steering_range"`
}

// CarrierConfig configures carrier synthesis
type CarrierConfig struct {
	FModOn        float64 `yaml:"f_mod_on"`        // fraction of the max carrier rate below which modulation is full
	FModOff       float64 `yaml:"f_mod_off"`       // fraction of the max carrier rate above which modulation stops
	MaxModDepth   float64 `yaml:"max_mod_depth"`   // 0..1
	DeltaPhaseMax float64 `yaml:"delta_phase_max"` // cycles per FT frame
}

// Carrier modes
const (
	CarrierModeConstant  = 0
	CarrierModeModulated = 1
)

// MapperConfig holds the per-electrode compression map. Arrays have one entry per electrode.
type MapperConfig struct {
	MapM           []float64 `yaml:"map_m"`    // µA at saturation (most comfortable level)
	MapT           []float64 `yaml:"map_t"`    // µA at threshold
	MapIdr         []float64 `yaml:"map_idr"`  // dB input dynamic range
	MapGain        []float64 `yaml:"map_gain"` // dB added to the envelope
	MapClip        []float64 `yaml:"map_clip"` // µA ceiling
	MapSat         float64   `yaml:"map_sat"`  // log2 envelope level that maps to MapM, louder levels extrapolate up to MapClip
	ChanToElecPair []int     `yaml:"chan_to_elec_pair"`
	CarrierMode    int       `yaml:"carrier_mode"` // 1 = modulated carrier, 0 = constant
}

// ElectrodogramConfig configures pulse train assembly
type ElectrodogramConfig struct {
	CathodicFirst bool  `yaml:"cathodic_first"`
	ChannelOrder  []int `yaml:"channel_order"` // 1-based firing order, DO NOT CHANGE
	// OutputFs is derived from the pulse width (55555.56 Hz). DO NOT CHANGE:
	// validation depends on the matched output rate. 0 means derived.
	OutputFs float64 `yaml:"output_fs"`
}

// Config is the complete parameter set of the F120 chain
type Config struct {
	Input          audio.LoadConfig     `yaml:"input"`
	Strategy       Strategy             `yaml:"strategy"`
	HumNotch       HumNotchConfig       `yaml:"hum_notch"`
	PreEmphasis    PreEmphasisConfig    `yaml:"pre_emphasis"`
	Agc            AgcConfig            `yaml:"agc"`
	WinBuf         WinBufConfig         `yaml:"win_buf"`
	Filterbank     FilterbankConfig     `yaml:"filterbank"`
	Hilbert        HilbertConfig        `yaml:"hilbert"`
	Energy         EnergyConfig         `yaml:"energy"`
	NoiseReduction NoiseReductionConfig `yaml:"noise_reduction"`
	Peak           PeakConfig           `yaml:"peak"`
	Steering       SteeringConfig       `yaml:"steering"`
	Carrier        CarrierConfig        `yaml:"carrier"`
	Mapper         MapperConfig         `yaml:"mapper"`
	Electrodogram  ElectrodogramConfig  `yaml:"electrodogram"`
}

// poleToTau converts a discrete one-pole coefficient applied every decFact
// samples into a time constant in milliseconds.
func poleToTau(decFact int, fs, pole float64) float64 {
	return -float64(decFact) / (fs * math.Log(pole)) * 1000
}

// defaultEnvCoefs is the AGC envelope FIR, Q16
var defaultEnvCoefs = []float64{
	-19, 55, 153, 277, 426, 596, 784, 983,
	1189, 1393, 1587, 1763, 1915, 2035, 2118, 2160,
	2160, 2118, 2035, 1915, 1763, 1587, 1393, 1189,
	983, 784, 596, 426, 277, 153, 55, -19,
}

// defaultBinLocations are the nominal steering locations (Q9) of FFT bins 6..74.
// Bins below 6 map to 0; bins from 75 up saturate at 7679.
var defaultBinLocations = []float64{
	256, 640, 896, 1280, 1664, 1920, 2176,
	2432, 2688, 2944, 3157, 3328, 3499, 3648, 3776, 3904, 4032,
	4160, 4288, 4416, 4544, 4659, 4762, 4864, 4966, 5069, 5163,
	5248, 5333, 5419, 5504, 5589, 5669, 5742, 5815, 5888, 5961,
	6034, 6107, 6176, 6240, 6304, 6368, 6432, 6496, 6560, 6624,
	6682, 6733, 6784, 6835, 6886, 6938, 6989, 7040, 7091, 7142,
	7189, 7232, 7275, 7317, 7360, 7403, 7445, 7488, 7531, 7573,
	7616, 7659,
}

const (
	locScale          = 512 // Q9
	locSaturated      = 7679
	binToLocFirstBin  = 6
	binToLocTotalBins = 128
)

func defaultBinToLocMap() []float64 {
	m := make([]float64, binToLocTotalBins)
	for i := range m {
		switch {
		case i < binToLocFirstBin:
			m[i] = 0
		case i-binToLocFirstBin < len(defaultBinLocations):
			m[i] = defaultBinLocations[i-binToLocFirstBin] / locScale
		default:
			m[i] = locSaturated / locScale
		}
	}
	return m
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// DefaultConfig returns the reference F120 parameter set
func DefaultConfig() *Config {
	const (
		fs      = 17400.0
		decFact = 8
		nChan   = 15
	)

	envCoefs := make([]float64, len(defaultEnvCoefs))
	for i, c := range defaultEnvCoefs {
		envCoefs[i] = c / (1 << 16)
	}

	pairs := make([]int, nChan+1)
	for i := range pairs {
		pairs[i] = i
	}

	return &Config{
		// left channel; set 0 to average all channels
		Input:    audio.LoadConfig{Channel: 1},
		Strategy: Strategy{
			Fs:         fs,
			NFft:       256,
			NHop:       20,
			NChan:      nChan,
			StartBin:   6,
			NBinLims:   []int{2, 2, 1, 2, 2, 2, 3, 4, 4, 5, 6, 7, 8, 10, 56},
			PulseWidth: 18,
		},
		HumNotch: HumNotchConfig{
			Enabled:   false,
			Frequency: 0,
			Harmonics: 4,
			Q:         10,
		},
		PreEmphasis: PreEmphasisConfig{
			Num: []float64{.7688, -1.5376, .7688},
			Den: []float64{1, -1.5299, .5453},
		},
		Agc: AgcConfig{
			KneePt:        4.476,
			CompRatio:     12,
			TauRelFast:    poleToTau(decFact, fs, .9901),
			TauAttFast:    poleToTau(decFact, fs, .25),
			TauRelSlow:    poleToTau(decFact, fs, .9988),
			TauAttSlow:    poleToTau(decFact, fs, .9967),
			MaxHold:       1305,
			G0:            6.908,
			FastThreshRel: 8,
			CSlowInit:     0.5e-3,
			CFastInit:     0.5e-3,
			ControlMode:   ControlModeNaida,
			ClipMode:      ClipModeLimit,
			DecFact:       decFact,
			EnvBufLen:     32,
			GainBufLen:    16,
			EnvCoefs:      envCoefs,
		},
		Filterbank: FilterbankConfig{
			CombineDcNy:         false,
			CompensateFftLength: false,
			IncludeNyquistBin:   false,
		},
		Hilbert: HilbertConfig{
			OutputOffset:     0,
			OutputLowerBound: 0,
			OutputUpperBound: math.Inf(1),
		},
		Energy: EnergyConfig{
			GainDomain: GainDomainLinear,
		},
		NoiseReduction: NoiseReductionConfig{
			GainDomain:         GainDomainLog2,
			TauSpeech:          .0258,
			TauNoise:           .219,
			ThreshHold:         3,
			DurHold:            1.6,
			MaxAtt:             -12,
			SnrFloor:           -2,
			SnrCeil:            45,
			SnrSlope:           6.5,
			SlopeFact:          0.2,
			NoiseEstDecimation: 1,
			EnableContinuous:   false,
			InitState: NoiseInitState{
				VS: filled(nChan, noiseFloorDB),
				VN: filled(nChan, noiseFloorDB),
			},
		},
		Peak: PeakConfig{
			BinToLocMap: defaultBinToLocMap(),
		},
		Steering: SteeringConfig{
			NDiscreteSteps: 9,
			SteeringRange:  1.0,
		},
		Carrier: CarrierConfig{
			FModOn:        .5,
			FModOff:       1.0,
			MaxModDepth:   1.0,
			DeltaPhaseMax: 0.5,
		},
		Mapper: MapperConfig{
			MapM:           filled(nChan+1, 500),
			MapT:           filled(nChan+1, 50),
			MapIdr:         filled(nChan+1, 60),
			MapGain:        filled(nChan+1, 0),
			MapClip:        filled(nChan+1, 2048),
			MapSat:         13.5,
			ChanToElecPair: pairs,
			CarrierMode:    CarrierModeModulated,
		},
		Electrodogram: ElectrodogramConfig{
			CathodicFirst: true,
			ChannelOrder:  []int{1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15, 4, 8, 12}, // DO NOT CHANGE
			OutputFs:      0, // DO NOT CHANGE, derived from the pulse width
		},
	}
}

// LoadConfig reads YAML overrides from path on top of DefaultConfig and validates the result
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes YAML overrides from r on top of DefaultConfig.
// Overrides of immutable parameters are rejected by Validate.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkImmutable rejects any change to parameters fixed by device compatibility
func checkImmutable(cfg, ref *Config) error {
	var errs []error
	if cfg.Strategy.NFft != ref.Strategy.NFft {
		errs = append(errs, configErrorf(StageFFT, "strategy.n_fft", "immutable, must be %d (got %d)", ref.Strategy.NFft, cfg.Strategy.NFft))
	}
	if cfg.Strategy.NChan != ref.Strategy.NChan {
		errs = append(errs, configErrorf(StageFFT, "strategy.n_chan", "immutable, must be %d (got %d)", ref.Strategy.NChan, cfg.Strategy.NChan))
	}
	if cfg.Strategy.PulseWidth != ref.Strategy.PulseWidth {
		errs = append(errs, configErrorf(StageElectrodogram, "strategy.pulse_width", "immutable, must be %g (got %g)", ref.Strategy.PulseWidth, cfg.Strategy.PulseWidth))
	}
	if !slices.Equal(cfg.Electrodogram.ChannelOrder, ref.Electrodogram.ChannelOrder) {
		errs = append(errs, configErrorf(StageElectrodogram, "electrodogram.channel_order", "immutable, must be %v", ref.Electrodogram.ChannelOrder))
	}
	if err := checkOutputFs(cfg.Electrodogram.OutputFs, ref.Strategy.PulseRate()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkOutputFs(outputFs, derived float64) error {
	if outputFs == 0 || math.Abs(outputFs-derived) <= derived*1e-6 {
		return nil
	}
	return configErrorf(StageElectrodogram, "electrodogram.output_fs", "immutable, derived from the pulse width as %.2f Hz (got %g)", derived, outputFs)
}

func oneOf(v string, valid ...string) bool {
	return slices.Contains(valid, v)
}

// Validate checks the whole configuration, including the device-fixed
// parameters, and returns every violation found, joined
func (c *Config) Validate() error {
	var errs []error
	add := func(stage StageID, param, format string, args ...interface{}) {
		errs = append(errs, configErrorf(stage, param, format, args...))
	}

	if c.Input.Channel < 0 {
		add(StageReadWav, "input.channel", "must not be negative")
	}
	if c.Input.TStart < 0 || c.Input.TEnd < 0 || (c.Input.TEnd > 0 && c.Input.TEnd <= c.Input.TStart) {
		add(StageReadWav, "input.t_end", "range [%g, %g] is empty", c.Input.TStart, c.Input.TEnd)
	}

	s := c.Strategy
	if s.Fs <= 0 {
		add(StageReadWav, "strategy.fs", "must be positive")
	}
	if s.NFft <= 0 {
		add(StageFFT, "strategy.n_fft", "must be positive")
	}
	if s.NHop <= 0 || s.NHop > s.NFft {
		add(StageWinBuf, "strategy.n_hop", "must be in [1, n_fft], got %d", s.NHop)
	}
	if s.PulseWidth <= 0 {
		add(StageElectrodogram, "strategy.pulse_width", "must be positive")
	}
	if len(s.NBinLims) != s.NChan {
		add(StageFFT, "strategy.n_bin_lims", "has %d groups for %d channels", len(s.NBinLims), s.NChan)
	}
	binTotal := s.StartBin
	for i, n := range s.NBinLims {
		if n < 1 {
			add(StageFFT, "strategy.n_bin_lims", "group %d is empty", i+1)
		}
		binTotal += n
	}
	if s.StartBin < 0 {
		add(StageFFT, "strategy.start_bin", "must not be negative")
	}
	available := s.NumBins(c.Filterbank.IncludeNyquistBin)
	if binTotal > available {
		add(StageFFT, "strategy.n_bin_lims", "bin groups end at bin %d but only %d bins are available", binTotal, available)
	}

	if c.HumNotch.Enabled {
		if c.HumNotch.Frequency < 0 || c.HumNotch.Frequency >= s.Fs/2 {
			add(StageHumNotch, "hum_notch.frequency", "must be in [0, fs/2)")
		}
		if c.HumNotch.Harmonics < 1 {
			add(StageHumNotch, "hum_notch.harmonics", "must be at least 1")
		}
		if c.HumNotch.Q <= 0 {
			add(StageHumNotch, "hum_notch.q", "must be positive")
		}
	}

	if len(c.PreEmphasis.Num) == 0 || len(c.PreEmphasis.Den) == 0 || c.PreEmphasis.Den[0] == 0 {
		add(StagePreEmphasis, "pre_emphasis", "needs numerator and denominator with a non-zero leading denominator term")
	}

	a := c.Agc
	if !oneOf(a.ControlMode, ControlModeNaida, ControlModeSimple) {
		add(StageAGC, "agc.control_mode", "unknown mode %q (valid: naida, simple)", a.ControlMode)
	}
	if !oneOf(a.ClipMode, ClipModeLimit, ClipModeNone) {
		add(StageAGC, "agc.clip_mode", "unknown mode %q (valid: limit, none)", a.ClipMode)
	}
	if a.DecFact < 1 {
		add(StageAGC, "agc.dec_fact", "must be at least 1")
	}
	if a.EnvBufLen != len(a.EnvCoefs) {
		add(StageAGC, "agc.env_coefs", "has %d taps, env_buf_len is %d", len(a.EnvCoefs), a.EnvBufLen)
	}
	if a.GainBufLen < 0 || a.GainBufLen > a.EnvBufLen {
		add(StageAGC, "agc.gain_buf_len", "must be in [0, env_buf_len]")
	}
	if a.TauAttFast <= 0 || a.TauRelFast <= 0 || a.TauAttSlow <= 0 || a.TauRelSlow <= 0 {
		add(StageAGC, "agc.tau", "time constants must be positive")
	}
	if a.CompRatio < 1 {
		add(StageAGC, "agc.comp_ratio", "must be at least 1")
	}
	if a.MaxHold < 0 {
		add(StageAGC, "agc.max_hold", "must not be negative")
	}
	if a.CSlowInit <= 0 || a.CFastInit <= 0 {
		add(StageAGC, "agc.c_init", "initial envelopes must be positive")
	}

	if n := len(c.WinBuf.BufOpt); n != 0 && n != s.NFft-s.NHop {
		add(StageWinBuf, "win_buf.buf_opt", "has %d samples, want %d", n, s.NFft-s.NHop)
	}

	if c.Hilbert.OutputLowerBound > c.Hilbert.OutputUpperBound {
		add(StageHilbert, "hilbert.output_lower_bound", "exceeds output_upper_bound")
	}

	if !oneOf(c.Energy.GainDomain, GainDomainLinear, GainDomainLog2) {
		add(StageEnergy, "energy.gain_domain", "unknown domain %q (valid: linear, log2)", c.Energy.GainDomain)
	}

	nr := c.NoiseReduction
	if nr.GainDomain != GainDomainLog2 {
		// the mask is added to the log2 Hilbert envelope
		add(StageNoiseReduction, "noise_reduction.gain_domain", "must be log2 to combine with the envelope, got %q", nr.GainDomain)
	}
	if nr.TauSpeech <= 0 || nr.TauNoise <= 0 {
		add(StageNoiseReduction, "noise_reduction.tau", "time constants must be positive")
	}
	if nr.DurHold < 0 {
		add(StageNoiseReduction, "noise_reduction.dur_hold", "must not be negative")
	}
	if nr.MaxAtt > 0 {
		add(StageNoiseReduction, "noise_reduction.max_att", "must not be positive")
	}
	if nr.SnrCeil <= nr.SnrFloor {
		add(StageNoiseReduction, "noise_reduction.snr_ceil", "must exceed snr_floor")
	}
	if nr.SnrSlope*nr.SlopeFact <= 0 {
		add(StageNoiseReduction, "noise_reduction.snr_slope", "snr_slope * slope_fact must be positive")
	}
	if nr.NoiseEstDecimation < 1 {
		add(StageNoiseReduction, "noise_reduction.noise_est_decimation", "must be at least 1")
	}
	if n := len(nr.InitState.VS); n != 0 && n != s.NChan {
		add(StageNoiseReduction, "noise_reduction.init_state.v_s", "has %d entries for %d channels", n, s.NChan)
	}
	if n := len(nr.InitState.VN); n != 0 && n != s.NChan {
		add(StageNoiseReduction, "noise_reduction.init_state.v_n", "has %d entries for %d channels", n, s.NChan)
	}

	if len(c.Peak.BinToLocMap) < available {
		add(StagePeakLocator, "peak.bin_to_loc_map", "has %d entries, need %d", len(c.Peak.BinToLocMap), available)
	}

	if c.Steering.NDiscreteSteps < 2 {
		add(StageSteering, "steering.n_discrete_steps", "must be at least 2")
	}
	if c.Steering.SteeringRange <= 0 || c.Steering.SteeringRange > 1 {
		add(StageSteering, "steering.steering_range", "must be in (0, 1]")
	}

	cr := c.Carrier
	if cr.FModOn < 0 || cr.FModOn >= cr.FModOff {
		add(StageCarrier, "carrier.f_mod_on", "must be in [0, f_mod_off)")
	}
	if cr.DeltaPhaseMax <= 0 || cr.DeltaPhaseMax > 0.5 {
		add(StageCarrier, "carrier.delta_phase_max", "must be in (0, 0.5]")
	}
	if cr.MaxModDepth < 0 || cr.MaxModDepth > 1 {
		add(StageCarrier, "carrier.max_mod_depth", "must be in [0, 1]")
	}

	m := c.Mapper
	nElec := s.NumElectrodes()
	for name, arr := range map[string][]float64{
		"mapper.map_m": m.MapM, "mapper.map_t": m.MapT, "mapper.map_idr": m.MapIdr,
		"mapper.map_gain": m.MapGain, "mapper.map_clip": m.MapClip,
	} {
		if len(arr) < nElec {
			add(StageMapping, name, "has %d entries for %d electrodes", len(arr), nElec)
		}
	}
	if len(m.MapM) >= nElec && len(m.MapT) >= nElec && len(m.MapIdr) >= nElec && len(m.MapClip) >= nElec {
		for e := 0; e < nElec; e++ {
			if m.MapM[e] < m.MapT[e] {
				add(StageMapping, "mapper.map_m", "electrode %d: M level %g below T level %g", e+1, m.MapM[e], m.MapT[e])
			}
			if m.MapIdr[e] <= 0 {
				add(StageMapping, "mapper.map_idr", "electrode %d: must be positive", e+1)
			}
			if m.MapClip[e] < 0 {
				add(StageMapping, "mapper.map_clip", "electrode %d: must not be negative", e+1)
			}
		}
	}
	if len(m.ChanToElecPair) < s.NChan {
		add(StageMapping, "mapper.chan_to_elec_pair", "has %d entries for %d channels", len(m.ChanToElecPair), s.NChan)
	} else {
		for ch := 0; ch < s.NChan; ch++ {
			if p := m.ChanToElecPair[ch]; p < 0 || p+1 >= nElec {
				add(StageMapping, "mapper.chan_to_elec_pair", "channel %d: pair %d has no electrode above it", ch+1, p)
			}
		}
	}
	if m.CarrierMode != CarrierModeConstant && m.CarrierMode != CarrierModeModulated {
		add(StageMapping, "mapper.carrier_mode", "unknown mode %d (valid: 0, 1)", m.CarrierMode)
	}

	if !isPermutation(c.Electrodogram.ChannelOrder, s.NChan) {
		add(StageElectrodogram, "electrodogram.channel_order", "must be a permutation of 1..%d", s.NChan)
	}
	if err := checkImmutable(c, DefaultConfig()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 1 || v > n || seen[v-1] {
			return false
		}
		seen[v-1] = true
	}
	return true
}
