package processor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// AgcResult is the output of the dual-loop AGC
type AgcResult struct {
	Wav     []float64 // gain-applied audio, same length as the input
	SmpGain []float64 // linear gain applied to every output sample
}

// agcState tracks the two envelope detectors and the hold counter
type agcState struct {
	cFast, cSlow float64
	hold         int
}

// agcPoles are the per-block smoothing coefficients of both detectors
type agcPoles struct {
	attFast, relFast float64
	attSlow, relSlow float64
}

// tauToPole converts a time constant in ms to a one-pole coefficient
// applied once per decFact samples.
func tauToPole(tauMs float64, decFact int, fs float64) float64 {
	return math.Exp(-float64(decFact) / (fs * tauMs / 1000))
}

func newAgcPoles(cfg AgcConfig, fs float64) agcPoles {
	return agcPoles{
		attFast: tauToPole(cfg.TauAttFast, cfg.DecFact, fs),
		relFast: tauToPole(cfg.TauRelFast, cfg.DecFact, fs),
		attSlow: tauToPole(cfg.TauAttSlow, cfg.DecFact, fs),
		relSlow: tauToPole(cfg.TauRelSlow, cfg.DecFact, fs),
	}
}

// agcEnvelope filters the rectified samples in [end-len(coefs), end).
// Samples outside the waveform count as zero.
func agcEnvelope(x []float64, end int, coefs []float64) float64 {
	start := end - len(coefs)
	env := 0.0
	for i, c := range coefs {
		n := start + i
		if n < 0 || n >= len(x) {
			continue
		}
		env += c * math.Abs(x[n])
	}
	return math.Max(env, 0)
}

// track moves a detector towards env using the attack pole on rising
// input and the release pole otherwise.
func track(c, env, att, rel float64) float64 {
	if env > c {
		return env + att*(c-env)
	}
	return env + rel*(c-env)
}

// StaticGain evaluates the AGC compression curve: constant gain G0 (natural
// log) below the knee, CompRatio:1 compression above it. Returns linear gain.
func StaticGain(ctrl float64, cfg AgcConfig) float64 {
	level := math.Log(math.Max(ctrl, math.SmallestNonzeroFloat64)) + cfg.G0
	gainLog := cfg.G0
	if level > cfg.KneePt {
		gainLog -= (level - cfg.KneePt) * (1 - 1/cfg.CompRatio)
	}
	return math.Exp(gainLog)
}

// LimitCeiling is the output peak the static curve gives a full-scale sine:
// the envelope FIR settles at sum(EnvCoefs) times the mean rectified level
// 2/pi. Limit mode clips the output here, which catches the attack overshoot
// at loud onsets while leaving material below full scale untouched.
func LimitCeiling(cfg AgcConfig) float64 {
	c := floats.Sum(cfg.EnvCoefs) * 2 / math.Pi
	if c <= 0 {
		return math.Inf(1)
	}
	return StaticGain(c, cfg)
}

// control picks the envelope that drives the gain for this block
func (s *agcState) control(cfg AgcConfig) float64 {
	if cfg.ControlMode == ControlModeSimple {
		return math.Max(s.cFast, s.cSlow)
	}

	// naida: the fast detector takes over on sudden onsets and holds for MaxHold samples
	if 20*math.Log10(s.cFast/s.cSlow) > cfg.FastThreshRel {
		s.hold = cfg.MaxHold
		return s.cFast
	}
	if s.hold > 0 {
		s.hold -= cfg.DecFact
		return math.Max(s.cFast, s.cSlow)
	}
	return s.cSlow
}

// DualLoopAGC compresses the waveform with a fast and a slow envelope
// detector. The gain is updated every DecFact samples and interpolated
// linearly in between; the audio is delayed by EnvBufLen-GainBufLen samples
// to line up with the envelope window.
func DualLoopAGC(wav []float64, fs float64, cfg AgcConfig) AgcResult {
	nSamp := len(wav)
	res := AgcResult{
		Wav:     make([]float64, nSamp),
		SmpGain: make([]float64, nSamp),
	}
	if nSamp == 0 {
		return res
	}

	poles := newAgcPoles(cfg, fs)
	state := agcState{cFast: cfg.CFastInit, cSlow: cfg.CSlowInit}
	prevGain := StaticGain(cfg.CSlowInit, cfg)

	d := cfg.DecFact
	for start := 0; start < nSamp; start += d {
		end := start + d
		env := agcEnvelope(wav, end, cfg.EnvCoefs)

		state.cFast = track(state.cFast, env, poles.attFast, poles.relFast)
		state.cSlow = track(state.cSlow, env, poles.attSlow, poles.relSlow)
		gain := StaticGain(state.control(cfg), cfg)

		for j := 0; j < d && start+j < nSamp; j++ {
			res.SmpGain[start+j] = prevGain + (gain-prevGain)*float64(j+1)/float64(d)
		}
		prevGain = gain
	}

	delay := cfg.EnvBufLen - cfg.GainBufLen
	limit := LimitCeiling(cfg)
	for n := range res.Wav {
		src := n - delay
		if src < 0 {
			continue
		}
		y := wav[src] * res.SmpGain[n]
		if cfg.ClipMode == ClipModeLimit {
			y = math.Max(-limit, math.Min(limit, y))
		}
		res.Wav[n] = y
	}
	return res
}
