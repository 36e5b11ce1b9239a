package logging

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linuxmatters/f120/internal/processor"
)

// RecordingTip is one piece of actionable advice about the source recording,
// derived from what the coding chain saw.
type RecordingTip struct {
	Priority int    // higher = more important (1-10)
	Message  string // human-readable advice (1-2 sentences)
	RuleID   string // e.g. "input_clipping"
}

// MaxRecordingTips is the maximum number of tips to return
const MaxRecordingTips = 5

const (
	clippingDBFS     = -0.1
	tooQuietDBFS     = -50.0
	humEnergyRatio   = 0.1
	saturatedShare   = 0.2
	noiseAttenuation = 0.5 // fraction of the maximum attenuation
)

// InputLevels summarises the waveform that was coded
type InputLevels struct {
	PeakDBFS float64
	RMSDBFS  float64
	HumFreq  float64 // strongest mains candidate, Hz
	HumRatio float64 // share of the signal energy at HumFreq
}

// goertzelPower returns the mean-square power of x at f
func goertzelPower(x []float64, f, fs float64) float64 {
	coeff := 2 * math.Cos(2*math.Pi*f/fs)
	var s1, s2 float64
	for _, v := range x {
		s1, s2 = v+coeff*s1-s2, s1
	}
	mag2 := s1*s1 + s2*s2 - coeff*s1*s2
	n := float64(len(x))
	return 2 * mag2 / (n * n)
}

// MeasureInput computes the levels of the coded waveform. Mains candidates
// are the configured hum frequency, or 50 and 60 Hz when it is automatic.
func MeasureInput(res *processor.Result, cfg *processor.Config) InputLevels {
	x := res.WavIn
	lv := InputLevels{PeakDBFS: math.Inf(-1), RMSDBFS: math.Inf(-1)}
	if len(x) == 0 {
		return lv
	}

	peak, sumSq := 0.0, 0.0
	for _, v := range x {
		peak = math.Max(peak, math.Abs(v))
		sumSq += v * v
	}
	meanSq := sumSq / float64(len(x))
	lv.PeakDBFS = 20 * math.Log10(peak)
	lv.RMSDBFS = 10 * math.Log10(meanSq)
	if meanSq == 0 {
		return lv
	}

	candidates := []float64{50, 60}
	if cfg.HumNotch.Frequency > 0 {
		candidates = []float64{cfg.HumNotch.Frequency}
	}
	for _, f := range candidates {
		if r := goertzelPower(x, f, cfg.Strategy.Fs) / meanSq; r > lv.HumRatio {
			lv.HumFreq, lv.HumRatio = f, r
		}
	}
	return lv
}

type tipRule func(*processor.Result, *processor.Config, InputLevels) *RecordingTip

// GenerateRecordingTips returns prioritised advice for improving the source recording
func GenerateRecordingTips(res *processor.Result, cfg *processor.Config) []RecordingTip {
	if res == nil || cfg == nil {
		return nil
	}
	lv := MeasureInput(res, cfg)

	rules := []tipRule{
		tipNoStimulation,
		tipInputClipping,
		tipInputTooQuiet,
		tipMainsHum,
		tipBackgroundNoise,
		tipEnvelopeSaturation,
		tipTooShort,
	}

	var tips []RecordingTip
	fired := make(map[string]bool)
	for _, rule := range rules {
		if tip := rule(res, cfg, lv); tip != nil {
			tips = append(tips, *tip)
			fired[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, fired)
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})
	if len(tips) > MaxRecordingTips {
		tips = tips[:MaxRecordingTips]
	}
	return tips
}

// applyExclusions drops tips made redundant by a more specific one
func applyExclusions(tips []RecordingTip, fired map[string]bool) []RecordingTip {
	var result []RecordingTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "input_too_quiet", "background_noise", "too_short":
			if fired["no_stimulation"] {
				continue
			}
		case "envelope_saturation":
			if fired["no_stimulation"] || fired["input_clipping"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxWidth:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return strings.Join(lines, "\n"+indent)
}

// tipNoStimulation fires when no pulse carries any current
func tipNoStimulation(res *processor.Result, _ *processor.Config, _ InputLevels) *RecordingTip {
	if res.AmpWords != nil {
		r, c := res.AmpWords.Dims()
		for i := 0; i < r; i++ {
			for _, a := range res.AmpWords.RawRowView(i)[:c] {
				if a > 0 {
					return nil
				}
			}
		}
	}
	return &RecordingTip{
		Priority: 10,
		Message:  "No stimulation was produced: every channel stayed below threshold level. Check the input channel and that the recording is not silent.",
		RuleID:   "no_stimulation",
	}
}

// tipInputClipping fires when the source reaches full scale
func tipInputClipping(_ *processor.Result, _ *processor.Config, lv InputLevels) *RecordingTip {
	if lv.PeakDBFS < clippingDBFS {
		return nil
	}
	return &RecordingTip{
		Priority: 9,
		Message: fmt.Sprintf("The recording peaks at %.1f dBFS and is probably clipped. Distortion products will be coded as spectral peaks; record with more headroom.",
			lv.PeakDBFS),
		RuleID: "input_clipping",
	}
}

// tipInputTooQuiet fires when the source RMS is far below the AGC knee
func tipInputTooQuiet(_ *processor.Result, _ *processor.Config, lv InputLevels) *RecordingTip {
	if lv.RMSDBFS >= tooQuietDBFS {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		Message: fmt.Sprintf("Input level is very low (%s dBFS RMS). The AGC holds its maximum gain and quiet detail falls below threshold; raise the recording level.",
			formatMetricFloor(lv.RMSDBFS, -120, 1)),
		RuleID: "input_too_quiet",
	}
}

// tipMainsHum fires when mains hum carries a large share of the energy and
// the notch was not used
func tipMainsHum(_ *processor.Result, cfg *processor.Config, lv InputLevels) *RecordingTip {
	if cfg.HumNotch.Enabled || lv.HumRatio < humEnergyRatio {
		return nil
	}
	return &RecordingTip{
		Priority: 8,
		Message: fmt.Sprintf("Mains hum at %.0f Hz carries %s of the signal energy. Rerun with --hum-notch, or fix the ground loop at source.",
			lv.HumFreq, formatPercent(math.Min(lv.HumRatio, 1), 0)),
		RuleID: "mains_hum",
	}
}

// tipBackgroundNoise fires when noise reduction attenuates most of the time
func tipBackgroundNoise(res *processor.Result, cfg *processor.Config, _ InputLevels) *RecordingTip {
	if res.GainNr == nil || cfg.NoiseReduction.MaxAtt >= 0 {
		return nil
	}
	r, c := res.GainNr.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for _, g := range res.GainNr.RawRowView(i)[:c] {
			sum += g
		}
	}
	meanDB := sum / float64(r*c)
	if cfg.NoiseReduction.GainDomain == processor.GainDomainLog2 {
		meanDB *= dBPerLog2
	}
	if meanDB > noiseAttenuation*cfg.NoiseReduction.MaxAtt {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		Message: fmt.Sprintf("Noise reduction attenuated the channels by %.1f dB on average. The background noise is high; record in a quieter room or closer to the source.",
			-meanDB),
		RuleID: "background_noise",
	}
}

// tipEnvelopeSaturation fires when channel envelopes sit at the mapping
// saturation level, so level changes no longer reach the electrodes
func tipEnvelopeSaturation(res *processor.Result, cfg *processor.Config, _ InputLevels) *RecordingTip {
	if res.HilbertMod == nil {
		return nil
	}
	r, c := res.HilbertMod.Dims()
	saturated, active := 0, 0
	for i := 0; i < r; i++ {
		for _, v := range res.HilbertMod.RawRowView(i)[:c] {
			if v > 0 {
				active++
			}
			if v >= cfg.Mapper.MapSat {
				saturated++
			}
		}
	}
	if active == 0 || float64(saturated)/float64(active) < saturatedShare {
		return nil
	}
	return &RecordingTip{
		Priority: 5,
		Message: fmt.Sprintf("%s of active channel envelopes reach the saturation level, so loud passages are coded at comfort level without contrast.",
			formatPercent(float64(saturated)/float64(active), 0)),
		RuleID: "envelope_saturation",
	}
}

// tipTooShort fires when the recording ends before noise reduction settles
func tipTooShort(res *processor.Result, cfg *processor.Config, _ InputLevels) *RecordingTip {
	dur := res.Duration(cfg.Strategy.Fs)
	settle := 2 * cfg.NoiseReduction.DurHold
	if dur >= settle {
		return nil
	}
	return &RecordingTip{
		Priority: 3,
		Message: fmt.Sprintf("The recording lasts %.2fs, shorter than the %.1fs the noise estimator needs to settle. Include some lead-in before the material of interest.",
			dur, settle),
		RuleID: "too_short",
	}
}
