package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/linuxmatters/f120/internal/processor"
	"github.com/linuxmatters/f120/internal/validate"
)

// dBPerLog2 converts log2 units to dB
var dBPerLog2 = 20 * math.Log10(2)

// ReportData contains everything needed to write a run report
type ReportData struct {
	InputPath   string
	OutputPath  string // electrodogram file; the report is written beside it
	VocoderPath string // empty when no audio was rendered
	StartTime   time.Time
	EndTime     time.Time
	Config      *processor.Config
	Result      *processor.Result
	Validation  *validate.Report
	ValidateErr error
}

// ReportPath returns the report filename for an output: tone-elgram.parquet -> tone-elgram.log
func ReportPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".log"
}

// GenerateReport writes the run report beside the electrodogram output.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - per-stage timings
// 3. Strategy - the configuration the run used
// 4. Channels - per-channel envelope, noise reduction, peak and steering summary
// 5. Electrodes - per-electrode pulse statistics
// 6. Recording Tips - advice on the source recording, when any rule fires
// 7. Output - files written and the validation outcome
func GenerateReport(data ReportData) error {
	f, err := os.Create(ReportPath(data.OutputPath))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	writeReport(f, data)
	return nil
}

func writeReport(w io.Writer, data ReportData) {
	writeReportHeader(w, data)
	writeProcessingSummary(w, data)
	if data.Config != nil {
		writeStrategy(w, data.Config, data.Result)
	}
	if data.Result != nil && data.Config != nil {
		writeChannelTable(w, data.Result, data.Config)
		writeElectrodeTable(w, data.Result, data.Config)
		writeRecordingTips(w, data.Result, data.Config)
	}
	writeOutput(w, data)
}

// writeSection writes a section header with a dashed underline of the same length
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", minutes/60, minutes%60, seconds)
}

// sourceDuration returns the coded duration in seconds
func sourceDuration(data ReportData) float64 {
	if data.Result == nil || data.Config == nil {
		return 0
	}
	return data.Result.Duration(data.Config.Strategy.Fs)
}

func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "F120 Electrodogram Report")
	fmt.Fprintln(w, "=========================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(sourceDuration(data)*float64(time.Second))))
	if data.Result != nil && data.Result.SourceFs > 0 && data.Config != nil {
		fmt.Fprintf(w, "Resampled: %.0f Hz -> %.0f Hz\n", data.Result.SourceFs, data.Config.Strategy.Fs)
	}
	fmt.Fprintln(w, "")
}

func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	if data.Result != nil {
		stages := append([]processor.StageID{processor.StageReadWav}, processor.PipelineOrder...)
		for _, id := range stages {
			d, ok := data.Result.Timings[id]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%-20s %s\n", id.Name()+":", formatDuration(d))
		}
	}

	total := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "%-20s %s", "Total:", formatDuration(total))
	if dur := sourceDuration(data); dur > 0 && total > 0 {
		fmt.Fprintf(w, " (%.0fx real-time)", dur/total.Seconds())
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

func enabledString(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func writeStrategy(w io.Writer, cfg *processor.Config, res *processor.Result) {
	writeSection(w, "Strategy")
	s := cfg.Strategy

	fmt.Fprintf(w, "Audio rate:     %.0f Hz\n", s.Fs)
	fmt.Fprintf(w, "Analysis:       %d-point FFT, hop %d (%.1f frames/s)\n", s.NFft, s.NHop, s.FrameRate())
	fmt.Fprintf(w, "Channels:       %d on %d electrodes, bins %d-%d\n",
		s.NChan, s.NumElectrodes(), s.StartBin, s.ChannelBins()[len(s.NBinLims)-1][1]-1)
	fmt.Fprintf(w, "Pulses:         %.1f µs phases, %.1f Hz per channel\n", s.PulseWidth, 1/s.FtFrameDuration())

	hum := enabledString(cfg.HumNotch.Enabled)
	if res != nil && len(res.HumFreq) > 0 {
		parts := make([]string, len(res.HumFreq))
		for i, f := range res.HumFreq {
			parts[i] = formatMetric(f, 0)
		}
		hum += fmt.Sprintf(" (%s Hz)", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "Hum notch:      %s\n", hum)
	fmt.Fprintf(w, "AGC:            %s control, %s clipping, knee %.2f, ratio %.0f:1\n",
		cfg.Agc.ControlMode, cfg.Agc.ClipMode, cfg.Agc.KneePt, cfg.Agc.CompRatio)
	fmt.Fprintf(w, "Noise reduction: max attenuation %s dB, hold %.1fs\n",
		formatMetricSigned(cfg.NoiseReduction.MaxAtt, 0), cfg.NoiseReduction.DurHold)
	fmt.Fprintf(w, "Steering:       %d steps over range %.2f\n", cfg.Steering.NDiscreteSteps, cfg.Steering.SteeringRange)

	carrier := "modulated"
	if cfg.Mapper.CarrierMode == processor.CarrierModeConstant {
		carrier = "constant"
	}
	fmt.Fprintf(w, "Carrier:        %s, max depth %.2f\n", carrier, cfg.Carrier.MaxModDepth)
	fmt.Fprintln(w, "")
}

func rowMean(m *mat.Dense, r int) float64 {
	if m == nil {
		return math.NaN()
	}
	return stat.Mean(m.RawRowView(r), nil)
}

// dominantStep returns the most frequent quantised upper steering weight of channel c
func dominantStep(weights *mat.Dense, c, steps int) int {
	if weights == nil || steps < 2 {
		return 0
	}
	counts := make([]int, steps)
	for _, hi := range weights.RawRowView(2*c + 1) {
		q := int(math.Round(hi * float64(steps-1)))
		counts[max(0, min(steps-1, q))]++
	}
	best := 0
	for q, n := range counts {
		if n > counts[best] {
			best = q
		}
	}
	return best
}

func writeChannelTable(w io.Writer, res *processor.Result, cfg *processor.Config) {
	writeSection(w, "Channels")
	s := cfg.Strategy
	binHz := s.Fs / float64(s.NFft)

	table := NewMetricTable("Band Hz", "Envelope", "NR dB", "Peak Hz", "Location", "Step", "Mean µA", "Max µA")
	for c, bins := range s.ChannelBins() {
		band := fmt.Sprintf("%.0f-%.0f", (float64(bins[0])-0.5)*binHz, (float64(bins[1])-0.5)*binHz)

		nrDB := rowMean(res.GainNr, c)
		if cfg.NoiseReduction.GainDomain == processor.GainDomainLog2 {
			nrDB *= dBPerLog2
		}

		meanAmp, maxAmp := math.NaN(), math.NaN()
		if res.AmpWords != nil {
			lo, hi := res.AmpWords.RawRowView(2*c), res.AmpWords.RawRowView(2*c+1)
			sum := 0.0
			maxAmp = 0
			for k := range lo {
				a := lo[k] + hi[k]
				sum += a
				maxAmp = math.Max(maxAmp, a)
			}
			if len(lo) > 0 {
				meanAmp = sum / float64(len(lo))
			}
		}

		table.AddRow(fmt.Sprintf("Ch %d", c+1), []string{
			band,
			formatMetric(rowMean(res.HilbertMod, c), 2),
			formatMetricFloor(nrDB, cfg.NoiseReduction.MaxAtt, 1),
			formatMetric(rowMean(res.PeakFreq, c), 0),
			formatMetric(rowMean(res.PeakLoc, c), 2),
			fmt.Sprintf("%d/%d", dominantStep(res.SteerWeights, c, cfg.Steering.NDiscreteSteps), cfg.Steering.NDiscreteSteps-1),
			formatMetric(meanAmp, 1),
			formatMetric(maxAmp, 1),
		}, "", "")
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

// ElectrodeStats summarises the pulses delivered on one electrode
type ElectrodeStats struct {
	Pulses int
	Mean   float64 // µA, over delivered pulses
	Peak   float64 // µA
	Charge float64 // sum of phase amplitudes, µA·phases
}

// SummariseElectrodes computes per-electrode statistics of an electrodogram
func SummariseElectrodes(res *processor.Result, cfg *processor.Config) []ElectrodeStats {
	eg := res.Electrodogram
	stats := make([]ElectrodeStats, cfg.Strategy.NumElectrodes())
	for _, p := range eg.Pulses(cfg.Mapper.ChanToElecPair, cfg.Electrodogram.ChannelOrder) {
		if p.Amplitude == 0 || p.Electrode < 0 || p.Electrode >= len(stats) {
			continue
		}
		st := &stats[p.Electrode]
		st.Pulses++
		st.Charge += 2 * p.Amplitude
		st.Peak = math.Max(st.Peak, p.Amplitude)
	}
	for i := range stats {
		if stats[i].Pulses > 0 {
			stats[i].Mean = stats[i].Charge / float64(2*stats[i].Pulses)
		}
	}
	return stats
}

func writeElectrodeTable(w io.Writer, res *processor.Result, cfg *processor.Config) {
	writeSection(w, "Electrodes")
	stats := SummariseElectrodes(res, cfg)

	total, dominant := 0.0, -1
	for e, st := range stats {
		total += st.Charge
		if st.Charge > 0 && (dominant < 0 || st.Charge > stats[dominant].Charge) {
			dominant = e
		}
	}

	table := NewMetricTable("Pulses", "Mean µA", "Peak µA", "Charge")
	for e, st := range stats {
		note := ""
		if e == dominant {
			note = "dominant"
		}
		share := math.NaN()
		if total > 0 {
			share = st.Charge / total
		}
		table.AddRow(fmt.Sprintf("E %d", e), []string{
			fmt.Sprintf("%d", st.Pulses),
			formatMetric(st.Mean, 1),
			formatMetric(st.Peak, 1),
			formatPercent(share, 1),
		}, "", note)
	}
	fmt.Fprint(w, table.String())

	if data := res.Electrodogram.Data; data != nil {
		nElec, nSamples := data.Dims()
		fmt.Fprintf(w, "\nElectrodogram: %d electrodes x %d samples at %s (%s)\n",
			nElec, nSamples, formatMetricWithUnit(res.Electrodogram.Fs, 1, "Hz"),
			formatDuration(time.Duration(res.Electrodogram.Duration()*float64(time.Second))))
	} else {
		fmt.Fprintln(w, "Electrodogram: empty")
	}
	fmt.Fprintln(w, "")
}

func writeRecordingTips(w io.Writer, res *processor.Result, cfg *processor.Config) {
	tips := GenerateRecordingTips(res, cfg)
	if len(tips) == 0 {
		return
	}
	writeSection(w, "Recording Tips")
	for i, tip := range tips {
		fmt.Fprintf(w, "%d. %s\n", i+1, wrapText(tip.Message, 76, "   "))
	}
	fmt.Fprintln(w, "")
}

func writeOutput(w io.Writer, data ReportData) {
	writeSection(w, "Output")
	fmt.Fprintf(w, "Electrodogram: %s\n", filepath.Base(data.OutputPath))
	if data.VocoderPath != "" {
		fmt.Fprintf(w, "Vocoded audio: %s\n", filepath.Base(data.VocoderPath))
	}

	v := data.Validation
	switch {
	case data.ValidateErr != nil:
		fmt.Fprintf(w, "Validation:    ⚠ %v\n", data.ValidateErr)
	case v == nil:
		fmt.Fprintln(w, "Validation:    skipped")
	default:
		fmt.Fprintf(w, "Validation:    ✓ length within %s of the source\n", formatPercent(v.LengthError, 2))
	}
	if v != nil && v.Compared {
		fmt.Fprintf(w, "Reference:     %d of %d electrodes similar", v.SimilarChannels, v.Electrodes)
		if v.TooSimilar {
			fmt.Fprint(w, " (too similar")
			if v.Save {
				fmt.Fprint(w, ", saved anyway")
			}
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w, "")
	}
}
