// This file provides the terminal summary printed by --summary.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/f120/internal/processor"
)

// summaryBarWidth is the width of a full-scale bar in the electrode chart
const summaryBarWidth = 40

// DisplaySummary writes a compact view of a coded file: source details,
// input levels, the share of charge delivered per electrode as a bar chart
// (basal electrodes at the top) and recording tips.
func DisplaySummary(w io.Writer, inputPath string, res *processor.Result, cfg *processor.Config) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "ELECTRODOGRAM: %s\n", filepath.Base(inputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(res.Duration(cfg.Strategy.Fs)))
	if src := res.Source; src != nil {
		fmt.Fprintf(w, "Sample Rate: %d Hz (coded at %.0f Hz)\n", src.SampleRate, cfg.Strategy.Fs)
		fmt.Fprintf(w, "Channels:    %s, %d-bit\n", channelName(src.Channels), src.BitDepth)
	}
	fmt.Fprintln(w)

	lv := MeasureInput(res, cfg)
	writeAnalysisSection(w, "INPUT")
	fmt.Fprintf(w, "  Peak Level:     %s dBFS\n", formatMetricFloor(lv.PeakDBFS, -120, 1))
	fmt.Fprintf(w, "  RMS Level:      %s dBFS\n", formatMetricFloor(lv.RMSDBFS, -120, 1))
	if lv.HumFreq > 0 {
		fmt.Fprintf(w, "  Mains Hum:      %s at %.0f Hz\n", formatPercent(lv.HumRatio, 1), lv.HumFreq)
	}
	fmt.Fprintln(w)

	writeAnalysisSection(w, "ELECTRODES")
	stats := SummariseElectrodes(res, cfg)
	total, peak := 0.0, 0.0
	for _, st := range stats {
		total += st.Charge
		peak = max(peak, st.Charge)
	}
	for e := len(stats) - 1; e >= 0; e-- {
		st := stats[e]
		bar, share := "", 0.0
		if peak > 0 {
			bar = strings.Repeat("█", int(st.Charge/peak*summaryBarWidth+0.5))
			share = st.Charge / total
		}
		fmt.Fprintf(w, "  E%-2d |%-*s| %6s  %5d pulses\n", e, summaryBarWidth, bar, formatPercent(share, 1), st.Pulses)
	}
	fmt.Fprintln(w)

	if tips := GenerateRecordingTips(res, cfg); len(tips) > 0 {
		writeAnalysisSection(w, "RECORDING TIPS")
		for _, tip := range tips {
			fmt.Fprintf(w, "  • %s\n", wrapText(tip.Message, 64, "    "))
		}
		fmt.Fprintln(w)
	}
}

// writeAnalysisSection writes a section header for terminal output
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats seconds as "Xh Ym Zs", "Ym Zs" or "Z.Zs"
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}

// channelName returns a human-readable channel count
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
