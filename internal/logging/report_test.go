package logging

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/f120/internal/processor"
	"github.com/linuxmatters/f120/internal/validate"
)

// processTone codes 0.5s of a 2039 Hz tone, the centre of FFT bin 30
func processTone(t *testing.T) (*processor.Config, *processor.Result) {
	t.Helper()
	cfg := processor.DefaultConfig()
	fs := cfg.Strategy.Fs
	f0 := 30 * fs / float64(cfg.Strategy.NFft)
	x := make([]float64, int(0.5*fs))
	for i := range x {
		x[i] = 0.1 * math.Sin(2*math.Pi*f0*float64(i)/fs)
	}
	res, err := processor.Process(x, cfg, processor.Options{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return cfg, res
}

func TestReportPath(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"/tmp/tone-elgram.parquet", "/tmp/tone-elgram.log"},
		{"speech-elgram", "speech-elgram.log"},
	}
	for _, tt := range tests {
		if got := ReportPath(tt.output); got != tt.want {
			t.Errorf("ReportPath(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{12500 * time.Microsecond, "12.5ms"},
		{1500 * time.Millisecond, "1.5s"},
		{3*time.Minute + 7*time.Second, "3m 7s"},
		{2*time.Hour + 5*time.Minute + 1*time.Second, "2h 5m 1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSummariseElectrodes(t *testing.T) {
	cfg, res := processTone(t)
	stats := SummariseElectrodes(res, cfg)

	if len(stats) != 16 {
		t.Fatalf("len = %d, want 16", len(stats))
	}
	best := 0
	for e, st := range stats {
		if st.Charge > stats[best].Charge {
			best = e
		}
		if st.Pulses > 0 && (st.Mean <= 0 || st.Peak < st.Mean) {
			t.Errorf("electrode %d: mean %v, peak %v", e, st.Mean, st.Peak)
		}
	}
	if best != 10 {
		t.Errorf("most charge on electrode %d, want 10", best)
	}
}

func TestGenerateReport(t *testing.T) {
	cfg, res := processTone(t)
	out := filepath.Join(t.TempDir(), "tone-elgram.parquet")

	start := time.Now()
	rep, err := validate.Check(res.Electrodogram, res.Duration(cfg.Strategy.Fs), cfg.Strategy.NumElectrodes(), nil,
		validate.DefaultConfig(cfg.Strategy))
	if err != nil {
		t.Fatalf("validate.Check() error = %v", err)
	}

	err = GenerateReport(ReportData{
		InputPath:  "/recordings/tone.wav",
		OutputPath: out,
		StartTime:  start,
		EndTime:    start.Add(200 * time.Millisecond),
		Config:     cfg,
		Result:     res,
		Validation: rep,
	})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	data, err := os.ReadFile(ReportPath(out))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	report := string(data)

	for _, want := range []string{
		"F120 Electrodogram Report",
		"File: tone.wav",
		"Processing Summary",
		"Dual-loop AGC:",
		"Strategy",
		"15 on 16 electrodes",
		"Hum notch:      disabled",
		"Channels",
		"Ch 15",
		"Electrodes",
		"Electrodogram: 16 electrodes",
		"Electrodogram: tone-elgram.parquet",
		"Validation:    ✓",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}

	for _, line := range strings.Split(report, "\n") {
		if strings.HasPrefix(line, "E 10 ") && !strings.Contains(line, "dominant") {
			t.Errorf("electrode 10 not marked dominant: %q", line)
		}
	}
}

func TestWriteOutputValidationFailure(t *testing.T) {
	var buf bytes.Buffer
	writeOutput(&buf, ReportData{
		OutputPath:  "x-elgram.parquet",
		ValidateErr: errors.New("electrodogram length does not match the source"),
	})
	if !strings.Contains(buf.String(), "⚠ electrodogram length") {
		t.Errorf("validation failure not reported:\n%s", buf.String())
	}

	buf.Reset()
	writeOutput(&buf, ReportData{
		OutputPath: "x-elgram.parquet",
		Validation: &validate.Report{Compared: true, Electrodes: 16, SimilarChannels: 12, TooSimilar: true, Save: true},
	})
	if !strings.Contains(buf.String(), "12 of 16 electrodes similar (too similar, saved anyway)") {
		t.Errorf("reference comparison not reported:\n%s", buf.String())
	}
}
