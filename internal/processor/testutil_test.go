package processor

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/linuxmatters/f120/internal/audio"
)

// testFs is the implant audio rate used by the default configuration
const testFs = 17400.0

// TestSignalOptions configures the synthetic signal to generate
type TestSignalOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   float64 // Sample rate (default: testFs)
	ToneFreq     float64 // Sine wave frequency in Hz (0 = no tone)
	ToneAmp      float64 // Linear tone amplitude
	NoiseAmp     float64 // Linear white noise amplitude (0 = no noise)
	SilenceGap   struct {
		Start    float64 // Start time of silence gap in seconds
		Duration float64 // Duration of silence gap in seconds
	}
}

// generateSignal creates a deterministic tone plus noise waveform
func generateSignal(opts TestSignalOptions) []float64 {
	if opts.SampleRate == 0 {
		opts.SampleRate = testFs
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 1.0
	}

	n := int(opts.DurationSecs * opts.SampleRate)
	silenceStart := int(opts.SilenceGap.Start * opts.SampleRate)
	silenceEnd := int((opts.SilenceGap.Start + opts.SilenceGap.Duration) * opts.SampleRate)

	// LCG from Numerical Recipes, deterministic across runs
	rngState := uint32(12345)
	nextRandom := func() float64 {
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}

	x := make([]float64, n)
	for i := range x {
		if opts.SilenceGap.Duration > 0 && i >= silenceStart && i < silenceEnd {
			continue
		}
		t := float64(i) / opts.SampleRate
		if opts.ToneFreq > 0 {
			x[i] += opts.ToneAmp * math.Sin(2*math.Pi*opts.ToneFreq*t)
		}
		if opts.NoiseAmp > 0 {
			x[i] += opts.NoiseAmp * nextRandom()
		}
	}
	return x
}

// writeTestWav writes the signal to a 16-bit WAV in a per-test temp dir
func writeTestWav(t *testing.T, name string, x []float64, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := audio.WriteWav(path, x, sampleRate); err != nil {
		t.Fatalf("failed to write WAV file: %v", err)
	}
	return path
}

// writeStereoWav interleaves two equal-length signals into a 16-bit stereo WAV
func writeStereoWav(t *testing.T, left, right []float64, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, 2*len(left))
	for i := range left {
		data[2*i] = int(math.Round(left[i] * math.MaxInt16))
		data[2*i+1] = int(math.Round(right[i] * math.MaxInt16))
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// rowMean averages one row of a matrix-like accessor over [from, to)
func rowMean(at func(i, j int) float64, row, from, to int) float64 {
	sum := 0.0
	for j := from; j < to; j++ {
		sum += at(row, j)
	}
	return sum / float64(to-from)
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
