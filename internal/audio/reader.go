// Package audio provides WAV file I/O and sample-rate conversion using go-audio
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; go-audio decodes integer PCM only
const wavFormatPCM = 1

var (
	ErrInvalidFile = errors.New("not a valid WAV file")
	ErrUnsupported = errors.New("unsupported WAV encoding")
	ErrEmpty       = errors.New("no samples to process")
)

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
}

// Source is a decoded WAV file reduced to one channel
type Source struct {
	Metadata
	Name    string    // file base name without extension
	Samples []float64 // full scale = ±1
	Channel int       // 0 = downmix of all channels, otherwise the 1-based channel used
}

// LoadConfig selects what part of a file is coded
type LoadConfig struct {
	Channel int     `yaml:"channel"` // 1-based; 0 averages all channels
	TStart  float64 `yaml:"t_start"` // seconds
	TEnd    float64 `yaml:"t_end"`   // seconds; 0 = end of file
}

// Load reads path, selects the channel, trims to [TStart, TEnd) and
// resamples to fs.
func Load(path string, cfg LoadConfig, fs float64) (*Source, error) {
	src, err := ReadWav(path, cfg.Channel)
	if err != nil {
		return nil, err
	}
	src.Samples, err = trim(src.Samples, float64(src.SampleRate), cfg.TStart, cfg.TEnd)
	if err != nil {
		return nil, err
	}
	if fs > 0 && fs != float64(src.SampleRate) {
		src.Samples = Resample(src.Samples, float64(src.SampleRate), fs)
	}
	return src, nil
}

func trim(x []float64, fs, tStart, tEnd float64) ([]float64, error) {
	if tStart < 0 || tEnd < 0 || (tEnd > 0 && tEnd <= tStart) {
		return nil, fmt.Errorf("invalid time range [%g, %g]", tStart, tEnd)
	}
	lo := int(tStart * fs)
	hi := len(x)
	if tEnd > 0 && int(tEnd*fs) < hi {
		hi = int(tEnd * fs)
	}
	if lo >= hi {
		return nil, fmt.Errorf("%w: range starts at %gs, file ends at %gs", ErrEmpty, tStart, float64(len(x))/fs)
	}
	return x[lo:hi], nil
}

// ReadWav decodes a PCM WAV file. channel selects one input channel
// (1-based); 0 averages all channels.
func ReadWav(path string, channel int) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d (integer PCM only)", ErrUnsupported, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: header has no usable format", ErrInvalidFile)
	}

	nCh := buf.Format.NumChannels
	if channel < 0 || channel > nCh {
		return nil, fmt.Errorf("channel %d out of range (file has %d)", channel, nCh)
	}
	nFrames := len(buf.Data) / nCh
	if nFrames == 0 {
		return nil, ErrEmpty
	}

	bitDepth := int(dec.BitDepth)
	toFloat := pcmScaler(bitDepth)

	samples := make([]float64, nFrames)
	for i := 0; i < nFrames; i++ {
		frame := buf.Data[i*nCh : (i+1)*nCh]
		if channel > 0 {
			samples[i] = toFloat(frame[channel-1])
			continue
		}
		sum := 0.0
		for _, v := range frame {
			sum += toFloat(v)
		}
		samples[i] = sum / float64(nCh)
	}

	return &Source{
		Metadata: Metadata{
			Duration:   float64(nFrames) / float64(buf.Format.SampleRate),
			SampleRate: buf.Format.SampleRate,
			Channels:   nCh,
			BitDepth:   bitDepth,
		},
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Samples: samples,
		Channel: channel,
	}, nil
}

// pcmScaler returns the conversion from decoded integers to ±1 full scale.
// 8-bit WAV is unsigned, wider depths are signed.
func pcmScaler(bitDepth int) func(int) float64 {
	if bitDepth == 8 {
		return func(v int) float64 { return float64(v-128) / 128 }
	}
	full := float64(int64(1) << (bitDepth - 1))
	return func(v int) float64 { return float64(v) / full }
}
