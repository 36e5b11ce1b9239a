// Package processor implements the F120 sound-coding chain: it turns a waveform
// at the implant audio rate into an electrodogram of biphasic current pulses.
package processor

// StageID identifies a stage in the processing chain
type StageID string

// Stage identifiers, in the order they run
const (
	// Front end (sample rate)
	StageReadWav     StageID = "read_wav"
	StageHumNotch    StageID = "hum_notch" // optional, disabled by default
	StagePreEmphasis StageID = "pre_emphasis"
	StageAGC         StageID = "agc"

	// Filterbank (frame rate)
	StageWinBuf         StageID = "win_buf"
	StageFFT            StageID = "fft_filterbank"
	StageHilbert        StageID = "hilbert_envelope"
	StageEnergy         StageID = "channel_energy"
	StageNoiseReduction StageID = "noise_reduction"

	// Post filterbank (decimated frame rate, then FT rate)
	StagePeakLocator   StageID = "peak_locator"
	StageSteering      StageID = "current_steering"
	StageCarrier       StageID = "carrier_synthesis"
	StageMapping       StageID = "f120_mapping"
	StageElectrodogram StageID = "electrodogram"
)

// PipelineOrder defines the order in which Process runs the stages.
// Order rationale:
// - HumNotch before PreEmphasis: the notch acts on the raw waveform, like an
//   input conditioning filter, and is skipped entirely when disabled
// - AGC before buffering: the gain trace is consumed again by ChannelEnergy
// - Hilbert and Energy both read the same STFT; NoiseReduction reads Energy
// - PeakLocator works on every third frame and is re-aligned to full rate
//   before Steering and Carrier see it
// - Mapping joins the frame-rate and FT-rate domains; Electrodogram is last
var PipelineOrder = []StageID{
	StageHumNotch,
	StagePreEmphasis,
	StageAGC,
	StageWinBuf,
	StageFFT,
	StageHilbert,
	StageEnergy,
	StageNoiseReduction,
	StagePeakLocator,
	StageSteering,
	StageCarrier,
	StageMapping,
	StageElectrodogram,
}

// stageNames are the display names used by the progress UI and the report
var stageNames = map[StageID]string{
	StageReadWav:        "Reading audio",
	StageHumNotch:       "Hum notch",
	StagePreEmphasis:    "Pre-emphasis",
	StageAGC:            "Dual-loop AGC",
	StageWinBuf:         "Windowing",
	StageFFT:            "FFT filterbank",
	StageHilbert:        "Hilbert envelope",
	StageEnergy:         "Channel energy",
	StageNoiseReduction: "Noise reduction",
	StagePeakLocator:    "Spectral peaks",
	StageSteering:       "Current steering",
	StageCarrier:        "Carrier synthesis",
	StageMapping:        "F120 mapping",
	StageElectrodogram:  "Electrodogram",
}

// Name returns the human-readable name of the stage
func (s StageID) Name() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return string(s)
}
