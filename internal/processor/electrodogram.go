package processor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// phasesPerPulse: every pulse is biphasic
const phasesPerPulse = 2

// Electrodogram is the per-electrode current waveform, one sample per pulse phase
type Electrodogram struct {
	Data *mat.Dense // nElectrodes x nSamples, µA; negative = cathodic
	Fs   float64    // Hz
}

// Pulse is one biphasic pulse on one electrode
type Pulse struct {
	Channel   int     // 1-based channel
	Electrode int     // 0-based electrode
	Cathodic  bool    // leading phase polarity
	Amplitude float64 // µA
	StartUs   float64 // onset in µs
	Frame     int     // FT frame
}

// ElectrodogramFromAmpWords lays the amplitude words out as interleaved
// biphasic pulses. Each FT frame has one slot per channel, visited in
// channelOrder; in its slot a channel drives both electrodes of its pair
// simultaneously, leading phase first.
func ElectrodogramFromAmpWords(amp *mat.Dense, pairs, channelOrder []int, nElectrodes int, pulseWidth float64, cathodicFirst bool) Electrodogram {
	eg := Electrodogram{Fs: 1e6 / pulseWidth}
	if amp == nil {
		return eg
	}
	_, nFt := amp.Dims()
	frameLen := phasesPerPulse * len(channelOrder)
	eg.Data = mat.NewDense(nElectrodes, nFt*frameLen, nil)

	lead := -1.0
	if !cathodicFirst {
		lead = 1.0
	}

	for k := 0; k < nFt; k++ {
		for slot, chOneBased := range channelOrder {
			ch := chOneBased - 1
			base := k*frameLen + phasesPerPulse*slot
			for side := 0; side < 2; side++ {
				a := amp.At(2*ch+side, k)
				if a == 0 {
					continue
				}
				e := pairs[ch] + side
				eg.Data.Set(e, base, lead*a)
				eg.Data.Set(e, base+1, -lead*a)
			}
		}
	}
	return eg
}

// Pulses lists every non-zero pulse in firing order
func (eg Electrodogram) Pulses(pairs, channelOrder []int) []Pulse {
	if eg.Data == nil {
		return nil
	}
	_, nSamples := eg.Data.Dims()
	frameLen := phasesPerPulse * len(channelOrder)
	usPerPhase := 1e6 / eg.Fs

	var pulses []Pulse
	for base := 0; base+frameLen <= nSamples; base += frameLen {
		for slot, chOneBased := range channelOrder {
			start := base + phasesPerPulse*slot
			for side := 0; side < 2; side++ {
				e := pairs[chOneBased-1] + side
				v := eg.Data.At(e, start)
				if v == 0 {
					continue
				}
				pulses = append(pulses, Pulse{
					Channel:   chOneBased,
					Electrode: e,
					Cathodic:  v < 0,
					Amplitude: math.Abs(v),
					StartUs:   float64(start) * usPerPhase,
					Frame:     base / frameLen,
				})
			}
		}
	}
	return pulses
}

// Duration returns the electrodogram length in seconds
func (eg Electrodogram) Duration() float64 {
	if eg.Data == nil {
		return 0
	}
	_, n := eg.Data.Dims()
	return float64(n) / eg.Fs
}
