package ui

import (
	"github.com/linuxmatters/f120/internal/processor"
)

// ProgressMsg reports the stage a file is about to run
type ProgressMsg struct {
	FileIndex int
	Stage     processor.StageID
	Progress  float64 // 0.0 to 1.0 over the whole chain
}

// FileStartMsg indicates a file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex   int
	OutputPath  string
	VocoderPath string
	Duration    float64 // seconds of audio coded
	Pulses      int     // pulses carrying current
	Dominant    int     // electrode with the most charge, -1 when silent
	Note        string  // validation remark, e.g. "too similar to reference, saved anyway"
	Error       error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
