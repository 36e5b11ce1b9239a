// Package ui provides the Bubbletea terminal user interface for f120
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/linuxmatters/f120/internal/processor"
)

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusCoding
	StatusComplete
	StatusError
)

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	InputPath  string
	OutputPath string
	Status     FileStatus

	Stage     processor.StageID
	StageStep int     // 1-based position of Stage in the chain
	Progress  float64 // 0.0 to 1.0

	StartTime   time.Time
	ElapsedTime time.Duration

	// Completion results
	VocoderPath string
	Duration    float64
	Pulses      int
	Dominant    int
	Note        string

	Error error
}

// Model is the Bubbletea model for the processing UI. Several files may be
// coding at once, so every message carries its file index.
type Model struct {
	Files          []FileProgress
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
	Jobs           int

	StartTime time.Time
	Done      bool

	// Channel for receiving progress updates from the workers
	ProgressChan chan tea.Msg

	Width  int
	Height int

	log *zap.Logger
}

// NewModel creates a new UI model with the given input files. A nil logger disables logging.
func NewModel(inputFiles []string, jobs int, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
			Dominant:  -1,
		}
	}

	return Model{
		Files:        files,
		TotalFiles:   len(inputFiles),
		Jobs:         jobs,
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
		log:          logger.Named("ui"),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.ProgressChan)
}

func (m Model) valid(index int) bool {
	return index >= 0 && index < len(m.Files)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case FileStartMsg:
		m.log.Debug("file start", zap.Int("index", msg.FileIndex), zap.String("file", msg.FileName))
		if m.valid(msg.FileIndex) {
			fp := &m.Files[msg.FileIndex]
			fp.Status = StatusCoding
			fp.StartTime = time.Now()
		}
		return m, waitForProgress(m.ProgressChan)

	case ProgressMsg:
		if m.valid(msg.FileIndex) {
			m.Files[msg.FileIndex] = updateFileProgress(m.Files[msg.FileIndex], msg)
		}
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		m.log.Debug("file complete", zap.Int("index", msg.FileIndex), zap.Error(msg.Error))
		if m.valid(msg.FileIndex) {
			m.Files[msg.FileIndex] = completeFile(m.Files[msg.FileIndex], msg)
			if msg.Error != nil {
				m.FailedFiles++
			} else {
				m.CompletedFiles++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.log.Debug("all complete", zap.Int("completed", m.CompletedFiles), zap.Int("failed", m.FailedFiles))
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return fmt.Sprintf("Initializing...\nFiles: %d\n", len(m.Files))
	}
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

// stageStep returns the 1-based position of a stage in the chain, 0 for reading
func stageStep(id processor.StageID) int {
	for i, s := range processor.PipelineOrder {
		if s == id {
			return i + 1
		}
	}
	return 0
}

// updateFileProgress applies a ProgressMsg to a FileProgress
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	if fp.Status == StatusQueued {
		fp.Status = StatusCoding
		fp.StartTime = time.Now()
	}
	fp.Stage = msg.Stage
	fp.StageStep = stageStep(msg.Stage)
	if msg.Progress > fp.Progress {
		fp.Progress = msg.Progress
	}
	fp.ElapsedTime = time.Since(fp.StartTime)
	return fp
}

// completeFile applies a FileCompleteMsg to a FileProgress
func completeFile(fp FileProgress, msg FileCompleteMsg) FileProgress {
	fp.ElapsedTime = time.Since(fp.StartTime)
	fp.Error = msg.Error
	if msg.Error != nil {
		fp.Status = StatusError
		return fp
	}
	fp.Status = StatusComplete
	fp.Progress = 1
	fp.OutputPath = msg.OutputPath
	fp.VocoderPath = msg.VocoderPath
	fp.Duration = msg.Duration
	fp.Pulses = msg.Pulses
	fp.Dominant = msg.Dominant
	fp.Note = msg.Note
	return fp
}

// waitForProgress creates a command that waits for progress messages
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
