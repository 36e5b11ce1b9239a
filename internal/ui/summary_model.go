package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/f120/internal/processor"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SummaryModel shows a single file moving through the stage chain. It is
// used by summary mode, which prints the electrode summary afterwards.
type SummaryModel struct {
	FilePath  string
	Stage     processor.StageID
	Progress  float64
	StartTime time.Time

	Result *processor.Result
	Error  error
	Done   bool

	Width int
	frame int
}

// SummaryStartMsg signals coding has started
type SummaryStartMsg struct {
	FilePath string
}

// SummaryProgressMsg reports the stage about to run
type SummaryProgressMsg struct {
	Stage    processor.StageID
	Progress float64
}

// SummaryCompleteMsg carries the coded result or the failure
type SummaryCompleteMsg struct {
	Result *processor.Result
	Error  error
}

type tickMsg time.Time

// NewSummaryModel creates a new summary UI model
func NewSummaryModel() SummaryModel {
	return SummaryModel{StartTime: time.Now()}
}

// Init starts the spinner
func (m SummaryModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages and updates the model
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case SummaryStartMsg:
		m.FilePath = msg.FilePath
		m.StartTime = time.Now()
	case SummaryProgressMsg:
		m.Stage = msg.Stage
		m.Progress = max(m.Progress, msg.Progress)
	case SummaryCompleteMsg:
		m.Result, m.Error, m.Done = msg.Result, msg.Error, true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the stage checklist
func (m SummaryModel) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("F120"))
	b.WriteString(" ")
	b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Italic(true).Render("Summary Mode"))
	b.WriteString("\n\n")

	if m.FilePath == "" {
		b.WriteString("Waiting...")
		return b.String()
	}
	fmt.Fprintf(&b, "Coding %s  [%s]\n\n", filepath.Base(m.FilePath), formatElapsed(time.Since(m.StartTime)))
	b.WriteString(renderStageList(m.Stage, m.Done, spinnerFrames[m.frame]))
	b.WriteString("\n")
	b.WriteString(renderProgressBar(m.Progress, 40))
	b.WriteString("\n")
	return b.String()
}

// renderStageList marks stages before current as done and the current one
// with the spinner. Reading comes before the chain proper.
func renderStageList(current processor.StageID, done bool, spinner string) string {
	doneMark := lipgloss.NewStyle().Foreground(okColor).Render("✓")
	activeMark := lipgloss.NewStyle().Foreground(busyColor).Render(spinner)
	pending := lipgloss.NewStyle().Foreground(mutedColor)

	step := stageStep(current)
	stages := append([]processor.StageID{processor.StageReadWav}, processor.PipelineOrder...)

	var b strings.Builder
	for i, id := range stages {
		switch {
		case done || i < step:
			fmt.Fprintf(&b, " %s %s\n", doneMark, id.Name())
		case i == step && current != "":
			fmt.Fprintf(&b, " %s %s\n", activeMark, id.Name())
		default:
			b.WriteString(pending.Render(" · "+id.Name()) + "\n")
		}
	}
	return b.String()
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h, mins, s := d/time.Hour, (d%time.Hour)/time.Minute, (d%time.Minute)/time.Second
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
