package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/f120/internal/processor"
)

var (
	accentColor = lipgloss.Color("#0077B6") // implant blue
	okColor     = lipgloss.Color("#00AA00")
	busyColor   = lipgloss.Color("#FFA500")
	errColor    = lipgloss.Color("#A40000")
	mutedColor  = lipgloss.Color("#888888")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")
	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Render("F120 - Cochlear Implant Sound Coding")

	jobs := ""
	if m.Jobs > 1 {
		jobs = fmt.Sprintf(", %d at a time", m.Jobs)
	}
	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(fmt.Sprintf("Coding %d file(s)%s", m.TotalFiles, jobs))

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status
func renderFileQueue(m Model) string {
	var b strings.Builder
	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
		return fmt.Sprintf(" %s %s → %s\n   %s", icon, fileName, filepath.Base(file.OutputPath), fileSummary(file))

	case StatusCoding:
		icon := lipgloss.NewStyle().Foreground(busyColor).Render("⚙")
		return fmt.Sprintf(" %s %s → %s\n%s", icon, fileName, OutputName(fileName), renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(errColor).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(mutedColor).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// fileSummary is the one-line result shown for a completed file
func fileSummary(file FileProgress) string {
	dominant := "silent"
	if file.Dominant >= 0 {
		dominant = fmt.Sprintf("peak charge on E%d", file.Dominant)
	}
	s := fmt.Sprintf("%.1fs coded | %d pulses | %s", file.Duration, file.Pulses, dominant)
	if file.Note != "" {
		s += " | " + file.Note
	}
	return s
}

// renderFileDetails renders detailed progress for an active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Width(60)

	var content strings.Builder

	stage := "Reading audio"
	if file.Stage != "" {
		stage = file.Stage.Name()
	}
	content.WriteString(fmt.Sprintf("Stage %d/%d: %s\n", file.StageStep, len(processor.PipelineOrder), stage))

	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n\n")

	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Progress > 0 {
		remaining = (elapsed / file.Progress) - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs", elapsed, remaining))

	return box.Render(content.String())
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = max(0, min(1, progress))
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("%s %d%%", bar, int(progress*100))
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1).
		Width(60)

	active := 0
	for _, f := range m.Files {
		if f.Status == StatusCoding {
			active++
		}
	}
	content := fmt.Sprintf("%d/%d complete, %d coding", m.CompletedFiles+m.FailedFiles, m.TotalFiles, active)
	if m.FailedFiles > 0 {
		content += fmt.Sprintf(", %d failed", m.FailedFiles)
	}
	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(okColor).
		Render("✨ Coding Complete!")
	if m.FailedFiles > 0 {
		header = lipgloss.NewStyle().
			Bold(true).
			Foreground(errColor).
			Render(fmt.Sprintf("Coding finished with %d failure(s)", m.FailedFiles))
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
		case StatusError:
			b.WriteString(renderFileEntry(file))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d electrodogram(s) written\n", m.CompletedFiles))

	return b.String()
}

// renderCompletedFile renders a summary for a completed file
func renderCompletedFile(file FileProgress) string {
	icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
	s := fmt.Sprintf(" %s %s → %s\n   %s",
		icon, filepath.Base(file.InputPath), filepath.Base(file.OutputPath), fileSummary(file))
	if file.VocoderPath != "" {
		s += fmt.Sprintf("\n   Vocoded: %s", filepath.Base(file.VocoderPath))
	}
	return s
}

// OutputName returns the electrodogram filename for an input: talk.wav -> talk-elgram.parquet
func OutputName(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "-elgram.parquet"
}

// VocoderName returns the vocoded audio filename for an input: talk.wav -> talk-vocoded.wav
func VocoderName(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "-vocoded.wav"
}
