package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// generalGroup collects flags declared without a kong group
const generalGroup = "General"

// Examples shown at the end of the help text
var helpExamples = []struct{ cmd, desc string }{
	{"f120 talk.wav", "code one file, writing talk-elgram.parquet next to it"},
	{"f120 -j 4 -o out/ *.wav", "code a batch four at a time into out/"},
	{"f120 --vocoder noise --logs talk.wav", "also write a vocoded preview and a report"},
	{"f120 --summary --start 1 --end 3 talk.wav", "code two seconds and print the electrode summary"},
}

var (
	helpTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	helpDescStyle    = lipgloss.NewStyle().Foreground(accentColor).Italic(true)
	helpSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginTop(1)
	helpFlagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Bold(true)
	helpArgStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAAA")).Bold(true)
	helpMutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

// helpEntry is one line of the help listing: a flag or positional argument
type helpEntry struct {
	name     string
	help     string
	fallback string // default value, empty when none
}

// helpGroup is a titled block of flags, in declaration order
type helpGroup struct {
	title   string
	entries []helpEntry
}

// StyledHelpPrinter creates a help printer that lists flags by kong group
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		writeHelp(ctx.Stdout, ctx.Model.Name, positionals(ctx.Model.Node), flagGroups(ctx.Model.Node))
		return nil
	}
}

func writeHelp(w io.Writer, name string, args []helpEntry, groups []helpGroup) {
	var sb strings.Builder

	sb.WriteString(helpTitleStyle.Render("F120 👂"))
	sb.WriteString("\n")
	sb.WriteString(helpDescStyle.Render("HiRes Fidelity 120 sound coding: audio in, electrodogram out"))
	sb.WriteString("\n")

	sb.WriteString(helpSectionStyle.Render("Usage:"))
	fmt.Fprintf(&sb, "\n  %s [flags] <files> ...\n", name)

	if len(args) > 0 {
		sb.WriteString(helpSectionStyle.Render("Arguments:"))
		sb.WriteString("\n")
		writeEntries(&sb, args, helpArgStyle)
	}
	for _, g := range groups {
		sb.WriteString(helpSectionStyle.Render(g.title + ":"))
		sb.WriteString("\n")
		writeEntries(&sb, g.entries, helpFlagStyle)
	}

	sb.WriteString(helpSectionStyle.Render("Examples:"))
	sb.WriteString("\n")
	for _, ex := range helpExamples {
		fmt.Fprintf(&sb, "  %s\n      %s\n", helpArgStyle.Render(ex.cmd), helpMutedStyle.Render(ex.desc))
	}
	sb.WriteString("\n")

	fmt.Fprint(w, sb.String())
}

// writeEntries lists entries with their help text aligned in one column
func writeEntries(sb *strings.Builder, entries []helpEntry, style lipgloss.Style) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.name))
	}
	for _, e := range entries {
		pad := strings.Repeat(" ", width-len(e.name))
		fmt.Fprintf(sb, "  %s%s  %s", style.Render(e.name), pad, e.help)
		if e.fallback != "" {
			sb.WriteString(" " + helpMutedStyle.Render("(default: "+e.fallback+")"))
		}
		sb.WriteString("\n")
	}
}

func positionals(node *kong.Node) []helpEntry {
	var args []helpEntry
	for _, arg := range node.Positional {
		args = append(args, helpEntry{name: arg.Summary(), help: arg.Help})
	}
	return args
}

// flagGroups sorts visible flags into their kong groups. Ungrouped flags,
// help included, come first under General.
func flagGroups(node *kong.Node) []helpGroup {
	groups := []helpGroup{{
		title:   generalGroup,
		entries: []helpEntry{{name: "-h, --help", help: "Show context-sensitive help."}},
	}}
	index := map[string]int{generalGroup: 0}

	for _, f := range node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}
		title := generalGroup
		if f.Group != nil && f.Group.Title != "" {
			title = f.Group.Title
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, helpGroup{title: title})
		}
		groups[i].entries = append(groups[i].entries, flagEntry(f))
	}
	return groups
}

func flagEntry(f *kong.Flag) helpEntry {
	name := "--" + f.Name
	if f.Short != 0 {
		name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	}
	if !f.IsBool() {
		name += "=" + strings.ToUpper(f.FormatPlaceHolder())
	}
	e := helpEntry{name: name, help: f.Help}
	if f.HasDefault && f.Default != "" && !f.IsBool() {
		e.fallback = f.Default
	}
	return e
}
