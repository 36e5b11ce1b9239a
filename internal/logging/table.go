// Package logging builds the zap debug logger and writes the per-run
// electrodogram report. This file holds the aligned-column table used by
// the report sections.

package logging

import (
	"fmt"
	"math"
	"strings"
)

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// MetricRow is one labelled row of pre-formatted values
type MetricRow struct {
	Label  string   // e.g. "Ch 3"
	Values []string // one per header
	Unit   string   // appended after the values, "" for none
	Note   string   // free text in the last column, only shown if any row has one
}

// MetricTable renders rows as right-aligned columns under Headers
type MetricTable struct {
	Headers []string
	Rows    []MetricRow
}

// NewMetricTable creates a table with the given column headers
func NewMetricTable(headers ...string) *MetricTable {
	return &MetricTable{Headers: headers}
}

// AddRow adds a row of pre-formatted values
func (t *MetricTable) AddRow(label string, values []string, unit, note string) {
	t.Rows = append(t.Rows, MetricRow{Label: label, Values: values, Unit: unit, Note: note})
}

// AddMetricRow adds a row of numbers formatted to the same precision.
// NaN shows as MissingValue.
func (t *MetricTable) AddMetricRow(label string, values []float64, decimals int, unit, note string) {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatMetric(v, decimals)
	}
	t.AddRow(label, formatted, unit, note)
}

// widths returns the label width, the width of every value column and the unit width
func (t *MetricTable) widths() (label int, values []int, unit int) {
	values = make([]int, len(t.Headers))
	for i, h := range t.Headers {
		values[i] = len(h)
	}
	for _, row := range t.Rows {
		label = max(label, len(row.Label))
		unit = max(unit, len(row.Unit))
		for i, v := range row.Values {
			if i < len(values) {
				values[i] = max(values[i], len(v))
			}
		}
	}
	return label, values, unit
}

func (t *MetricTable) hasNotes() bool {
	for _, row := range t.Rows {
		if row.Note != "" {
			return true
		}
	}
	return false
}

// String renders the table; labels are left-aligned, values right-aligned
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}
	labelWidth, valueWidths, unitWidth := t.widths()
	notes := t.hasNotes()

	var sb strings.Builder
	writeLine := func(label string, cells []string, unit, note string) {
		fmt.Fprintf(&sb, "%-*s  ", labelWidth, label)
		for i, w := range valueWidths {
			cell := MissingValue
			if i < len(cells) && cells[i] != "" {
				cell = cells[i]
			}
			fmt.Fprintf(&sb, "%*s  ", w, cell)
		}
		if unitWidth > 0 {
			fmt.Fprintf(&sb, "%-*s ", unitWidth, unit)
		}
		if notes {
			sb.WriteString(note)
		}
		sb.WriteString("\n")
	}

	header := make([]string, len(t.Headers))
	copy(header, t.Headers)
	noteHeader := ""
	if notes {
		noteHeader = "Note"
	}
	writeLine("", header, "", noteHeader)
	for _, row := range t.Rows {
		writeLine(row.Label, row.Values, row.Unit, row.Note)
	}
	return sb.String()
}

// formatMetric formats a value to decimals places. Very small non-zero
// values use scientific notation; NaN and Inf show as MissingValue.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricFloor formats a value that is clamped to floor at its source,
// showing "<= floor" when it sits on the floor.
func formatMetricFloor(value, floor float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 1) {
		return MissingValue
	}
	if value <= floor {
		return "<= " + fmt.Sprintf("%.*f", decimals, floor)
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricSigned formats a value with an explicit sign, e.g. "+2.5"
func formatMetricSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// formatMetricWithUnit returns "value unit", or just the value when unit is empty
func formatMetricWithUnit(value float64, decimals int, unit string) string {
	formatted := formatMetric(value, decimals)
	if formatted == MissingValue || unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// formatPercent formats a 0..1 fraction as a percentage
func formatPercent(fraction float64, decimals int) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f%%", decimals, 100*fraction)
}
