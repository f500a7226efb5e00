// Package view turns console state into the values shown on the dashboard.
package view

import (
	"fmt"
	"time"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// ClockLayout is how wall-clock times are displayed.
const ClockLayout = "3:04:05 PM"

// Placeholder texts shown while no analysis is available.
const (
	NoSummaryText   = "No analysis data available"
	NoDetailTitle   = "No Analysis Data"
	NoDetailHint    = "Capture and analyze a webcam frame to see perspective analysis results here."
	CameraErrorText = "Could not access webcam. Please check permissions."
)

// Band classifies a metric value for bar colouring.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

// BandOf returns the band for v: below 30 low, below 70 medium, else high.
func BandOf(v float64) Band {
	switch {
	case v < 30:
		return BandLow
	case v < 70:
		return BandMedium
	default:
		return BandHigh
	}
}

func (b Band) String() string {
	switch b {
	case BandLow:
		return "destructive"
	case BandMedium:
		return "warning"
	default:
		return "success"
	}
}

// Color is the bar fill for the band.
func (b Band) Color() string {
	switch b {
	case BandLow:
		return "#ef4444"
	case BandMedium:
		return "#f59e0b"
	default:
		return "#00bd00"
	}
}

// MetricRow is one formatted perspective value.
type MetricRow struct {
	Name  string
	Value float64
	Text  string
	Band  Band
}

// Summary is the compact status-widget rendition of a result.
type Summary struct {
	Empty       bool
	Persons     int
	Confidence  string
	Processing  string
	Metrics     []MetricRow
	SummaryText string
}

// NewSummary formats r for the status widget. A nil result yields the
// placeholder.
func NewSummary(r *types.AnalysisResult) Summary {
	if r == nil {
		return Summary{Empty: true, SummaryText: NoSummaryText}
	}
	return Summary{
		Persons:     r.PersonsDetected,
		Confidence:  fmt.Sprintf("%.1f%%", r.Confidence),
		Processing:  fmt.Sprintf("%.0fms", r.ProcessingTime),
		Metrics:     metricRows(r.Perspective, "%.1f"),
		SummaryText: r.Summary,
	}
}

// Detail is the full analysis-panel rendition of a result.
type Detail struct {
	Empty       bool
	Title       string
	Hint        string
	Persons     int
	Confidence  string
	Processing  string
	Timestamp   string
	Metrics     []MetricRow
	SummaryText string
}

// NewDetail formats r for the analysis panel with times shown in loc.
func NewDetail(r *types.AnalysisResult, loc *time.Location) Detail {
	if r == nil {
		return Detail{Empty: true, Title: NoDetailTitle, Hint: NoDetailHint}
	}
	return Detail{
		Title:       "Perspective Analysis",
		Persons:     r.PersonsDetected,
		Confidence:  fmt.Sprintf("%.2f%%", r.Confidence),
		Processing:  fmt.Sprintf("%.2fms", r.ProcessingTime),
		Timestamp:   LocalTime(r.Timestamp, loc),
		Metrics:     metricRows(r.Perspective, "%.2f"),
		SummaryText: r.Summary,
	}
}

func metricRows(p types.PerspectiveData, format string) []MetricRow {
	fields := p.Fields()
	rows := make([]MetricRow, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, MetricRow{
			Name:  f.Name,
			Value: f.Value,
			Text:  fmt.Sprintf(format, f.Value),
			Band:  BandOf(f.Value),
		})
	}
	return rows
}

// zonelessLayout matches ISO-8601 timestamps without an offset.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// LocalTime renders an ISO-8601 timestamp as a wall-clock time in loc.
// Timestamps without an offset are read as local time. Unparseable input is
// returned unchanged.
func LocalTime(ts string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if t, err = time.ParseInLocation(zonelessLayout, ts, loc); err != nil {
			return ts
		}
	}
	return Clock(t, loc)
}

// Clock formats t in loc, defaulting to the local zone.
func Clock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ClockLayout)
}

// Badge is the connectivity indicator.
type Badge struct {
	Status  types.ConnectivityStatus
	Label   string
	Tooltip string
}

// BadgeLabel returns the indicator text for status.
func BadgeLabel(status types.ConnectivityStatus) string {
	switch status {
	case types.StatusConnected:
		return "Server Connected"
	case types.StatusDisconnected:
		return "Server Disconnected"
	default:
		return "Connecting..."
	}
}

// NewBadge builds the indicator for st with times shown in loc.
func NewBadge(st types.ConnectivityState, loc *time.Location) Badge {
	label := BadgeLabel(st.Status)
	b := Badge{Status: st.Status, Label: label, Tooltip: "Status: " + label}
	if st.LastCheckedAt == nil {
		return b
	}
	b.Tooltip = fmt.Sprintf("Status: %s (Last checked: %s)", label, Clock(*st.LastCheckedAt, loc))
	if st.LastError != "" {
		b.Tooltip += "\nError: " + st.LastError
	}
	return b
}
