package view

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// Chart geometry in SVG user units.
const (
	chartWidth  = 400.0
	chartHeight = 300.0
	plotTop     = 20.0
	plotBottom  = 260.0
	plotLeft    = 40.0
	plotRight   = 380.0
	barGap      = 20.0
)

// ChartBar is one bar of the perspective chart.
type ChartBar struct {
	Name   string
	Label  string
	Color  string
	X      float64
	Y      float64
	Width  float64
	Height float64
	TextX  float64
}

// Chart is the bar chart of the four perspective metrics, scaled 0-100.
type Chart struct {
	Width, Height float64
	Top, Bottom   float64
	Left, Right   float64
	Bars          []ChartBar
	Ticks         []ChartTick
}

// ChartTick is a y-axis gridline.
type ChartTick struct {
	Y     float64
	Label string
}

// NewChart lays out bars for p. Values outside [0, 100] are clamped.
func NewChart(p types.PerspectiveData) Chart {
	fields := p.Fields()
	plotH := plotBottom - plotTop
	slot := (plotRight - plotLeft) / float64(len(fields))

	c := Chart{
		Width: chartWidth, Height: chartHeight,
		Top: plotTop, Bottom: plotBottom,
		Left: plotLeft, Right: plotRight,
	}
	for i := 0; i <= 4; i++ {
		v := float64(i) * 25
		c.Ticks = append(c.Ticks, ChartTick{Y: plotBottom - v/100*plotH, Label: fmt.Sprintf("%.0f", v)})
	}
	for i, f := range fields {
		v := min(max(f.Value, types.MetricMin), types.MetricMax)
		h := v / 100 * plotH
		x := plotLeft + float64(i)*slot + barGap/2
		c.Bars = append(c.Bars, ChartBar{
			Name:   f.Name,
			Label:  fmt.Sprintf("%.1f", f.Value),
			Color:  BandOf(f.Value).Color(),
			X:      x,
			Y:      plotBottom - h,
			Width:  slot - barGap,
			Height: h,
			TextX:  x + (slot-barGap)/2,
		})
	}
	return c
}

var panels = template.Must(template.New("panels").Parse(panelTemplates))

type analysisData struct {
	Detail
	Chart *Chart
}

type statusData struct {
	Badge   Badge
	Summary Summary
	Camera  types.CameraState
	CamText string
	Busy    bool
}

// RenderBadge writes the connectivity badge fragment.
func RenderBadge(w io.Writer, st types.ConnectivityState, loc *time.Location) error {
	return panels.ExecuteTemplate(w, "badge", NewBadge(st, loc))
}

// RenderAnalysis writes the analysis panel fragment, including the chart.
func RenderAnalysis(w io.Writer, r *types.AnalysisResult, loc *time.Location) error {
	data := analysisData{Detail: NewDetail(r, loc)}
	if r != nil {
		chart := NewChart(r.Perspective)
		data.Chart = &chart
	}
	return panels.ExecuteTemplate(w, "analysis", data)
}

// RenderStatus writes the status widget fragment: badge, camera and summary.
func RenderStatus(w io.Writer, st types.ConsoleState, loc *time.Location) error {
	data := statusData{
		Badge:   NewBadge(st.Connectivity, loc),
		Summary: NewSummary(st.Analysis),
		Camera:  st.Camera,
		Busy:    st.Analyzing,
	}
	if st.Camera.Error != "" {
		data.CamText = CameraErrorText
	}
	return panels.ExecuteTemplate(w, "status", data)
}

const panelTemplates = `
{{define "badge"}}<span class="badge badge-{{.Status}}" title="{{.Tooltip}}">{{.Label}}</span>{{end}}

{{define "status"}}<div class="status-widget">
  {{template "badge" .Badge}}
  <div class="card">
    <h3>Camera</h3>
    {{if .CamText}}<p class="error">{{.CamText}}</p>{{end}}
    {{if .Camera.Streaming}}<p>Streaming {{.Camera.Width}}x{{.Camera.Height}}</p>{{else}}<p class="muted">Camera stopped</p>{{end}}
    {{if .Busy}}<p class="busy">Analyzing...</p>{{end}}
  </div>
  <div class="card">
    <h3>Analysis Status</h3>
    {{with .Summary}}{{if .Empty}}<p class="muted">{{.SummaryText}}</p>{{else}}
    <dl>
      <dt>Persons:</dt><dd>{{.Persons}}</dd>
      <dt>Confidence:</dt><dd>{{.Confidence}}</dd>
      <dt>Processing:</dt><dd>{{.Processing}}</dd>
      {{range .Metrics}}<dt>{{.Name}}:</dt><dd class="band-{{.Band}}">{{.Text}}</dd>{{end}}
    </dl>
    <p class="muted summary">{{.SummaryText}}</p>{{end}}{{end}}
  </div>
</div>{{end}}

{{define "analysis"}}{{if .Empty}}<div class="placeholder">
  <h3>{{.Title}}</h3>
  <p class="muted">{{.Hint}}</p>
</div>{{else}}<div class="analysis-grid">
  <div class="card">
    <h3>{{.Title}}</h3>
    {{with .Chart}}{{template "chart" .}}{{end}}
  </div>
  <div class="card">
    <h3>Detection Details</h3>
    <dl>
      <dt>Persons Detected:</dt><dd>{{.Persons}}</dd>
      <dt>Confidence:</dt><dd>{{.Confidence}}</dd>
      <dt>Processing Time:</dt><dd>{{.Processing}}</dd>
      <dt>Timestamp:</dt><dd>{{.Timestamp}}</dd>
      {{range .Metrics}}<dt>{{.Name}}:</dt><dd class="band-{{.Band}}">{{.Text}}</dd>{{end}}
    </dl>
  </div>
  <div class="card">
    <h3>Analysis Summary</h3>
    <p>{{.SummaryText}}</p>
  </div>
</div>{{end}}{{end}}

{{define "chart"}}<svg class="perspective-chart" viewBox="0 0 {{.Width}} {{.Height}}" xmlns="http://www.w3.org/2000/svg" role="img">
  {{range .Ticks}}<line x1="{{$.Left}}" x2="{{$.Right}}" y1="{{.Y}}" y2="{{.Y}}" stroke="#e1e1e6" stroke-width="1"/>
  <text x="{{$.Left}}" y="{{.Y}}" dx="-6" dy="4" text-anchor="end" font-size="11">{{.Label}}</text>
  {{end}}{{range .Bars}}<rect x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" rx="4" fill="{{.Color}}"><title>{{.Name}}: {{.Label}}</title></rect>
  <text x="{{.TextX}}" y="{{$.Bottom}}" dy="18" text-anchor="middle" font-size="12">{{.Name}}</text>
  {{end}}
</svg>{{end}}
`
