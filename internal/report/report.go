// v0
// internal/report/report.go
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/render"
)

// StatVariables are always listed in the statistics table, in this order,
// with placeholders when the controller has not reported them.
var StatVariables = []string{"temp", "crac", "erro"}

// Input is everything the report needs. It is assembled from a frame so
// building the PDF never touches live state.
type Input struct {
	Title       string
	GeneratedAt time.Time
	Frame       render.Frame
	Metrics     dashboard.RunMetrics
	HasMetrics  bool
	Band        dashboard.Band
	// Chart is an optional PNG embedded under the tables.
	Chart []byte
	// LogLines are the most recent log records, oldest first.
	LogLines []string
	// MaxEvents caps the alert lines listed.
	MaxEvents int
}

const (
	pageWidth = 190.0
	lineH     = 6.0
)

// Build renders the PDF.
func Build(in Input) ([]byte, error) {
	if in.Title == "" {
		in.Title = "Datacenter cooling report"
	}
	if in.MaxEvents <= 0 {
		in.MaxEvents = 20
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(in.Title, true)
	pdf.SetCreator("fuzzydash", true)
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(pageWidth, 10, tr(in.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(pageWidth, 5, "Generated "+in.GeneratedAt.Format(time.RFC3339), "", 1, "L", false, 0, "")
	conn := in.Frame.Connection
	pdf.CellFormat(pageWidth, 5, tr("Broker: "+conn.Label), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Manual inputs")
	inputs := in.Frame.Inputs
	table(pdf, tr, []string{"Field", "Value"}, [][]string{
		{"erro", orPlaceholder(inputs.Erro)},
		{"delta_erro", orPlaceholder(inputs.DeltaErro)},
		{"setpoint", orPlaceholder(inputs.Setpoint)},
		{"temp_ext", orPlaceholder(inputs.TempExt)},
		{"carga", orPlaceholder(inputs.Carga)},
	})

	section(pdf, "Latest readouts")
	r := in.Frame.Readouts
	table(pdf, tr, []string{"Readout", "Value"}, [][]string{
		{"Temperature (C)", r.Temp},
		{"CRAC power (%)", r.CRAC},
		{"Setpoint (C)", r.Setpoint},
		{"Error", r.Error},
		{"Fuzzy output", r.Output + " " + r.OutputTerm},
	})

	section(pdf, "Simulation statistics")
	table(pdf, tr, []string{"Variable", "Min", "Avg", "Max"}, statRows(in.Frame.Stats))
	if in.Frame.Stats != nil && in.Frame.Stats.Message != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(pageWidth, 5, tr(in.Frame.Stats.Message), "", "L", false)
	}

	section(pdf, "Run metrics")
	table(pdf, tr, []string{"Metric", "Value"}, metricRows(in))

	if len(in.Chart) > 0 {
		section(pdf, "Temperature history")
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("history", opts, bytes.NewReader(in.Chart))
		if pdf.Ok() {
			pdf.ImageOptions("history", pdf.GetX(), pdf.GetY(), pageWidth, 0, true, opts, 0, "")
			pdf.Ln(2)
		}
	}

	section(pdf, "Recent events")
	pdf.SetFont("Courier", "", 8)
	alerts := in.Frame.Alerts
	if len(alerts) > in.MaxEvents {
		alerts = alerts[:in.MaxEvents]
	}
	if len(alerts) == 0 {
		pdf.CellFormat(pageWidth, 5, "No alerts received.", "", 1, "L", false, 0, "")
	}
	for _, a := range alerts {
		if a.Severity == dashboard.SeverityCritical {
			pdf.SetTextColor(200, 0, 0)
		} else {
			pdf.SetTextColor(0, 0, 160)
		}
		pdf.MultiCell(pageWidth, 4.5, tr(a.Text), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)

	if len(in.LogLines) > 0 {
		section(pdf, "Log excerpt")
		pdf.SetFont("Courier", "", 7)
		for _, line := range in.LogLines {
			pdf.MultiCell(pageWidth, 3.8, tr(line), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(pageWidth, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func table(pdf *fpdf.Fpdf, tr func(string) string, header []string, rows [][]string) {
	w := pageWidth / float64(len(header))
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range header {
		pdf.CellFormat(w, lineH, tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for _, cell := range row {
			pdf.CellFormat(w, lineH, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func statRows(stats *dashboard.Statistics) [][]string {
	names := append([]string(nil), StatVariables...)
	if stats != nil {
		var extra []string
		for name := range stats.Variables {
			if !contains(StatVariables, name) {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		names = append(names, extra...)
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		row := []string{name, render.Placeholder, render.Placeholder, render.Placeholder}
		if stats != nil {
			if st, ok := stats.Variables[name]; ok {
				row[1], row[2], row[3] = num(st.Min), num(st.Avg), num(st.Max)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func metricRows(in Input) [][]string {
	band := fmt.Sprintf("Time in %s-%s C band (%%)", num(in.Band.Low), num(in.Band.High))
	if !in.HasMetrics {
		return [][]string{
			{"Samples", "0"},
			{"Tracking RMSE (C)", render.Placeholder},
			{band, render.Placeholder},
			{"Mean CRAC power (%)", render.Placeholder},
			{"Peak temperature (C)", render.Placeholder},
		}
	}
	m := in.Metrics
	return [][]string{
		{"Samples", strconv.Itoa(m.Samples)},
		{"Tracking RMSE (C)", num(m.RMSE)},
		{band, num(m.InBandPct)},
		{"Mean CRAC power (%)", num(m.MeanCRAC)},
		{"Peak temperature (C)", num(m.PeakTemp)},
	}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func orPlaceholder(s string) string {
	if s == "" {
		return render.Placeholder
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
