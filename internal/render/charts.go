// v0
// internal/render/charts.go
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/series"
)

// pngDPI is the resolution gonum/plot uses for PNG output.
const pngDPI = 96

var (
	tempColor     = color.RGBA{R: 0xe9, G: 0x45, B: 0x60, A: 0xff}
	setpointColor = color.RGBA{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}
	powerColor    = color.RGBA{R: 0x00, G: 0xbc, B: 0xd4, A: 0xff}
	markerColor   = color.RGBA{R: 0xff, G: 0x98, B: 0x00, A: 0xff}
	curvePalette  = []color.Color{
		color.RGBA{R: 0x3f, G: 0x51, B: 0xb5, A: 0xff},
		color.RGBA{R: 0x00, G: 0x96, B: 0x88, A: 0xff},
		color.RGBA{R: 0x8b, G: 0xc3, B: 0x4a, A: 0xff},
		color.RGBA{R: 0xff, G: 0xc1, B: 0x07, A: 0xff},
		color.RGBA{R: 0xf4, G: 0x43, B: 0x36, A: 0xff},
	}
)

// ChartKind selects one of the history charts.
type ChartKind string

const (
	ChartTemperature ChartKind = "temperature"
	ChartPower       ChartKind = "power"
)

// HistoryPNG draws the temperature chart (temperature and setpoint) or the
// CRAC power chart from a history snapshot. An empty snapshot yields empty
// axes.
func HistoryPNG(snap series.Snapshot, kind ChartKind, widthPx, heightPx int) ([]byte, error) {
	p := plot.New()
	p.X.Label.Text = "sample"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	n := snap.Len()
	var yMin, yMax float64
	switch kind {
	case ChartTemperature:
		p.Title.Text = "Temperature"
		p.Y.Label.Text = "°C"
		yMin, yMax = 15, 30
		if err := addSeries(p, snap.Column(dashboard.SeriesTemp), "Temperature (°C)", tempColor, false); err != nil {
			return nil, err
		}
		if err := addSeries(p, snap.Column(dashboard.SeriesSetpoint), "Setpoint", setpointColor, true); err != nil {
			return nil, err
		}
		lo, hi := bounds(snap.Column(dashboard.SeriesTemp), snap.Column(dashboard.SeriesSetpoint))
		yMin = math.Min(yMin, math.Floor(lo))
		yMax = math.Max(yMax, math.Ceil(hi))
	case ChartPower:
		p.Title.Text = "CRAC power"
		p.Y.Label.Text = "%"
		yMin, yMax = 0, 100
		if err := addSeries(p, snap.Column(dashboard.SeriesCRAC), "CRAC power (%)", powerColor, false); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown chart %q", kind)
	}

	p.X.Min = 0
	p.X.Max = math.Max(1, float64(n-1))
	p.Y.Min = yMin
	p.Y.Max = yMax
	return encodePNG(p, widthPx, heightPx)
}

// MembershipPNG draws every curve of the view and, when present, the
// operating point.
func MembershipPNG(view MembershipView, widthPx, heightPx int) ([]byte, error) {
	p := plot.New()
	p.Title.Text = view.Variable
	p.Y.Label.Text = "membership"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, c := range view.Curves {
		pts := make(plotter.XYs, len(view.Domain))
		for j, x := range view.Domain {
			pts[j].X = x
			if j < len(c.Values) {
				pts[j].Y = c.Values[j]
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", c.Label, err)
		}
		line.Color = curvePalette[i%len(curvePalette)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(c.Label, line)
	}

	if view.Marker != nil {
		pt := plotter.XYs{{X: view.Marker.Sample, Y: view.Marker.Peak}}
		sc, err := plotter.NewScatter(pt)
		if err != nil {
			return nil, fmt.Errorf("marker: %w", err)
		}
		sc.GlyphStyle.Color = markerColor
		sc.GlyphStyle.Radius = vg.Points(4)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("%.2f", view.Marker.Value), sc)
	}

	if len(view.Domain) > 0 {
		p.X.Min = view.Domain[0]
		p.X.Max = view.Domain[len(view.Domain)-1]
	} else {
		p.X.Min, p.X.Max = 0, 1
	}
	p.Y.Min = 0
	p.Y.Max = 1.05
	return encodePNG(p, widthPx, heightPx)
}

func addSeries(p *plot.Plot, values []float64, name string, c color.Color, dashed bool) error {
	if len(values) == 0 {
		return nil
	}
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("series %s: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	if dashed {
		line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	}
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func bounds(cols ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, col := range cols {
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

func encodePNG(p *plot.Plot, widthPx, heightPx int) ([]byte, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("invalid chart size %dx%d", widthPx, heightPx)
	}
	w := vg.Length(widthPx) * vg.Inch / pngDPI
	h := vg.Length(heightPx) * vg.Inch / pngDPI
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}
