package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/perception"
)

var (
	publishedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rawColor       = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	lightColors    = map[perception.Color]color.Color{
		perception.Red:     color.RGBA{R: 214, G: 39, B: 40, A: 255},
		perception.Yellow:  color.RGBA{R: 230, G: 180, B: 20, A: 255},
		perception.Green:   color.RGBA{R: 44, G: 160, B: 44, A: 255},
		perception.Unknown: color.RGBA{R: 120, G: 120, B: 120, A: 255},
	}
)

// colorLevel places a colour on the colour panel's y axis.
func colorLevel(c perception.Color) float64 {
	switch c {
	case perception.Red:
		return 3
	case perception.Yellow:
		return 2
	case perception.Green:
		return 1
	default:
		return 0
	}
}

// renderTimeline draws the waypoint panel above the colour panel and saves
// both into one PNG at path.
func renderTimeline(session *db.Session, decisions []coordinator.Decision, path string) error {
	if len(decisions) == 0 {
		return errors.New("no decisions to plot")
	}

	published := make(plotter.XYs, len(decisions))
	raw := make(plotter.XYs, len(decisions))
	confirmed := make(plotter.XYs, len(decisions))
	observed := make(map[perception.Color]plotter.XYs)
	for i, d := range decisions {
		x := float64(d.Seq)
		published[i] = plotter.XY{X: x, Y: float64(d.Waypoint)}
		raw[i] = plotter.XY{X: x, Y: float64(d.RawWaypoint)}
		confirmed[i] = plotter.XY{X: x, Y: colorLevel(d.Confirmed)}
		c := d.RawColor.Normalize()
		observed[c] = append(observed[c], plotter.XY{X: x, Y: colorLevel(c)})
	}

	pWaypoint := plot.New()
	pWaypoint.Title.Text = fmt.Sprintf("Session %s - stop waypoint", session.ID)
	pWaypoint.X.Label.Text = "Frame"
	pWaypoint.Y.Label.Text = "Waypoint (-1 = no stop)"

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(1)
	rawLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	rawLine.StepStyle = plotter.PostStep

	pubLine, err := plotter.NewLine(published)
	if err != nil {
		return err
	}
	pubLine.Color = publishedColor
	pubLine.Width = vg.Points(2)
	pubLine.StepStyle = plotter.PostStep

	pWaypoint.Add(plotter.NewGrid(), rawLine, pubLine)
	pWaypoint.Legend.Add("raw", rawLine)
	pWaypoint.Legend.Add("published", pubLine)
	pWaypoint.Legend.Top = true

	pColor := plot.New()
	pColor.Title.Text = "Light colour (0 unknown, 1 green, 2 yellow, 3 red)"
	pColor.X.Label.Text = "Frame"
	pColor.Y.Label.Text = "Colour"
	pColor.Y.Min, pColor.Y.Max = -0.5, 3.5

	confLine, err := plotter.NewLine(confirmed)
	if err != nil {
		return err
	}
	confLine.Color = color.Black
	confLine.Width = vg.Points(1)
	confLine.StepStyle = plotter.PostStep
	pColor.Add(plotter.NewGrid(), confLine)
	pColor.Legend.Add("confirmed", confLine)

	for _, c := range []perception.Color{perception.Red, perception.Yellow, perception.Green, perception.Unknown} {
		pts := observed[c]
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = lightColors[c]
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		pColor.Add(sc)
		pColor.Legend.Add("raw "+c.String(), sc)
	}
	pColor.Legend.Top = true

	const width, rowHeight = 14 * vg.Inch, 4 * vg.Inch
	img := vgimg.New(width, 2*rowHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1}
	canvases := plot.Align([][]*plot.Plot{{pWaypoint}, {pColor}}, tiles, dc)
	pWaypoint.Draw(canvases[0][0])
	pColor.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return f.Close()
}
