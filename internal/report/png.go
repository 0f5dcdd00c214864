package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no samples to plot")

var (
	shoulderColor = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	heightColor   = color.RGBA{R: 0xb5, G: 0x3d, B: 0x2b, A: 0xff}
)

// PNG dimensions.
const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 4 * vg.Inch
)

// RenderPNG writes a static plot of shoulder width and height against
// frame sequence.
func RenderPNG(w io.Writer, samples []Sample, o Options) error {
	if len(samples) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = o.title()
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = fmt.Sprintf("Length (%s)", o.lengthUnit())
	p.Legend.Top = true

	shoulders := make(plotter.XYs, 0, len(samples))
	heights := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if s.ShoulderWidth != nil {
			shoulders = append(shoulders, plotter.XY{X: float64(s.Seq), Y: *s.ShoulderWidth})
		}
		if s.Height != nil {
			heights = append(heights, plotter.XY{X: float64(s.Seq), Y: *s.Height})
		}
	}

	if err := addLine(p, "shoulder width", shoulders, shoulderColor); err != nil {
		return err
	}
	if err := addLine(p, "height", heights, heightColor); err != nil {
		return err
	}

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}
