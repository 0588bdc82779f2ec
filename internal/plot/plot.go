// Package plot renders training curves to image files.
package plot

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Default chart size.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

// Series is one named line. Point i is drawn at x = i.
type Series struct {
	Name   string
	Values []float64
}

// Chart describes a single set of axes.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

func (c Chart) build() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel

	var lines []any
	for _, s := range c.Series {
		lines = append(lines, s.Name, points(s.Values))
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Wrapf(err, "chart %q", c.Title)
	}
	if len(c.Series) > 1 {
		p.Legend.Top = true
	}
	return p, nil
}

// points drops non-finite values, which plotter rejects.
func points(values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}

// Save writes a single chart. The format follows the file extension.
func Save(path string, c Chart) error {
	p, err := c.build()
	if err != nil {
		return err
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

// SaveGrid stacks charts vertically in one PNG.
func SaveGrid(path string, charts []Chart) error {
	if len(charts) == 0 {
		return errors.New("no charts to plot")
	}
	grid := make([][]*plot.Plot, len(charts))
	for i, c := range charts {
		p, err := c.build()
		if err != nil {
			return err
		}
		grid[i] = []*plot.Plot{p}
	}

	img := vgimg.New(Width, Height*vg.Length(len(charts))/2)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(charts),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter * 4,
	}
	canvases := plot.Align(grid, tiles, dc)
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create plot file")
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
