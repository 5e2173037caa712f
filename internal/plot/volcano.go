// Package plot renders volcano and box plots for expression data.
package plot

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/inodb/vibe-expr/internal/expression"
)

// Colors used for significance and guide lines.
var (
	HighlightColor = color.RGBA{R: 255, A: 255}
	NeutralColor   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	GuideColor     = color.RGBA{B: 255, A: 128}
)

// Default figure size in inches.
const (
	DefaultWidth  = 10
	DefaultHeight = 8
)

// VolcanoPoints holds the volcano coordinates split by significance.
type VolcanoPoints struct {
	Significant    plotter.XYs
	NotSignificant plotter.XYs
	Skipped        int // records with missing or non-positive p-values
}

// Partition computes volcano coordinates: x is the fold change and y is
// -log10(p-value). A record is highlighted when its significant flag is set
// if the dataset carries one, else when it passes th.
func Partition(ds *expression.Dataset, th expression.Thresholds) VolcanoPoints {
	var pts VolcanoPoints
	for _, r := range ds.Records {
		if math.IsNaN(r.PValue) || math.IsNaN(r.FoldChange) || r.PValue <= 0 {
			pts.Skipped++
			continue
		}
		xy := plotter.XY{X: r.FoldChange, Y: -math.Log10(r.PValue)}

		sig := th.Passes(r)
		if ds.HasSignificantFlag {
			sig = r.Significant
		}
		if sig {
			pts.Significant = append(pts.Significant, xy)
		} else {
			pts.NotSignificant = append(pts.NotSignificant, xy)
		}
	}
	return pts
}

// Volcano builds a volcano plot with dashed guide lines at the thresholds.
func Volcano(ds *expression.Dataset, th expression.Thresholds) (*plot.Plot, error) {
	pts := Partition(ds, th)

	p := plot.New()
	p.Title.Text = "Volcano Plot: Differential Gene Expression"
	p.X.Label.Text = "Fold Change (log2)"
	p.Y.Label.Text = "-log10(p-value)"

	for _, group := range []struct {
		xys   plotter.XYs
		color color.Color
		name  string
	}{
		{pts.NotSignificant, NeutralColor, "not significant"},
		{pts.Significant, HighlightColor, "significant"},
	} {
		if len(group.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.xys)
		if err != nil {
			return nil, fmt.Errorf("volcano scatter: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = withAlpha(group.color, 0.6)
		p.Add(s)
		p.Legend.Add(group.name, s)
	}

	xmin, xmax, ymin, ymax := bounds(pts, th)
	guides := []plotter.XYs{
		{{X: th.FoldChange, Y: ymin}, {X: th.FoldChange, Y: ymax}},
		{{X: -th.FoldChange, Y: ymin}, {X: -th.FoldChange, Y: ymax}},
	}
	if yline := -math.Log10(th.PValue); isFinite(yline) {
		guides = append(guides, plotter.XYs{{X: xmin, Y: yline}, {X: xmax, Y: yline}})
	}
	for _, g := range guides {
		l, err := plotter.NewLine(g)
		if err != nil {
			return nil, fmt.Errorf("volcano guide line: %w", err)
		}
		l.LineStyle.Color = GuideColor
		l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(l)
	}

	return p, nil
}

// bounds returns the data range extended to include the guide lines.
func bounds(pts VolcanoPoints, th expression.Thresholds) (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = -th.FoldChange, th.FoldChange
	ymin, ymax = 0, 1
	if yline := -math.Log10(th.PValue); isFinite(yline) {
		ymax = math.Max(ymax, yline)
	}
	for _, xys := range []plotter.XYs{pts.Significant, pts.NotSignificant} {
		for _, xy := range xys {
			xmin = math.Min(xmin, xy.X)
			xmax = math.Max(xmax, xy.X)
			ymax = math.Max(ymax, xy.Y)
		}
	}
	return xmin, xmax, ymin, ymax
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func withAlpha(c color.Color, alpha float64) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(alpha * 255)}
}

// Save writes p to path. The format follows the extension (png, svg, pdf,
// jpg, eps, tif). Width and height are in inches; zero uses the defaults.
func Save(p *plot.Plot, path string, width, height float64) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if filepath.Ext(path) == "" {
		return fmt.Errorf("output %s has no file extension to choose a format", path)
	}
	if err := p.Save(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
