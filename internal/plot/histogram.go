// Package plot renders histograms of numeric dataset columns as PNG images.
package plot

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/JonMunkholm/ministats/internal/dataset"
)

const (
	// DefaultBins is the bin count used when the caller does not ask for one.
	DefaultBins = 30

	// DefaultMaxBins caps the bin count a caller may ask for.
	DefaultMaxBins = 500
)

// Bin is one equal-width histogram bucket. Min is inclusive; Max is exclusive
// except for the last bin, which is closed.
type Bin struct {
	Min   float64
	Max   float64
	Count int
}

// Options controls the rendered image.
type Options struct {
	Width   vg.Length
	Height  vg.Length
	Fill    color.Color
	MaxBins int
}

// DefaultOptions renders a 6x4 inch image.
var DefaultOptions = Options{
	Width:   6 * vg.Inch,
	Height:  4 * vg.Inch,
	Fill:    color.RGBA{R: 31, G: 119, B: 180, A: 255},
	MaxBins: DefaultMaxBins,
}

// Renderer draws column histograms.
type Renderer struct {
	opts Options
}

// NewRenderer returns a Renderer; zero fields in opts fall back to DefaultOptions.
func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions.Width
	}
	if opts.Height <= 0 {
		opts.Height = DefaultOptions.Height
	}
	if opts.Fill == nil {
		opts.Fill = DefaultOptions.Fill
	}
	if opts.MaxBins <= 0 {
		opts.MaxBins = DefaultOptions.MaxBins
	}
	return &Renderer{opts: opts}
}

// Render draws the histogram of a numeric column. Nulls are dropped before
// binning; a column left with no values renders as an empty, labelled plot.
// A zero bin count selects DefaultBins.
//
// Checks run in order: the column must exist, be numeric, and the bin count
// must lie in 1..MaxBins. Nothing is drawn when any of them fails.
func (r *Renderer) Render(t *dataset.Table, column string, bins int) ([]byte, error) {
	c, ok := t.Column(column)
	if !ok {
		return nil, dataset.Errorf(dataset.KindNotFound, "Column '%s' not found.", column)
	}
	if !c.IsNumeric() {
		return nil, dataset.Errorf(dataset.KindUnsupportedType,
			"Column '%s' is not numeric and cannot be plotted as histogram.", column)
	}
	if bins == 0 {
		bins = DefaultBins
	}
	if bins < 1 || bins > r.opts.MaxBins {
		return nil, dataset.Errorf(dataset.KindBadInput,
			"Query param 'bins' must be between 1 and %d.", r.opts.MaxBins)
	}

	hist := BinValues(c.Numbers(), bins)
	if len(hist) > 0 && math.IsInf(hist[len(hist)-1].Max-hist[0].Min, 0) {
		return nil, dataset.Errorf(dataset.KindBadInput,
			"Column '%s' spans a range too wide to plot.", column)
	}
	return r.draw(column, hist)
}

func (r *Renderer) draw(column string, bins []Bin) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Histogram: " + column
	p.X.Label.Text = column
	p.Y.Label.Text = "count"

	if len(bins) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		hist := &plotter.Histogram{
			Bins:      make([]plotter.HistogramBin, len(bins)),
			Width:     bins[0].Max - bins[0].Min,
			FillColor: r.opts.Fill,
			LineStyle: plotter.DefaultLineStyle,
		}
		for i, b := range bins {
			hist.Bins[i] = plotter.HistogramBin{Min: b.Min, Max: b.Max, Weight: float64(b.Count)}
		}
		p.Add(hist)
	}

	wt, err := p.WriterTo(r.opts.Width, r.opts.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("render histogram: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode histogram: %w", err)
	}
	return buf.Bytes(), nil
}

// BinValues counts values into n equal-width bins spanning [min, max].
// Non-finite values are ignored. It returns nil when no finite values remain.
//
// A range too narrow to split into n distinct edges, a constant sample
// included, is widened by max(0.5, |v|*1e-9) on each side. Edges and indexes
// are computed on halved values, so ranges near ±MaxFloat64 never overflow.
func BinValues(values []float64, n int) []Bin {
	if n <= 0 {
		n = DefaultBins
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	finite := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if finite == 0 {
		return nil
	}

	step := halfStep(lo, hi, n)
	if step == 0 {
		lo = math.Max(lo-pad(lo), -math.MaxFloat64)
		hi = math.Min(hi+pad(hi), math.MaxFloat64)
		step = halfStep(lo, hi, n)
	}

	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Min = edge(lo, step, i)
		if i > 0 {
			bins[i-1].Max = bins[i].Min
		}
	}
	bins[n-1].Max = hi

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := int(math.Floor((v/2 - lo/2) / step))
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}

// halfStep is half of one bin width. It is zero when the range is below
// float resolution for n bins.
func halfStep(lo, hi float64, n int) float64 {
	return (hi/2 - lo/2) / float64(n)
}

// edge returns the left edge of bin i. Adding the half step twice keeps every
// intermediate sum inside [lo, hi].
func edge(lo, step float64, i int) float64 {
	x := float64(i) * step
	return lo + x + x
}

func pad(v float64) float64 {
	return math.Max(0.5, math.Abs(v)*1e-9)
}
