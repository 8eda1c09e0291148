// Package plot renders x/y views of data frames with gonum/plot.
//
// A View selects one x column, one y column and optionally a third column
// whose distinct values split the frame into separate legend lines, the
// usual way device characteristics are drawn (output curves per base
// voltage, gain over frequency per bias point).
package plot

import (
	"fmt"
	"math"
	"math/cmplx"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/specifiers"
)

// View describes one plot built from a data frame.
type View struct {
	Title string
	XCol  string
	YCol  string

	// GroupBy splits the frame into one line per distinct value of this
	// column. Empty means a single line.
	GroupBy string

	// XLog and YLog switch the axis to a log scale. Values <= 0 on a log
	// axis are dropped.
	XLog bool
	YLog bool
}

// groupDecimals controls how distinct GroupBy values are identified.
// Bias points written and read back through simulator output agree to
// well below a microvolt.
const groupDecimals = 9

// line is one legend entry with its points.
type line struct {
	name string
	xys  plotter.XYs
}

// Render builds the plot for the view. Complex y columns are drawn as
// magnitudes.
func Render(df *dataframe.DataFrame, view View) (*plot.Plot, error) {
	if !df.HasCol(view.XCol) {
		return nil, fmt.Errorf("plot: frame has no column %q", view.XCol)
	}
	if !df.HasCol(view.YCol) {
		return nil, fmt.Errorf("plot: frame has no column %q", view.YCol)
	}

	lines, err := buildLines(df, view)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = view.Title
	p.X.Label.Text = axisLabel(view.XCol)
	p.Y.Label.Text = axisLabel(view.YCol)
	if view.XLog {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if view.YLog {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Legend.Top = true
	p.Legend.Left = true

	for i, ln := range lines {
		pl, err := plotter.NewLine(ln.xys)
		if err != nil {
			return nil, fmt.Errorf("plot: line %q: %w", ln.name, err)
		}
		pl.Color = plotutil.Color(i)
		pl.Dashes = plotutil.Dashes(i)
		p.Add(pl)
		if ln.name != "" {
			p.Legend.Add(ln.name, pl)
		}
	}

	return p, nil
}

// Save renders the view and writes it to path. The format follows the
// file extension, .png and .pdf are the usual choices.
func Save(df *dataframe.DataFrame, view View, path string, width, height vg.Length) error {
	p, err := Render(df, view)
	if err != nil {
		return err
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("plot: save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func buildLines(df *dataframe.DataFrame, view View) ([]line, error) {
	if view.GroupBy == "" {
		xys := pointsFor(df, view)
		if len(xys) == 0 {
			return nil, fmt.Errorf("plot: no finite points for %s over %s", view.YCol, view.XCol)
		}
		return []line{{xys: xys}}, nil
	}

	groupVals, ok := df.Col(view.GroupBy)
	if !ok {
		return nil, fmt.Errorf("plot: frame has no real column %q", view.GroupBy)
	}
	unique, err := df.Unique(view.GroupBy, groupDecimals)
	if err != nil {
		return nil, err
	}

	var lines []line
	for _, val := range unique {
		val := val
		sub := df.Filter(func(row int) bool {
			return math.Abs(groupVals[row]-val) < 0.5*math.Pow(10, -groupDecimals)
		})
		xys := pointsFor(sub, view)
		if len(xys) == 0 {
			continue
		}
		lines = append(lines, line{
			name: legendLabel(view.GroupBy, val),
			xys:  xys,
		})
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("plot: no finite points for %s over %s", view.YCol, view.XCol)
	}
	return lines, nil
}

// pointsFor extracts finite x/y pairs, dropping non-positive values on
// log axes.
func pointsFor(df *dataframe.DataFrame, view View) plotter.XYs {
	xs := realValues(df, view.XCol)
	ys := realValues(df, view.YCol)

	xys := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		if view.XLog && x <= 0 {
			continue
		}
		if view.YLog && y <= 0 {
			continue
		}
		xys = append(xys, plotter.XY{X: x, Y: y})
	}
	return xys
}

// realValues returns the column as real values, magnitudes for complex
// columns.
func realValues(df *dataframe.DataFrame, name string) []float64 {
	if vals, ok := df.Col(name); ok {
		return vals
	}
	cvals, ok := df.ComplexCol(name)
	if !ok {
		return nil
	}
	out := make([]float64, len(cvals))
	for i, c := range cvals {
		out[i] = cmplx.Abs(c)
	}
	return out
}

// axisLabel derives an axis label from the column name, with the unit
// appended when the column parses as a specifier.
func axisLabel(col string) string {
	sp, err := specifiers.Parse(col)
	if err != nil {
		return col
	}
	return sp.Label()
}

// legendLabel renders one group value, like "V_B = 0.85 V".
func legendLabel(col string, val float64) string {
	text := fmt.Sprintf("%s = %.4g", col, val)
	sp, err := specifiers.Parse(col)
	if err != nil || sp.Unit() == "" {
		return text
	}
	return text + " " + sp.Unit()
}

// DefaultSize is a reasonable canvas for saved characteristics.
const DefaultSize = 15 * vg.Centimeter

// FileName builds a file name for a view, like "ic_vs_vb.png".
func FileName(view View, ext string) string {
	clean := func(s string) string {
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "|", "_")
		return s
	}
	return clean(view.YCol) + "_vs_" + clean(view.XCol) + "." + strings.TrimPrefix(ext, ".")
}
