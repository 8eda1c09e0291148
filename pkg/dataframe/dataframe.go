// Package dataframe provides the semantic data container of dmkit. A
// DataFrame is a column-oriented table whose columns are addressed by
// canonical specifier strings, holding either real or complex values. It is
// the common currency between measurement readers, simulator backends and the
// plotting/report layer.
package dataframe

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/smxlab/dmkit/pkg/specifiers"
)

// DataFrame is a table of named columns with a shared row count. All columns
// are either []float64 or []complex128. The zero value is not usable, use New.
type DataFrame struct {
	order   []string
	real    map[string][]float64
	complex map[string][]complex128
	nRows   int
}

// New returns an empty DataFrame.
func New() *DataFrame {
	return &DataFrame{
		real:    make(map[string][]float64),
		complex: make(map[string][]complex128),
	}
}

// NRows returns the number of rows.
func (df *DataFrame) NRows() int { return df.nRows }

// Cols returns the column names in insertion order.
func (df *DataFrame) Cols() []string {
	return append([]string(nil), df.order...)
}

// HasCol reports whether the column exists, real or complex.
func (df *DataFrame) HasCol(name string) bool {
	_, okR := df.real[name]
	_, okC := df.complex[name]
	return okR || okC
}

// IsComplex reports whether the column holds complex values.
func (df *DataFrame) IsComplex(name string) bool {
	_, ok := df.complex[name]
	return ok
}

// SetCol sets a real column. The first column fixes the row count, every
// further column must match it. Overwriting an existing column is allowed.
func (df *DataFrame) SetCol(name string, values []float64) error {
	if err := df.checkLen(name, len(values)); err != nil {
		return err
	}
	if !df.HasCol(name) {
		df.order = append(df.order, name)
	}
	delete(df.complex, name)
	df.real[name] = append([]float64(nil), values...)
	return nil
}

// SetComplexCol sets a complex column, with the same row count rules as SetCol.
func (df *DataFrame) SetComplexCol(name string, values []complex128) error {
	if err := df.checkLen(name, len(values)); err != nil {
		return err
	}
	if !df.HasCol(name) {
		df.order = append(df.order, name)
	}
	delete(df.real, name)
	df.complex[name] = append([]complex128(nil), values...)
	return nil
}

func (df *DataFrame) checkLen(name string, n int) error {
	if len(df.order) == 0 {
		df.nRows = n
		return nil
	}
	if df.HasCol(name) && len(df.order) == 1 {
		df.nRows = n
		return nil
	}
	if n != df.nRows {
		return fmt.Errorf("dataframe: column %s has %d rows, frame has %d", name, n, df.nRows)
	}
	return nil
}

// Col returns a copy of a real column. Complex columns are not returned here,
// use ComplexCol for those.
func (df *DataFrame) Col(name string) ([]float64, bool) {
	values, ok := df.real[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), values...), true
}

// ComplexCol returns a copy of a complex column.
func (df *DataFrame) ComplexCol(name string) ([]complex128, bool) {
	values, ok := df.complex[name]
	if !ok {
		return nil, false
	}
	return append([]complex128(nil), values...), true
}

// DropCol removes a column. Removing an unknown column is a no-op.
func (df *DataFrame) DropCol(name string) {
	if !df.HasCol(name) {
		return
	}
	delete(df.real, name)
	delete(df.complex, name)
	for i, col := range df.order {
		if col == name {
			df.order = append(df.order[:i], df.order[i+1:]...)
			break
		}
	}
	if len(df.order) == 0 {
		df.nRows = 0
	}
}

// RenameCol renames a column keeping its position and values.
func (df *DataFrame) RenameCol(oldName, newName string) error {
	if !df.HasCol(oldName) {
		return fmt.Errorf("dataframe: no column %s", oldName)
	}
	if oldName == newName {
		return nil
	}
	if df.HasCol(newName) {
		return fmt.Errorf("dataframe: column %s already exists", newName)
	}
	if values, ok := df.real[oldName]; ok {
		df.real[newName] = values
		delete(df.real, oldName)
	}
	if values, ok := df.complex[oldName]; ok {
		df.complex[newName] = values
		delete(df.complex, oldName)
	}
	for i, col := range df.order {
		if col == oldName {
			df.order[i] = newName
			break
		}
	}
	return nil
}

// Unique returns the sorted distinct values of a real column, rounded to the
// given number of decimals. Rounding keeps numerically identical bias points
// from simulator output and measurement files from splitting apart.
func (df *DataFrame) Unique(name string, decimals int) ([]float64, error) {
	values, ok := df.real[name]
	if !ok {
		return nil, fmt.Errorf("dataframe: no real column %s", name)
	}
	scale := math.Pow(10, float64(decimals))
	seen := make(map[float64]bool, len(values))
	var unique []float64
	for _, v := range values {
		rounded := math.Round(v*scale) / scale
		if !seen[rounded] {
			seen[rounded] = true
			unique = append(unique, rounded)
		}
	}
	sort.Float64s(unique)
	return unique, nil
}

// Filter returns a new frame with the rows for which keep returns true.
func (df *DataFrame) Filter(keep func(row int) bool) *DataFrame {
	var rows []int
	for i := 0; i < df.nRows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return df.selectRows(rows)
}

// SortBy returns a new frame whose rows are ordered ascending by the given
// real column.
func (df *DataFrame) SortBy(name string) (*DataFrame, error) {
	values, ok := df.real[name]
	if !ok {
		return nil, fmt.Errorf("dataframe: no real column %s", name)
	}
	rows := make([]int, df.nRows)
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return values[rows[a]] < values[rows[b]]
	})
	return df.selectRows(rows), nil
}

func (df *DataFrame) selectRows(rows []int) *DataFrame {
	out := New()
	for _, name := range df.order {
		if values, ok := df.real[name]; ok {
			selected := make([]float64, len(rows))
			for i, row := range rows {
				selected[i] = values[row]
			}
			out.SetCol(name, selected) //nolint:errcheck // same shape as source
			continue
		}
		values := df.complex[name]
		selected := make([]complex128, len(rows))
		for i, row := range rows {
			selected[i] = values[row]
		}
		out.SetComplexCol(name, selected) //nolint:errcheck // same shape as source
	}
	return out
}

// Append concatenates the rows of other below df into a new frame. The column
// set is the union of both frames; missing real values are filled with NaN.
// Appending a real column onto a complex one (or vice versa) is an error.
func (df *DataFrame) Append(other *DataFrame) (*DataFrame, error) {
	out := New()
	order := append([]string(nil), df.order...)
	for _, name := range other.order {
		if !df.HasCol(name) {
			order = append(order, name)
		}
	}
	for _, name := range order {
		if df.IsComplex(name) != other.IsComplex(name) && df.HasCol(name) && other.HasCol(name) {
			return nil, fmt.Errorf("dataframe: column %s is complex in one frame only", name)
		}
		if df.IsComplex(name) || other.IsComplex(name) {
			values := make([]complex128, 0, df.nRows+other.nRows)
			values = append(values, complexOrNaN(df, name)...)
			values = append(values, complexOrNaN(other, name)...)
			if err := out.SetComplexCol(name, values); err != nil {
				return nil, err
			}
			continue
		}
		values := make([]float64, 0, df.nRows+other.nRows)
		values = append(values, realOrNaN(df, name)...)
		values = append(values, realOrNaN(other, name)...)
		if err := out.SetCol(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func realOrNaN(df *DataFrame, name string) []float64 {
	if values, ok := df.real[name]; ok {
		return values
	}
	values := make([]float64, df.nRows)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}

func complexOrNaN(df *DataFrame, name string) []complex128 {
	if values, ok := df.complex[name]; ok {
		return values
	}
	values := make([]complex128, df.nRows)
	nan := complex(math.NaN(), math.NaN())
	for i := range values {
		values[i] = nan
	}
	return values
}

// SplitComplex derives REAL and IMAG columns from a complex column. The new
// column names carry the canonical sub specifiers.
func (df *DataFrame) SplitComplex(name string) error {
	values, ok := df.complex[name]
	if !ok {
		return fmt.Errorf("dataframe: no complex column %s", name)
	}
	spec, err := specifiers.Parse(name)
	if err != nil {
		return fmt.Errorf("dataframe: cannot split %s: %w", name, err)
	}
	re := make([]float64, len(values))
	im := make([]float64, len(values))
	for i, v := range values {
		re[i] = real(v)
		im[i] = imag(v)
	}
	if err := df.SetCol(spec.With(specifiers.SubReal).String(), re); err != nil {
		return err
	}
	return df.SetCol(spec.With(specifiers.SubImag).String(), im)
}

// MagPhase derives MAG and PHASE (degrees) columns from a complex column.
func (df *DataFrame) MagPhase(name string) error {
	values, ok := df.complex[name]
	if !ok {
		return fmt.Errorf("dataframe: no complex column %s", name)
	}
	spec, err := specifiers.Parse(name)
	if err != nil {
		return fmt.Errorf("dataframe: cannot derive from %s: %w", name, err)
	}
	mag := make([]float64, len(values))
	phase := make([]float64, len(values))
	for i, v := range values {
		mag[i] = cmplx.Abs(v)
		phase[i] = cmplx.Phase(v) * 180 / math.Pi
	}
	if err := df.SetCol(spec.With(specifiers.SubMag).String(), mag); err != nil {
		return err
	}
	return df.SetCol(spec.With(specifiers.SubPhase).String(), phase)
}

// EnsureSpecifierCols renames all simulator-native column names to their
// canonical specifier form. Columns with no known mapping keep their name.
func (df *DataFrame) EnsureSpecifierCols() {
	for _, name := range df.Cols() {
		spec, ok := specifiers.FromSimulator(name)
		if !ok {
			continue
		}
		canonical := spec.String()
		if canonical == name || df.HasCol(canonical) {
			continue
		}
		df.RenameCol(name, canonical) //nolint:errcheck // both names checked above
	}
}
