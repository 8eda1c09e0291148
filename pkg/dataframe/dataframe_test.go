package dataframe

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smxlab/dmkit/pkg/specifiers"
)

func TestSetColRowCountMismatch(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("V_B", []float64{0, 0.5, 1}))
	assert.Equal(t, 3, df.NRows())

	err := df.SetCol("I_C", []float64{1, 2})
	assert.Error(t, err)

	require.NoError(t, df.SetCol("I_C", []float64{1e-6, 2e-6, 3e-6}))
	assert.Equal(t, []string{"V_B", "I_C"}, df.Cols())
}

func TestUniqueRoundsAndSorts(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("V_C", []float64{1.0000001, 0.5, 1.0, 0.4999999}))

	unique, err := df.Unique("V_C", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.0}, unique)
}

func TestFilterAndSort(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("V_B", []float64{0.9, 0.3, 0.6}))
	require.NoError(t, df.SetCol("I_C", []float64{3, 1, 2}))

	sorted, err := df.SortBy("V_B")
	require.NoError(t, err)
	vb, _ := sorted.Col("V_B")
	ic, _ := sorted.Col("I_C")
	assert.Equal(t, []float64{0.3, 0.6, 0.9}, vb)
	assert.Equal(t, []float64{1, 2, 3}, ic)

	vbOrig, _ := df.Col("V_B")
	filtered := df.Filter(func(row int) bool { return vbOrig[row] > 0.5 })
	assert.Equal(t, 2, filtered.NRows())
}

func TestAppendUnionFillsNaN(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCol("V_B", []float64{0, 1}))
	b := New()
	require.NoError(t, b.SetCol("V_B", []float64{2}))
	require.NoError(t, b.SetCol("I_C", []float64{5}))

	joined, err := a.Append(b)
	require.NoError(t, err)
	assert.Equal(t, 3, joined.NRows())

	ic, ok := joined.Col("I_C")
	require.True(t, ok)
	assert.True(t, math.IsNaN(ic[0]))
	assert.True(t, math.IsNaN(ic[1]))
	assert.Equal(t, 5.0, ic[2])
}

func TestAppendRejectsKindMismatch(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCol("Y_21", []float64{1}))
	b := New()
	require.NoError(t, b.SetComplexCol("Y_21", []complex128{1i}))

	_, err := a.Append(b)
	assert.Error(t, err)
}

func TestComplexDerivation(t *testing.T) {
	df := New()
	require.NoError(t, df.SetComplexCol("Y_21", []complex128{3 + 4i, 1}))

	require.NoError(t, df.SplitComplex("Y_21"))
	re, ok := df.Col("Y_21|REAL")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 1}, re)

	require.NoError(t, df.MagPhase("Y_21"))
	mag, ok := df.Col("Y_21|MAG")
	require.True(t, ok)
	assert.InDelta(t, 5, mag[0], 1e-12)
	phase, _ := df.Col("Y_21|PHASE")
	assert.InDelta(t, 53.1301, phase[0], 1e-3)
}

func TestEnsureSpecifierCols(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("v(b)", []float64{0.1}))
	require.NoError(t, df.SetCol("i(vc)", []float64{1e-3}))
	require.NoError(t, df.SetCol("frequency", []float64{1e9}))
	require.NoError(t, df.SetCol("#no_info", []float64{0}))

	df.EnsureSpecifierCols()

	assert.True(t, df.HasCol(specifiers.New(specifiers.Voltage, "B").String()))
	assert.True(t, df.HasCol("I_C"))
	assert.True(t, df.HasCol("FREQ"))
	assert.True(t, df.HasCol("#no_info"), "unmappable columns keep their name")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("V_B", []float64{0, 0.5, 1}))
	require.NoError(t, df.SetComplexCol("Y_11", []complex128{1i, 2, 3 + 3i}))

	var buf bytes.Buffer
	require.NoError(t, df.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, df.Cols(), got.Cols())
	assert.Equal(t, df.NRows(), got.NRows())
	y11, ok := got.ComplexCol("Y_11")
	require.True(t, ok)
	assert.Equal(t, complex128(3+3i), y11[2])
}

func TestWriteCSV(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("V_B", []float64{0.5}))
	require.NoError(t, df.SetComplexCol("Y_11", []complex128{1 + 2i}))

	var buf bytes.Buffer
	require.NoError(t, df.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "V_B,Y_11|REAL,Y_11|IMAG", lines[0])
	assert.Contains(t, lines[1], "5e-01")
}

func TestRenameAndDrop(t *testing.T) {
	df := New()
	require.NoError(t, df.SetCol("n_b", []float64{1}))
	require.NoError(t, df.RenameCol("n_b", "V_B"))
	assert.False(t, df.HasCol("n_b"))
	assert.True(t, df.HasCol("V_B"))

	df.DropCol("V_B")
	assert.Equal(t, 0, df.NRows())
	assert.Empty(t, df.Cols())
}
