package dut

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/specifiers"
	"github.com/smxlab/dmkit/pkg/sweep"
)

func testSweep(t *testing.T) *sweep.Sweep {
	t.Helper()
	sw, err := sweep.New("out", []sweep.Def{
		{Var: specifiers.MustParse("V_B"), Type: sweep.TypeLin, ValueDef: []float64{0, 1, 3}},
	}, nil, nil)
	require.NoError(t, err)
	return sw
}

func TestSimFolderLayout(t *testing.T) {
	m := NewMeas("npn1")
	sw := testSweep(t)

	folder := SimFolder("/tmp/sim", m, sw)
	assert.Equal(t, filepath.Join("/tmp/sim", "npn1_"+m.Hash(), "out_"+sw.Hash()), folder)
}

func TestMeasNotSimulatable(t *testing.T) {
	m := NewMeas("npn1")
	sw := testSweep(t)

	_, err := m.MakeInput(sw)
	assert.ErrorIs(t, err, ErrNotSimulatable)
	_, err = m.ParseOutput("anywhere", sw)
	assert.ErrorIs(t, err, ErrNotSimulatable)
}

func TestMeasHashTracksData(t *testing.T) {
	m := NewMeas("npn1")
	empty := m.Hash()
	assert.NotEqual(t, NewMeas("npn2").Hash(), empty)

	df := dataframe.New()
	require.NoError(t, df.SetCol("V_B", []float64{0, 1}))
	m.Data().Add("meas/fgummel/T300.00K", df)
	assert.NotEqual(t, empty, m.Hash())

	// Insertion order does not matter, only the key set.
	a, b := NewMeas("npn1"), NewMeas("npn1")
	a.Data().Add("meas/one", df)
	a.Data().Add("meas/two", df)
	b.Data().Add("meas/two", df)
	b.Data().Add("meas/one", df)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "T300.00K", TempKey(300))
	assert.Equal(t, "meas/fgummel/T298.50K", JoinKey("meas", "fgummel", TempKey(298.5)))
	assert.Equal(t, []string{"meas", "fgummel"}, SplitKey("meas/fgummel"))
}

func TestDataMap(t *testing.T) {
	d := NewData()
	df := dataframe.New()
	require.NoError(t, df.SetCol("V_B", []float64{0, 1}))

	d.Add("b/one", df)
	d.Add("a/two", df)

	assert.Equal(t, []string{"a/two", "b/one"}, d.Keys())
	got, ok := d.Get("b/one")
	require.True(t, ok)
	assert.Equal(t, 2, got.NRows())

	d.Remove("b/one")
	_, ok = d.Get("b/one")
	assert.False(t, ok)
}
