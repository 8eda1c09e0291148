package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smxlab/dmkit/pkg/dataframe"
)

func outputFrame(t *testing.T) *dataframe.DataFrame {
	t.Helper()

	df := dataframe.New()
	require.NoError(t, df.SetCol("V_C", []float64{0, 0.5, 1, 0, 0.5, 1}))
	require.NoError(t, df.SetCol("V_B", []float64{0.8, 0.8, 0.8, 0.9, 0.9, 0.9}))
	require.NoError(t, df.SetCol("I_C", []float64{0, 1e-3, 1.1e-3, 0, 8e-3, 8.5e-3}))
	return df
}

func TestBuildLinesGroupsByBias(t *testing.T) {
	df := outputFrame(t)

	lines, err := buildLines(df, View{XCol: "V_C", YCol: "I_C", GroupBy: "V_B"})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "V_B = 0.8 V", lines[0].name)
	assert.Equal(t, "V_B = 0.9 V", lines[1].name)
	require.Len(t, lines[0].xys, 3)
	assert.Equal(t, 0.5, lines[0].xys[1].X)
	assert.Equal(t, 1e-3, lines[0].xys[1].Y)
}

func TestPointsForDropsNonPositiveOnLogAxis(t *testing.T) {
	df := outputFrame(t)

	xys := pointsFor(df, View{XCol: "V_C", YCol: "I_C", YLog: true})
	// The two I_C = 0 rows fall off the log axis.
	assert.Len(t, xys, 4)
}

func TestRealValuesUsesMagnitude(t *testing.T) {
	df := dataframe.New()
	require.NoError(t, df.SetCol("FREQ", []float64{1e6, 1e7}))
	require.NoError(t, df.SetComplexCol("Y_21", []complex128{3 + 4i, 0 + 2i}))

	vals := realValues(df, "Y_21")
	require.Len(t, vals, 2)
	assert.InDelta(t, 5.0, vals[0], 1e-12)
	assert.InDelta(t, 2.0, vals[1], 1e-12)
}

func TestAxisLabel(t *testing.T) {
	assert.Equal(t, "V_C (V)", axisLabel("V_C"))
	assert.Equal(t, "I_C (A)", axisLabel("I_C"))
	assert.Equal(t, "not a specifier", axisLabel("not a specifier"))
}

func TestSaveWritesPNG(t *testing.T) {
	df := outputFrame(t)
	path := filepath.Join(t.TempDir(), "ic_vs_vc.png")

	err := Save(df, View{
		Title:   "Output characteristics",
		XCol:    "V_C",
		YCol:    "I_C",
		GroupBy: "V_B",
	}, path, DefaultSize, DefaultSize)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderUnknownColumn(t *testing.T) {
	df := outputFrame(t)

	_, err := Render(df, View{XCol: "V_X", YCol: "I_C"})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "i_c_vs_v_b.png", FileName(View{XCol: "V_B", YCol: "I_C"}, "png"))
	assert.Equal(t, "v_b_forced_vs_freq.pdf", FileName(View{XCol: "FREQ", YCol: "V_B|FORCED"}, ".pdf"))
}
