package mdm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMDM = `! VERSION 1.0
BEGIN_HEADER
END_HEADER

BEGIN_DB
ICCAP_VAR vc 1.0
ICCAP_VAR temp 300
#v(b) i(vc) i(vb)
0.70 1.0e-05 1.0e-07
0.75 3.0e-05 3.0e-07
0.80 1.0e-04 1.0e-06
END_DB

BEGIN_DB
ICCAP_VAR vc 2.0
ICCAP_VAR temp 300
#v(b) i(vc) i(vb)
0.70 1.2e-05 1.1e-07
0.75 3.5e-05 3.2e-07
END_DB
`

func TestReadMultiBlock(t *testing.T) {
	df, err := Read(sampleMDM)
	require.NoError(t, err)

	assert.Equal(t, 5, df.NRows())
	assert.True(t, df.HasCol("V_B"), "columns normalized to specifiers")
	assert.True(t, df.HasCol("I_C"))
	assert.True(t, df.HasCol("I_B"))

	// block constants become columns
	vcCol, ok := df.Col("vc")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1, 1, 2, 2}, vcCol)

	tempCol, ok := df.Col("TEMP")
	require.True(t, ok)
	assert.Equal(t, 300.0, tempCol[4])

	vb, _ := df.Col("V_B")
	assert.Equal(t, 0.7, vb[0])
	assert.Equal(t, 0.75, vb[4])
}

func TestReadWrappedRows(t *testing.T) {
	// row boundaries are not significant in the numeric block
	text := "BEGIN_DB\n#a b\n1 2 3\n4\nEND_DB\n"
	df, err := Read(text)
	require.NoError(t, err)
	assert.Equal(t, 2, df.NRows())
	b, _ := df.Col("b")
	assert.Equal(t, []float64{2, 4}, b)
}

func TestReadErrors(t *testing.T) {
	_, err := Read("no blocks here")
	assert.Error(t, err)

	_, err = Read("BEGIN_DB\n#a b\n1 2 3\nEND_DB\n")
	assert.Error(t, err, "ragged data")

	_, err = Read("BEGIN_DB\nICCAP_VAR vc notanumber\n#a\n1\nEND_DB\n")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meas.mdm")
	require.NoError(t, os.WriteFile(path, []byte(sampleMDM), 0o644))

	df, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, df.NRows())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.mdm"))
	assert.Error(t, err)
}
