package mcard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sgpCard(t *testing.T) *MCard {
	t.Helper()
	mc := New("sgp_npn", "npn")
	require.NoError(t, mc.Add(Parameter{Name: "IS", Value: 1e-16, Min: 0, Max: 1e-6, Unit: "A", Group: "dc"}))
	require.NoError(t, mc.Add(Parameter{Name: "BF", Value: 100, Min: 0, Max: 1e4, Group: "dc"}))
	require.NoError(t, mc.Add(Parameter{Name: "CJE", Value: 1e-14, Min: 0, Max: 1e-9, Unit: "F", Group: "cap"}))
	return mc
}

func TestAddAndBounds(t *testing.T) {
	mc := sgpCard(t)
	assert.Equal(t, 3, mc.Len())

	err := mc.Add(Parameter{Name: "is", Value: 1e-15})
	assert.Error(t, err, "duplicate, case-insensitive")

	err = mc.Add(Parameter{Name: "VAF", Value: -10, Min: 0, Max: 1e3})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	err = mc.Set("BF", 1e5)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, mc.Set("bf", 200))
	p, ok := mc.Get("BF")
	require.True(t, ok)
	assert.Equal(t, 200.0, p.Value)
}

func TestUnsetBoundsAreUnbounded(t *testing.T) {
	mc := New("m", "npn")
	require.NoError(t, mc.Add(Parameter{Name: "TNOM", Value: -300}))
	require.NoError(t, mc.Set("TNOM", 1e30))
}

func TestGroups(t *testing.T) {
	mc := sgpCard(t)
	assert.Equal(t, []string{"cap", "dc"}, mc.Groups())
}

func TestModelStatement(t *testing.T) {
	mc := sgpCard(t)
	stmt := mc.ModelStatement()
	assert.Contains(t, stmt, ".model sgp_npn npn")
	assert.Contains(t, stmt, "\n+ is=1e-16")
	assert.Contains(t, stmt, "\n+ bf=100")
}

func TestCanonicalOrderIndependent(t *testing.T) {
	a := New("m", "npn")
	require.NoError(t, a.Add(Parameter{Name: "A", Value: 1}))
	require.NoError(t, a.Add(Parameter{Name: "B", Value: 2}))

	b := New("m", "npn")
	require.NoError(t, b.Add(Parameter{Name: "B", Value: 2}))
	require.NoError(t, b.Add(Parameter{Name: "A", Value: 1}))

	assert.Equal(t, a.Canonical(), b.Canonical())

	require.NoError(t, b.Set("B", 3))
	assert.NotEqual(t, a.Canonical(), b.Canonical())
}

func TestYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sgp.yaml")

	mc := sgpCard(t)
	mc.Version = "1.0"
	require.NoError(t, mc.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sgp_npn", got.ModelName)
	assert.Equal(t, "1.0", got.Version)
	assert.Equal(t, mc.Canonical(), got.Canonical())
}

func TestLoadRejectsBadCards(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	require.NoError(t, os.WriteFile(path, []byte("model_type: npn\nparameters: []\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err, "missing model_name")

	require.NoError(t, os.WriteFile(path, []byte(
		"model_name: m\nmodel_type: npn\nparameters:\n  - name: x\n    value: 5\n    min: 0\n    max: 1\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestVAFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hicum.va")
	require.NoError(t, os.WriteFile(path, []byte("module hicum_l2(c, b, e);\nendmodule\n"), 0o644))

	va, err := LoadVA(path, "")
	require.NoError(t, err)
	assert.Equal(t, "hicum", va.Module)
	hash := va.TreeHash()

	require.NoError(t, os.WriteFile(path, []byte("module hicum_l2(c, b, e, s);\nendmodule\n"), 0o644))
	va2, err := LoadVA(path, "")
	require.NoError(t, err)
	assert.NotEqual(t, hash, va2.TreeHash())

	sub := filepath.Join(dir, "out")
	require.NoError(t, va.WriteTo(sub))
	_, err = os.Stat(filepath.Join(sub, "hicum.va"))
	assert.NoError(t, err)
}
