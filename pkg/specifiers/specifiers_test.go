package specifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "V_B", New(Voltage, "B").String())
	assert.Equal(t, "V_BE", New(Voltage, "B", "E").String())
	assert.Equal(t, "I_C", New(Current, "C").String())
	assert.Equal(t, "FREQ", New(Frequency).String())
	assert.Equal(t, "V_B|FORCED", New(Voltage, "B").With(SubForced).String())
	assert.Equal(t, "Y_21|REAL", New(SSParaY, "2", "1").With(SubReal).String())
}

func TestParseRoundTrip(t *testing.T) {
	cases := []Specifier{
		New(Voltage, "B"),
		New(Voltage, "B", "E"),
		New(Current, "C").With(SubForced),
		New(Frequency),
		New(Temperature),
		New(SSParaS, "1", "1").With(SubMag),
		New(Voltage, "B").With(SubForced, SubAC),
	}
	for _, want := range cases {
		got, err := Parse(want.String())
		require.NoError(t, err, want.String())
		assert.True(t, got.Equal(want), "round trip of %s gave %s", want, got)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse("X_B")
	assert.Error(t, err)

	_, err = Parse("V_B|WHATEVER")
	assert.Error(t, err)

	_, err = Parse("V_")
	assert.Error(t, err)
}

func TestWithIsIdempotent(t *testing.T) {
	s := New(Voltage, "B").With(SubForced).With(SubForced)
	assert.Equal(t, "V_B|FORCED", s.String())
}

func TestPredicates(t *testing.T) {
	vbe := New(Voltage, "B", "E")
	assert.True(t, vbe.IsVoltage())
	assert.False(t, vbe.IsPotential())
	assert.True(t, vbe.HasNode("B"))
	assert.False(t, vbe.HasNode("C"))

	vb := New(Voltage, "B").With(SubForced)
	assert.True(t, vb.IsPotential())
	assert.True(t, vb.Has(SubForced))
	assert.False(t, vb.StripSubs().Has(SubForced))
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "V", New(Voltage, "B").Unit())
	assert.Equal(t, "A", New(Current, "C").Unit())
	assert.Equal(t, "Hz", New(Frequency).Unit())
	assert.Equal(t, "K", New(Temperature).Unit())
	assert.Equal(t, "", New(SSParaS, "1", "1").Unit())
	assert.Equal(t, "I_C (A)", New(Current, "C").Label())
}

func TestFromSimulator(t *testing.T) {
	cases := map[string]string{
		"v(b)":       "V_B",
		"V(C)":       "V_C",
		"n_b":        "V_B",
		"i(vb)":      "I_B",
		"frequency":  "FREQ",
		"time":       "TIME",
		"temp":       "TEMP",
		"V_BE":       "V_BE",
		"i_c":        "I_C",
		"v_b|forced": "V_B|FORCED",
	}
	for in, want := range cases {
		got, ok := FromSimulator(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got.String(), in)
	}

	_, ok := FromSimulator("#no_info")
	assert.False(t, ok)
}

func TestSplitNodes(t *testing.T) {
	assert.Equal(t, []string{"B", "E"}, splitNodes("BE"))
	assert.Equal(t, []string{"B1", "E1"}, splitNodes("B1E1"))
	assert.Equal(t, []string{"Bi"}, splitNodes("Bi"))
	assert.Equal(t, []string{"2", "1"}, splitNodes("21"))
}
