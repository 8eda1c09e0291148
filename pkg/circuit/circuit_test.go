package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	cases := map[string]float64{
		"1k":     1e3,
		"10u":    1e-5,
		"2.5meg": 2.5e6,
		"100n":   1e-7,
		"3p":     3e-12,
		"1e3":    1e3,
		"-2m":    -2e-3,
		"47":     47,
		"10uF":   1e-5,
		"4.7K":   4.7e3,
	}
	for in, want := range cases {
		got, err := ParseValue(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-18, in)
	}

	_, err := ParseValue("")
	assert.Error(t, err)
	_, err = ParseValue("abc")
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	cases := map[float64]string{
		0:      "0",
		1e3:    "1k",
		2.5e6:  "2.5meg",
		1e-5:   "10u",
		4.7e-8: "47n",
		47:     "47",
		-2200:  "-2.2k",
		3e-12:  "3p",
		1e-6:   "1u",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatValue(in), "%g", in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, v := range []float64{1e3, 2.5e6, 1e-5, 47, -2200, 3e-12, 1e15, 1e-18} {
		got, err := ParseValue(FormatValue(v))
		require.NoError(t, err)
		assert.InEpsilon(t, v, got, 1e-12)
	}
}

func TestNewRejectsBadElements(t *testing.T) {
	_, err := New([]Element{
		{Type: TypeResistor, Name: "1R", Nodes: []string{"a", "b"}},
	})
	assert.Error(t, err, "name must start with a letter")

	_, err = New([]Element{
		{Type: TypeResistor, Name: "R1", Nodes: []string{"a"}},
	})
	assert.Error(t, err, "too few nodes")

	_, err = New([]Element{
		{Type: TypeResistor, Name: "R1", Nodes: []string{"a", "b"}, Value: 1e3},
		{Type: TypeCapacitor, Name: "R1", Nodes: []string{"b", "0"}, Value: 1e-12},
	})
	assert.Error(t, err, "duplicate name")
}

func TestSourcesAndNodes(t *testing.T) {
	ckt, err := New([]Element{
		{Type: TypeVSource, Name: "VB", Nodes: []string{"B", "0"}},
		{Type: TypeVSource, Name: "VC", Nodes: []string{"C", "0"}},
		{Type: TypeISource, Name: "IE", Nodes: []string{"E", "0"}},
		{Type: TypeBJT, Name: "Q1", Nodes: []string{"C", "B", "E"}, Model: "hicum_l2"},
	})
	require.NoError(t, err)

	vSources, iSources := ckt.Sources()
	assert.Len(t, vSources, 2)
	assert.Len(t, iSources, 1)

	src, ok := ckt.FindSourceForNode("b")
	require.True(t, ok)
	assert.Equal(t, "VB", src.Name)

	_, ok = ckt.FindSourceForNode("E")
	assert.False(t, ok, "E is driven by a current source")

	assert.Equal(t, []string{"B", "0", "C", "E"}, ckt.Nodes())
}

func TestParamStringSorted(t *testing.T) {
	e := Element{
		Type:  TypeBJT,
		Name:  "Q1",
		Nodes: []string{"C", "B", "E"},
		Params: map[string]float64{
			"temp": 27,
			"area": 2,
			"m":    1,
		},
	}
	assert.Equal(t, "area=2 m=1 temp=27", e.ParamString())
}
