// Package specifiers defines the canonical naming scheme for electrical
// quantities used throughout dmkit. Every column of a DataFrame, every swept
// variable and every simulator output is addressed by a Specifier, so data
// from measurements, ngspice, Xyce and Hdev all end up with identical names.
package specifiers

import (
	"fmt"
	"strings"
)

// Quantity letters. These are the leading part of a canonical column name.
const (
	Voltage     = "V"
	Current     = "I"
	Charge      = "Q"
	Capacitance = "C"
	Resistance  = "R"
	Conductance = "G"
	Power       = "P"
	Frequency   = "FREQ"
	Temperature = "TEMP"
	Time        = "TIME"
	TransitFreq = "F_T"
	SSParaY     = "Y"
	SSParaZ     = "Z"
	SSParaS     = "S"
	SSParaH     = "H"
)

// Sub specifiers. They qualify a quantity without changing what it measures.
const (
	SubForced = "FORCED"
	SubAC     = "AC"
	SubReal   = "REAL"
	SubImag   = "IMAG"
	SubMag    = "MAG"
	SubPhase  = "PHASE"
	SubMax    = "MAX"
	SubMin    = "MIN"
	SubMean   = "MEAN"
	SubArea   = "AREA"
	SubPeri   = "PERI"
	SubDelta  = "DELTA"
	SubNoise  = "NOISE"
)

// unitByQuantity maps a quantity letter to its SI unit text.
var unitByQuantity = map[string]string{
	Voltage:     "V",
	Current:     "A",
	Charge:      "C",
	Capacitance: "F",
	Resistance:  "Ohm",
	Conductance: "S",
	Power:       "W",
	Frequency:   "Hz",
	Temperature: "K",
	Time:        "s",
	TransitFreq: "Hz",
	SSParaY:     "S",
	SSParaZ:     "Ohm",
	SSParaS:     "",
	SSParaH:     "",
}

var knownSubs = map[string]bool{
	SubForced: true,
	SubAC:     true,
	SubReal:   true,
	SubImag:   true,
	SubMag:    true,
	SubPhase:  true,
	SubMax:    true,
	SubMin:    true,
	SubMean:   true,
	SubArea:   true,
	SubPeri:   true,
	SubDelta:  true,
	SubNoise:  true,
}

// Specifier is one normalized quantity name: a quantity letter, the nodes it
// refers to and an ordered list of sub specifiers. The zero value is invalid.
type Specifier struct {
	Quantity string
	Nodes    []string
	Subs     []string
}

// New creates a specifier for the given quantity and nodes, e.g.
// New(Voltage, "B") for the base potential or New(Voltage, "B", "E") for the
// base-emitter voltage.
func New(quantity string, nodes ...string) Specifier {
	return Specifier{Quantity: quantity, Nodes: append([]string(nil), nodes...)}
}

// With returns a copy of s with the given sub specifiers appended. Duplicates
// are dropped so With is idempotent.
func (s Specifier) With(subs ...string) Specifier {
	out := Specifier{
		Quantity: s.Quantity,
		Nodes:    append([]string(nil), s.Nodes...),
		Subs:     append([]string(nil), s.Subs...),
	}
	for _, sub := range subs {
		if !out.Has(sub) {
			out.Subs = append(out.Subs, sub)
		}
	}
	return out
}

// String renders the canonical column name: quantity, underscore, all node
// names concatenated, then the sub specifiers each separated by a pipe.
// Examples: V_B, V_BE, I_C, V_B|FORCED, Y_21|REAL.
func (s Specifier) String() string {
	var b strings.Builder
	b.WriteString(s.Quantity)
	if len(s.Nodes) > 0 {
		b.WriteString("_")
		for _, node := range s.Nodes {
			b.WriteString(node)
		}
	}
	for _, sub := range s.Subs {
		b.WriteString("|")
		b.WriteString(sub)
	}
	return b.String()
}

// Unit returns the SI unit text of the quantity, or the empty string for
// dimensionless quantities.
func (s Specifier) Unit() string {
	return unitByQuantity[s.Quantity]
}

// Label returns a plot label like "V_BE (V)".
func (s Specifier) Label() string {
	unit := s.Unit()
	if unit == "" {
		return s.String()
	}
	return fmt.Sprintf("%s (%s)", s.String(), unit)
}

// Has reports whether the sub specifier is set.
func (s Specifier) Has(sub string) bool {
	for _, got := range s.Subs {
		if got == sub {
			return true
		}
	}
	return false
}

// HasNode reports whether the node is part of the specifier.
func (s Specifier) HasNode(node string) bool {
	for _, got := range s.Nodes {
		if got == node {
			return true
		}
	}
	return false
}

// IsVoltage reports whether the specifier is a voltage or potential.
func (s Specifier) IsVoltage() bool { return s.Quantity == Voltage }

// IsCurrent reports whether the specifier is a terminal current.
func (s Specifier) IsCurrent() bool { return s.Quantity == Current }

// IsPotential reports whether the specifier is a single-node potential.
func (s Specifier) IsPotential() bool { return s.Quantity == Voltage && len(s.Nodes) == 1 }

// Equal reports whether two specifiers name the same column.
func (s Specifier) Equal(other Specifier) bool {
	return s.String() == other.String()
}

// StripSubs returns the specifier without any sub specifiers.
func (s Specifier) StripSubs() Specifier {
	return Specifier{Quantity: s.Quantity, Nodes: append([]string(nil), s.Nodes...)}
}

// quantities ordered so that longer names win during parsing (FREQ before F).
var parseOrder = []string{
	Frequency, Temperature, Time, TransitFreq,
	Voltage, Current, Charge, Capacitance, Resistance, Conductance, Power,
	SSParaY, SSParaZ, SSParaS, SSParaH,
}

// Parse converts a canonical column string back into a Specifier. It is the
// inverse of String. Unknown sub specifiers are rejected, unknown quantities
// are rejected too.
func Parse(col string) (Specifier, error) {
	parts := strings.Split(col, "|")
	head := parts[0]
	subs := parts[1:]
	for _, sub := range subs {
		if !knownSubs[sub] {
			return Specifier{}, fmt.Errorf("specifiers: unknown sub specifier %q in %q", sub, col)
		}
	}

	for _, quantity := range parseOrder {
		if head == quantity {
			return Specifier{Quantity: quantity, Subs: append([]string(nil), subs...)}, nil
		}
		prefix := quantity + "_"
		if strings.HasPrefix(head, prefix) && quantity != TransitFreq {
			nodeStr := head[len(prefix):]
			if nodeStr == "" {
				return Specifier{}, fmt.Errorf("specifiers: missing nodes in %q", col)
			}
			return Specifier{
				Quantity: quantity,
				Nodes:    splitNodes(nodeStr),
				Subs:     append([]string(nil), subs...),
			}, nil
		}
	}
	return Specifier{}, fmt.Errorf("specifiers: cannot parse column name %q", col)
}

// MustParse is Parse for statically known strings; it panics on error.
func MustParse(col string) Specifier {
	s, err := Parse(col)
	if err != nil {
		panic(err)
	}
	return s
}

// splitNodes splits a concatenated node string. Upper case letters start a
// new node and lower case letters extend the previous one, so "BE" is two
// nodes while "Bi" is one. A digit extends a letter node ("B1E1" is two
// nodes) but follows a digit node as a new node, so S-parameter ports like
// "21" split into "2" and "1".
func splitNodes(nodeStr string) []string {
	var nodes []string
	for _, r := range nodeStr {
		if len(nodes) == 0 {
			nodes = append(nodes, string(r))
			continue
		}
		prev := nodes[len(nodes)-1]
		startsNew := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9' && prev[0] >= '0' && prev[0] <= '9')
		if startsNew {
			nodes = append(nodes, string(r))
			continue
		}
		nodes[len(nodes)-1] = prev + string(r)
	}
	return nodes
}

// FromSimulator normalizes a simulator-native column name to a Specifier.
// It understands ngspice/Xyce vocabulary: "v(b)" and "n_b" become V_B,
// "i(vc)" becomes I_C, "frequency" and "time" map to their specifiers.
// The second return value is false when no mapping exists.
func FromSimulator(name string) (Specifier, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch lower {
	case "frequency", "freq":
		return New(Frequency), true
	case "time":
		return New(Time), true
	case "temp", "temperature":
		return New(Temperature), true
	}
	if node, ok := cutWrap(lower, "v(", ")"); ok {
		return New(Voltage, strings.ToUpper(node)), true
	}
	if node, ok := cutWrap(lower, "i(v", ")"); ok {
		// current through the source forcing the node potential
		return New(Current, strings.ToUpper(node)), true
	}
	if node, ok := cutWrap(lower, "i(", ")"); ok {
		return New(Current, strings.ToUpper(node)), true
	}
	if strings.HasPrefix(lower, "n_") {
		return New(Voltage, strings.ToUpper(lower[2:])), true
	}
	if s, err := Parse(name); err == nil {
		return s, true
	}
	// Lowercase canonical names ("i_c", "v_b|forced") from measurement
	// files and TCAD tables parse after uppercasing.
	if s, err := Parse(strings.ToUpper(name)); err == nil {
		return s, true
	}
	return Specifier{}, false
}

func cutWrap(s, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) {
		inner := s[len(prefix) : len(s)-len(suffix)]
		if inner != "" {
			return inner, true
		}
	}
	return "", false
}
