// Package circuit describes device-under-test circuits as simulator-neutral
// netlists. A Circuit is a list of elements with nodes and parameters; the
// simulator backends render it into their native netlist syntax and hash the
// rendered text to key the simulation folder.
package circuit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Element types understood by the backends.
const (
	TypeResistor  = "R"
	TypeCapacitor = "C"
	TypeInductor  = "L"
	TypeVSource   = "V_Source"
	TypeISource   = "I_Source"
	TypeDiode     = "D"
	TypeBJT       = "Q"
	TypeMOSFET    = "M"
	TypeSubckt    = "X"
	TypeVAModule  = "N" // device from a compiled Verilog-A module
)

var validName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Element is one netlist entry: an element type, an instance name, the nodes
// it connects and its parameters. Parameters render sorted by key so the
// netlist text, and with it the DUT hash, is deterministic.
type Element struct {
	Type   string
	Name   string
	Nodes  []string
	Value  float64 // primary value for R, C, L and sources
	Model  string  // model or subcircuit reference, empty for plain elements
	Params map[string]float64
}

// Validate checks name and node syntax.
func (e Element) Validate() error {
	if !validName.MatchString(e.Name) {
		return fmt.Errorf("circuit: invalid element name %q", e.Name)
	}
	if len(e.Nodes) < 2 {
		return fmt.Errorf("circuit: element %s needs at least two nodes", e.Name)
	}
	for _, node := range e.Nodes {
		if node == "" || strings.ContainsAny(node, " \t") {
			return fmt.Errorf("circuit: element %s has invalid node %q", e.Name, node)
		}
	}
	return nil
}

// ParamString renders the parameter map as "key=value" pairs sorted by key.
func (e Element) ParamString() string {
	if len(e.Params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%s", k, FormatValue(e.Params[k]))
	}
	return strings.Join(pairs, " ")
}

// Circuit is an ordered list of elements plus verbatim netlist lines that are
// passed through untouched (includes, options and the like).
type Circuit struct {
	Elements      []Element
	VerbatimLines []string
}

// New validates all elements and returns the circuit.
func New(elements []Element, verbatim ...string) (*Circuit, error) {
	names := make(map[string]bool, len(elements))
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if names[e.Name] {
			return nil, fmt.Errorf("circuit: duplicate element name %s", e.Name)
		}
		names[e.Name] = true
	}
	return &Circuit{
		Elements:      append([]Element(nil), elements...),
		VerbatimLines: append([]string(nil), verbatim...),
	}, nil
}

// Sources returns the voltage and current source elements.
func (c *Circuit) Sources() (vSources, iSources []Element) {
	for _, e := range c.Elements {
		switch e.Type {
		case TypeVSource:
			vSources = append(vSources, e)
		case TypeISource:
			iSources = append(iSources, e)
		}
	}
	return vSources, iSources
}

// FindSourceForNode returns the voltage source whose first node is the given
// node. Backends use it to map swept potentials onto netlist sources.
func (c *Circuit) FindSourceForNode(node string) (Element, bool) {
	for _, e := range c.Elements {
		if e.Type == TypeVSource && len(e.Nodes) > 0 && strings.EqualFold(e.Nodes[0], node) {
			return e, true
		}
	}
	return Element{}, false
}

// Nodes returns all distinct node names in first-seen order, ground included.
func (c *Circuit) Nodes() []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, e := range c.Elements {
		for _, node := range e.Nodes {
			if !seen[node] {
				seen[node] = true
				nodes = append(nodes, node)
			}
		}
	}
	return nodes
}
