// Package mcard holds compact-model parameter collections (model cards).
// A model card carries the parameters handed to the external simulators
// together with bounds so typos and runaway extractions are caught before a
// netlist is ever written. The compact models themselves (HICUM, PSP, SGP)
// live in the simulators or in compiled Verilog-A code and are never
// evaluated here.
package mcard

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/smxlab/dmkit/pkg/circuit"
)

// ErrOutOfBounds is returned when a parameter value violates its bounds.
var ErrOutOfBounds = errors.New("mcard: value out of bounds")

// Parameter is one model card entry. Min/Max of +-Inf mean unbounded.
type Parameter struct {
	Name        string  `yaml:"name"`
	Value       float64 `yaml:"value"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Unit        string  `yaml:"unit,omitempty"`
	Group       string  `yaml:"group,omitempty"`
	Description string  `yaml:"description,omitempty"`
}

// CheckBounds validates the current value against the bounds.
func (p Parameter) CheckBounds() error {
	if p.Value < p.Min || p.Value > p.Max {
		return fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrOutOfBounds, p.Name, p.Value, p.Min, p.Max)
	}
	return nil
}

// MCard is an ordered collection of model parameters plus model metadata.
type MCard struct {
	ModelName string // e.g. "hicum_l2", given to .model statements
	ModelType string // SPICE model type, e.g. "npn"
	Version   string
	VA        *VAFile // compiled Verilog-A source, nil for built-in models

	params []Parameter
	index  map[string]int // lower-cased name -> position
}

// New returns an empty model card.
func New(modelName, modelType string) *MCard {
	return &MCard{
		ModelName: modelName,
		ModelType: modelType,
		index:     make(map[string]int),
	}
}

// Add appends a parameter. Unset bounds default to unbounded. Adding a name
// twice is an error; parameter names are case-insensitive like in SPICE.
func (mc *MCard) Add(p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("mcard: parameter name must not be empty")
	}
	if p.Min == 0 && p.Max == 0 {
		p.Min = math.Inf(-1)
		p.Max = math.Inf(1)
	}
	if p.Min > p.Max {
		return fmt.Errorf("mcard: parameter %s has min %g > max %g", p.Name, p.Min, p.Max)
	}
	if err := p.CheckBounds(); err != nil {
		return err
	}
	key := strings.ToLower(p.Name)
	if _, dup := mc.index[key]; dup {
		return fmt.Errorf("mcard: parameter %s already exists", p.Name)
	}
	mc.index[key] = len(mc.params)
	mc.params = append(mc.params, p)
	return nil
}

// Get returns a parameter by case-insensitive name.
func (mc *MCard) Get(name string) (Parameter, bool) {
	i, ok := mc.index[strings.ToLower(name)]
	if !ok {
		return Parameter{}, false
	}
	return mc.params[i], true
}

// Set updates the value of an existing parameter, enforcing its bounds.
func (mc *MCard) Set(name string, value float64) error {
	i, ok := mc.index[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("mcard: unknown parameter %s", name)
	}
	p := mc.params[i]
	p.Value = value
	if err := p.CheckBounds(); err != nil {
		return err
	}
	mc.params[i] = p
	return nil
}

// Parameters returns a copy of all parameters in insertion order.
func (mc *MCard) Parameters() []Parameter {
	return append([]Parameter(nil), mc.params...)
}

// Len returns the number of parameters.
func (mc *MCard) Len() int { return len(mc.params) }

// Groups returns the distinct parameter groups, sorted.
func (mc *MCard) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, p := range mc.params {
		if p.Group != "" && !seen[p.Group] {
			seen[p.Group] = true
			groups = append(groups, p.Group)
		}
	}
	sort.Strings(groups)
	return groups
}

// ModelStatement renders the card as a SPICE .model statement, one parameter
// per continuation line in insertion order.
func (mc *MCard) ModelStatement() string {
	var b strings.Builder
	fmt.Fprintf(&b, ".model %s %s", mc.ModelName, mc.ModelType)
	for _, p := range mc.params {
		fmt.Fprintf(&b, "\n+ %s=%s", strings.ToLower(p.Name), circuit.FormatValue(p.Value))
	}
	return b.String()
}

// ParamStatements renders the card as .param lines for simulators that take
// model parameters globally.
func (mc *MCard) ParamStatements() string {
	lines := make([]string, len(mc.params))
	for i, p := range mc.params {
		lines[i] = fmt.Sprintf(".param %s=%s", strings.ToLower(p.Name), circuit.FormatValue(p.Value))
	}
	return strings.Join(lines, "\n")
}

// Canonical returns a deterministic text form used for hashing: model
// metadata plus name=value pairs sorted by name, and the VA tree hash when a
// VA file is attached.
func (mc *MCard) Canonical() string {
	pairs := make([]string, len(mc.params))
	for i, p := range mc.params {
		pairs[i] = fmt.Sprintf("%s=%.16e", strings.ToLower(p.Name), p.Value)
	}
	sort.Strings(pairs)
	parts := []string{mc.ModelName, mc.ModelType, mc.Version}
	parts = append(parts, pairs...)
	if mc.VA != nil {
		parts = append(parts, mc.VA.TreeHash())
	}
	return strings.Join(parts, ";")
}
