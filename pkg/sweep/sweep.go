// Package sweep describes operating-point sweeps independent of any
// simulator backend. A Sweep is the single source of truth for what a
// simulation or measurement covers: the swept variables, their spacing, the
// requested outputs and the ambient conditions. Backends turn a Sweep into
// their native input syntax, and the sweep hash keys the simulation folder.
package sweep

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/smxlab/dmkit/internal/hashutil"
	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/specifiers"
)

// Sweep types.
const (
	TypeLin  = "LIN"  // value def [start, stop, n], linearly spaced
	TypeLog  = "LOG"  // value def [log10 start, log10 stop, n], decade spaced
	TypeCon  = "CON"  // value def [value], constant
	TypeList = "LIST" // value def holds the explicit values
	TypeSync = "SYNC" // master's values plus a constant offset
)

// Def is one swept variable.
type Def struct {
	Var      specifiers.Specifier
	Type     string
	ValueDef []float64
	Master   specifiers.Specifier // only for SYNC
	Offset   float64              // only for SYNC
}

// Values expands the definition into concrete values. For SYNC defs the
// master's values must be passed in.
func (d Def) Values(master []float64) ([]float64, error) {
	switch d.Type {
	case TypeLin:
		if len(d.ValueDef) != 3 {
			return nil, fmt.Errorf("sweep: LIN needs [start, stop, n], got %v", d.ValueDef)
		}
		dst := make([]float64, int(d.ValueDef[2]))
		return floats.Span(dst, d.ValueDef[0], d.ValueDef[1]), nil
	case TypeLog:
		if len(d.ValueDef) != 3 {
			return nil, fmt.Errorf("sweep: LOG needs [log start, log stop, n], got %v", d.ValueDef)
		}
		dst := make([]float64, int(d.ValueDef[2]))
		floats.Span(dst, d.ValueDef[0], d.ValueDef[1])
		for i, exp := range dst {
			dst[i] = math.Pow(10, exp)
		}
		return dst, nil
	case TypeCon:
		if len(d.ValueDef) != 1 {
			return nil, fmt.Errorf("sweep: CON needs exactly one value, got %v", d.ValueDef)
		}
		return []float64{d.ValueDef[0]}, nil
	case TypeList:
		if len(d.ValueDef) == 0 {
			return nil, fmt.Errorf("sweep: LIST needs values for %s", d.Var)
		}
		return append([]float64(nil), d.ValueDef...), nil
	case TypeSync:
		if master == nil {
			return nil, fmt.Errorf("sweep: SYNC def %s has no master values", d.Var)
		}
		values := make([]float64, len(master))
		for i, v := range master {
			values[i] = v + d.Offset
		}
		return values, nil
	default:
		return nil, fmt.Errorf("sweep: unknown sweep type %q for %s", d.Type, d.Var)
	}
}

// Sweep is a named set of sweep definitions plus requested outputs and
// ambient conditions. Defs are ordered outermost first.
type Sweep struct {
	Name     string
	Defs     []Def
	Outputs  []specifiers.Specifier
	OtherVar map[string]float64
}

// New builds and validates a sweep.
func New(name string, defs []Def, outputs []specifiers.Specifier, otherVar map[string]float64) (*Sweep, error) {
	sw := &Sweep{
		Name:     name,
		Defs:     append([]Def(nil), defs...),
		Outputs:  append([]specifiers.Specifier(nil), outputs...),
		OtherVar: make(map[string]float64, len(otherVar)),
	}
	for k, v := range otherVar {
		sw.OtherVar[k] = v
	}
	if err := sw.Check(); err != nil {
		return nil, err
	}
	return sw, nil
}

// Check validates the sweep definition: known types, SYNC masters present and
// defined before their synced variable, value defs consistent.
func (sw *Sweep) Check() error {
	if sw.Name == "" {
		return fmt.Errorf("sweep: name must not be empty")
	}
	seen := make(map[string]int)
	for i, def := range sw.Defs {
		varName := def.Var.String()
		if _, dup := seen[varName]; dup {
			return fmt.Errorf("sweep: variable %s swept twice", varName)
		}
		seen[varName] = i

		switch def.Type {
		case TypeLin, TypeLog, TypeCon, TypeList:
			if _, err := def.Values(nil); err != nil {
				return err
			}
		case TypeSync:
			masterIdx, ok := seen[def.Master.String()]
			if !ok {
				return fmt.Errorf("sweep: SYNC def %s references unknown master %s", varName, def.Master)
			}
			if masterIdx >= i {
				return fmt.Errorf("sweep: master %s must be defined before %s", def.Master, varName)
			}
			if sw.Defs[masterIdx].Type == TypeSync {
				return fmt.Errorf("sweep: master of %s is itself SYNC", varName)
			}
		default:
			return fmt.Errorf("sweep: unknown sweep type %q for %s", def.Type, varName)
		}
	}
	return nil
}

// Temperature returns the ambient temperature in Kelvin, defaulting to 300 K
// when the sweep does not set one.
func (sw *Sweep) Temperature() float64 {
	if temp, ok := sw.OtherVar[specifiers.Temperature]; ok {
		return temp
	}
	return 300.0
}

// CreateFrame expands the sweep into its operating-point table: the cartesian
// product of all non-SYNC defs in definition order (outermost varies
// slowest), with SYNC columns aligned to their master. Output columns are not
// part of the frame, they are what the simulator fills in.
func (sw *Sweep) CreateFrame() (*dataframe.DataFrame, error) {
	if err := sw.Check(); err != nil {
		return nil, err
	}

	type expanded struct {
		def    Def
		values []float64
	}
	var prod []expanded
	byVar := make(map[string][]float64)
	for _, def := range sw.Defs {
		if def.Type == TypeSync {
			continue
		}
		values, err := def.Values(nil)
		if err != nil {
			return nil, err
		}
		prod = append(prod, expanded{def: def, values: values})
		byVar[def.Var.String()] = values
	}

	nRows := 1
	for _, e := range prod {
		nRows *= len(e.values)
	}

	df := dataframe.New()
	repeat := nRows
	for _, e := range prod {
		repeat /= len(e.values)
		col := make([]float64, 0, nRows)
		for len(col) < nRows {
			for _, v := range e.values {
				for r := 0; r < repeat; r++ {
					col = append(col, v)
				}
			}
		}
		if err := df.SetCol(e.def.Var.String(), col); err != nil {
			return nil, err
		}
	}

	for _, def := range sw.Defs {
		if def.Type != TypeSync {
			continue
		}
		masterCol, ok := df.Col(def.Master.String())
		if !ok {
			return nil, fmt.Errorf("sweep: master column %s missing", def.Master)
		}
		values := make([]float64, len(masterCol))
		for i, v := range masterCol {
			values[i] = v + def.Offset
		}
		if err := df.SetCol(def.Var.String(), values); err != nil {
			return nil, err
		}
	}
	return df, nil
}

// Hash returns the MD5 over the canonical textual representation of the
// sweep. Two sweeps with equal content hash equal, independent of how they
// were constructed. The name is not part of the hash; it only prefixes the
// simulation folder for readability.
func (sw *Sweep) Hash() string {
	return hashutil.Hash(sw.canonical())
}

// FolderName returns the simulation subfolder name for this sweep.
func (sw *Sweep) FolderName() string {
	return sw.Name + "_" + sw.Hash()
}

func (sw *Sweep) canonical() string {
	var b strings.Builder
	for _, def := range sw.Defs {
		fmt.Fprintf(&b, "%s:%s:%v", def.Var, def.Type, def.ValueDef)
		if def.Type == TypeSync {
			fmt.Fprintf(&b, ":%s:%g", def.Master, def.Offset)
		}
		b.WriteString(";")
	}
	outputs := make([]string, len(sw.Outputs))
	for i, out := range sw.Outputs {
		outputs[i] = out.String()
	}
	sort.Strings(outputs)
	b.WriteString(strings.Join(outputs, ","))
	b.WriteString(";")

	keys := make([]string, 0, len(sw.OtherVar))
	for k := range sw.OtherVar {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%g;", k, sw.OtherVar[k])
	}
	return b.String()
}
