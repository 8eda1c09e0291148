package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/smxlab/dmkit/internal/config"
	"github.com/smxlab/dmkit/internal/dut"
	"github.com/smxlab/dmkit/internal/dut/hdev"
	"github.com/smxlab/dmkit/internal/dut/ngspice"
	"github.com/smxlab/dmkit/internal/dut/xyce"
	"github.com/smxlab/dmkit/pkg/circuit"
	"github.com/smxlab/dmkit/pkg/mcard"
	"github.com/smxlab/dmkit/pkg/specifiers"
	"github.com/smxlab/dmkit/pkg/sweep"
)

// jobFile is the YAML description of one simulation job: the device, the
// simulator backend and the sweeps to run.
type jobFile struct {
	Name      string `yaml:"name"`
	Simulator string `yaml:"simulator"`

	// Circuit simulators (ngspice, xyce)
	Netlist struct {
		Elements []jobElement `yaml:"elements"`
		Verbatim []string     `yaml:"verbatim"`
	} `yaml:"netlist"`
	MCard string `yaml:"mcard"` // path to a model card YAML file

	// TCAD (hdev)
	Structure []jobSection `yaml:"structure"`

	Sweeps []jobSweep `yaml:"sweeps"`
}

type jobElement struct {
	Name   string             `yaml:"name"`
	Type   string             `yaml:"type"`
	Nodes  []string           `yaml:"nodes"`
	Value  float64            `yaml:"value"`
	Model  string             `yaml:"model"`
	Params map[string]float64 `yaml:"params"`
}

type jobSection struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params"`
}

type jobSweep struct {
	Name     string             `yaml:"name"`
	Defs     []jobDef           `yaml:"defs"`
	Outputs  []string           `yaml:"outputs"`
	OtherVar map[string]float64 `yaml:"othervar"`
}

type jobDef struct {
	Var    string    `yaml:"var"`
	Type   string    `yaml:"type"`
	Values []float64 `yaml:"values"`
	Master string    `yaml:"master"` // only for SYNC
	Offset float64   `yaml:"offset"` // only for SYNC
}

// loadJob reads and validates a job file.
func loadJob(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job jobFile
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("job %s: %w", filepath.Base(path), err)
	}
	if job.Name == "" {
		return nil, fmt.Errorf("job %s: name must not be empty", filepath.Base(path))
	}
	if len(job.Sweeps) == 0 {
		return nil, fmt.Errorf("job %s: no sweeps", filepath.Base(path))
	}
	return &job, nil
}

// buildView assembles the simulator view for the job.
func (job *jobFile) buildView(cfg *config.Config) (dut.View, error) {
	switch job.Simulator {
	case "ngspice", "xyce":
		ckt, mc, err := job.buildCircuit()
		if err != nil {
			return nil, err
		}
		if job.Simulator == "ngspice" {
			return ngspice.New(job.Name, ckt, mc, cfg.Simulators.Ngspice), nil
		}
		return xyce.New(job.Name, ckt, mc, cfg.Simulators.Xyce), nil
	case "hdev":
		str, err := job.buildStructure()
		if err != nil {
			return nil, err
		}
		return hdev.New(job.Name, str, cfg.Simulators.Hdev), nil
	default:
		return nil, fmt.Errorf("job: unknown simulator %q", job.Simulator)
	}
}

func (job *jobFile) buildCircuit() (*circuit.Circuit, *mcard.MCard, error) {
	if len(job.Netlist.Elements) == 0 {
		return nil, nil, fmt.Errorf("job: %s needs a netlist", job.Simulator)
	}
	elements := make([]circuit.Element, len(job.Netlist.Elements))
	for i, e := range job.Netlist.Elements {
		elements[i] = circuit.Element{
			Type:   elementType(e.Type),
			Name:   e.Name,
			Nodes:  e.Nodes,
			Value:  e.Value,
			Model:  e.Model,
			Params: e.Params,
		}
	}
	ckt, err := circuit.New(elements, job.Netlist.Verbatim...)
	if err != nil {
		return nil, nil, err
	}

	var mc *mcard.MCard
	if job.MCard != "" {
		mc, err = mcard.Load(job.MCard)
		if err != nil {
			return nil, nil, err
		}
	}
	return ckt, mc, nil
}

// elementType maps the SPICE letters used in job files onto the circuit
// type constants. Sources carry longer constants so the letter alone does
// not name a type.
func elementType(t string) string {
	switch t {
	case "V", "v":
		return circuit.TypeVSource
	case "I", "i":
		return circuit.TypeISource
	}
	return t
}

func (job *jobFile) buildStructure() (*hdev.Structure, error) {
	if len(job.Structure) == 0 {
		return nil, fmt.Errorf("job: hdev needs a structure")
	}
	str := &hdev.Structure{}
	for _, sec := range job.Structure {
		section := hdev.Section{Name: sec.Name}
		keys := make([]string, 0, len(sec.Params))
		for k := range sec.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			section.Params = append(section.Params, hdev.Param{Key: k, Value: sec.Params[k]})
		}
		str.Sections = append(str.Sections, section)
	}
	return str, nil
}

// buildSweeps expands the job's sweep blocks.
func (job *jobFile) buildSweeps() ([]*sweep.Sweep, error) {
	sweeps := make([]*sweep.Sweep, 0, len(job.Sweeps))
	for _, js := range job.Sweeps {
		defs := make([]sweep.Def, len(js.Defs))
		for i, jd := range js.Defs {
			v, err := specifiers.Parse(jd.Var)
			if err != nil {
				return nil, fmt.Errorf("sweep %s: %w", js.Name, err)
			}
			def := sweep.Def{
				Var:      v,
				Type:     jd.Type,
				ValueDef: jd.Values,
				Offset:   jd.Offset,
			}
			if jd.Master != "" {
				def.Master, err = specifiers.Parse(jd.Master)
				if err != nil {
					return nil, fmt.Errorf("sweep %s: %w", js.Name, err)
				}
			}
			defs[i] = def
		}

		outputs := make([]specifiers.Specifier, len(js.Outputs))
		for i, out := range js.Outputs {
			sp, err := specifiers.Parse(out)
			if err != nil {
				return nil, fmt.Errorf("sweep %s: %w", js.Name, err)
			}
			outputs[i] = sp
		}

		sw, err := sweep.New(js.Name, defs, outputs, js.OtherVar)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sw)
	}
	return sweeps, nil
}
