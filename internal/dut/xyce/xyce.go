// Package xyce renders circuits and sweeps into Xyce netlists and parses the
// .prn output tables. Bias sweeps map onto nested .DC statements; frequency
// sweeps run as .AC with the bias points stepped via .STEP, so one netlist
// always covers the whole sweep.
package xyce

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smxlab/dmkit/internal/config"
	"github.com/smxlab/dmkit/internal/dut"
	"github.com/smxlab/dmkit/internal/hashutil"
	"github.com/smxlab/dmkit/pkg/circuit"
	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/mcard"
	"github.com/smxlab/dmkit/pkg/specifiers"
	"github.com/smxlab/dmkit/pkg/sweep"
)

const (
	inputFileName  = "input.cir"
	outputFileName = "output.prn"
	outputSuffix   = ".prn"
	logFileName    = "sim.log"

	banner       = "Xyce Parallel Electronic Simulator"
	footerPrefix = "End of Xyce(TM)"
)

// Device is a circuit bound to the Xyce backend.
type Device struct {
	name string
	ckt  *circuit.Circuit
	mc   *mcard.MCard
	cmd  config.CommandConfig
}

// New returns a Xyce device view.
func New(name string, ckt *circuit.Circuit, mc *mcard.MCard, cmd config.CommandConfig) *Device {
	return &Device{name: name, ckt: ckt, mc: mc, cmd: cmd}
}

// Name implements dut.View.
func (d *Device) Name() string { return d.name }

// Hash fingerprints the sweep-independent netlist plus the model card.
func (d *Device) Hash() string {
	parts := []string{d.staticNetlist()}
	if d.mc != nil {
		parts = append(parts, d.mc.Canonical())
	}
	return hashutil.Hash(parts...)
}

// InputFileName implements dut.View.
func (d *Device) InputFileName() string { return inputFileName }

// OutputSuffix implements dut.View.
func (d *Device) OutputSuffix() string { return outputSuffix }

// SimCommand implements dut.View.
func (d *Device) SimCommand() []string {
	argv := []string{d.cmd.Command}
	argv = append(argv, d.cmd.Args...)
	return append(argv, inputFileName)
}

// MakeInput renders the .cir netlist for the sweep.
func (d *Device) MakeInput(sw *sweep.Sweep) (string, error) {
	biasDefs, freqDef, err := splitDefs(sw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.name)
	fmt.Fprintf(&b, ".OPTIONS DEVICE TEMP=%.2f\n", sw.Temperature()-273.15)
	for _, line := range d.ckt.VerbatimLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(d.staticNetlist())

	if freqDef == nil {
		dcStmt, err := d.dcStatement(biasDefs)
		if err != nil {
			return "", err
		}
		b.WriteString(dcStmt)
		b.WriteString("\n")
		vars, err := d.printVariables(sw, biasDefs, false)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ".PRINT DC FORMAT=NOINDEX FILE=%s %s\n", outputFileName, strings.Join(vars, " "))
	} else {
		for _, def := range biasDefs {
			stepStmt, err := d.stepStatement(def)
			if err != nil {
				return "", err
			}
			b.WriteString(stepStmt)
			b.WriteString("\n")
		}
		acStmt, err := acStatement(*freqDef)
		if err != nil {
			return "", err
		}
		b.WriteString(acStmt)
		b.WriteString("\n")
		vars, err := d.printVariables(sw, biasDefs, true)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, ".PRINT AC FORMAT=NOINDEX FILE=%s %s\n", outputFileName, strings.Join(vars, " "))
	}
	b.WriteString(".END\n")
	return b.String(), nil
}

func (d *Device) staticNetlist() string {
	var b strings.Builder
	for _, e := range d.ckt.Elements {
		b.WriteString(elementLine(e))
		b.WriteString("\n")
	}
	if d.mc != nil {
		b.WriteString(d.mc.ModelStatement())
		b.WriteString("\n")
	}
	return b.String()
}

var typeLetters = map[string]string{
	circuit.TypeResistor:  "R",
	circuit.TypeCapacitor: "C",
	circuit.TypeInductor:  "L",
	circuit.TypeVSource:   "V",
	circuit.TypeISource:   "I",
	circuit.TypeDiode:     "D",
	circuit.TypeBJT:       "Q",
	circuit.TypeMOSFET:    "M",
	circuit.TypeSubckt:    "X",
	circuit.TypeVAModule:  "Y",
}

func deviceName(e circuit.Element) string {
	letter := typeLetters[e.Type]
	if letter == "" || strings.HasPrefix(strings.ToUpper(e.Name), letter) {
		return e.Name
	}
	return letter + e.Name
}

func elementLine(e circuit.Element) string {
	fields := []string{deviceName(e)}
	fields = append(fields, e.Nodes...)
	switch e.Type {
	case circuit.TypeResistor, circuit.TypeCapacitor, circuit.TypeInductor:
		fields = append(fields, circuit.FormatValue(e.Value))
	case circuit.TypeVSource, circuit.TypeISource:
		fields = append(fields, "DC", circuit.FormatValue(e.Value))
	default:
		if e.Model != "" {
			fields = append(fields, e.Model)
		}
		if ps := e.ParamString(); ps != "" {
			fields = append(fields, ps)
		}
	}
	return strings.Join(fields, " ")
}

// splitDefs separates the frequency def from the bias defs. SYNC defs cannot
// be expressed in a single Xyce netlist.
func splitDefs(sw *sweep.Sweep) ([]sweep.Def, *sweep.Def, error) {
	var freqDef *sweep.Def
	var biasDefs []sweep.Def
	for i, def := range sw.Defs {
		if def.Type == sweep.TypeSync {
			return nil, nil, fmt.Errorf("xyce: SYNC sweep %s cannot be expressed in a netlist", def.Var)
		}
		if def.Var.Quantity == specifiers.Frequency {
			if i != len(sw.Defs)-1 {
				return nil, nil, fmt.Errorf("xyce: frequency must be the innermost sweep variable")
			}
			f := def
			freqDef = &f
			continue
		}
		biasDefs = append(biasDefs, def)
	}
	return biasDefs, freqDef, nil
}

// dcStatement renders the nested .DC line. Xyce sweeps the first listed
// source fastest, so the defs are emitted innermost first.
func (d *Device) dcStatement(biasDefs []sweep.Def) (string, error) {
	if len(biasDefs) == 0 {
		return "", fmt.Errorf("xyce: DC sweep needs at least one swept variable")
	}
	parts := []string{".DC"}
	for i := len(biasDefs) - 1; i >= 0; i-- {
		part, err := d.sweepSpec(biasDefs[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " "), nil
}

func (d *Device) stepStatement(def sweep.Def) (string, error) {
	part, err := d.sweepSpec(def)
	if err != nil {
		return "", err
	}
	return ".STEP " + part, nil
}

// sweepSpec renders one source sweep: "VB 0.5 0.9 0.2" or "VB LIST 0.1 0.2".
func (d *Device) sweepSpec(def sweep.Def) (string, error) {
	src, err := d.sourceFor(def.Var)
	if err != nil {
		return "", err
	}
	name := deviceName(src)
	switch def.Type {
	case sweep.TypeLin:
		n := int(def.ValueDef[2])
		if n < 2 {
			return fmt.Sprintf("%s LIST %s", name, formatNum(def.ValueDef[0])), nil
		}
		step := (def.ValueDef[1] - def.ValueDef[0]) / float64(n-1)
		return fmt.Sprintf("%s %s %s %s", name,
			formatNum(def.ValueDef[0]), formatNum(def.ValueDef[1]), formatNum(step)), nil
	case sweep.TypeCon:
		return fmt.Sprintf("%s LIST %s", name, formatNum(def.ValueDef[0])), nil
	case sweep.TypeList:
		values := make([]string, len(def.ValueDef))
		for i, v := range def.ValueDef {
			values[i] = formatNum(v)
		}
		return fmt.Sprintf("%s LIST %s", name, strings.Join(values, " ")), nil
	case sweep.TypeLog:
		decades := def.ValueDef[1] - def.ValueDef[0]
		if decades <= 0 {
			return "", fmt.Errorf("xyce: LOG sweep of %s needs ascending decades", def.Var)
		}
		ppd := int(math.Round((def.ValueDef[2] - 1) / decades))
		if ppd < 1 {
			ppd = 1
		}
		return fmt.Sprintf("%s DEC %d %s %s", name, ppd,
			formatNum(math.Pow(10, def.ValueDef[0])), formatNum(math.Pow(10, def.ValueDef[1]))), nil
	}
	return "", fmt.Errorf("xyce: sweep type %s not supported for %s", def.Type, def.Var)
}

func acStatement(def sweep.Def) (string, error) {
	switch def.Type {
	case sweep.TypeLin:
		return fmt.Sprintf(".AC LIN %d %s %s", int(def.ValueDef[2]),
			formatNum(def.ValueDef[0]), formatNum(def.ValueDef[1])), nil
	case sweep.TypeLog:
		decades := def.ValueDef[1] - def.ValueDef[0]
		if decades <= 0 {
			return "", fmt.Errorf("xyce: LOG frequency sweep needs ascending decades")
		}
		ppd := int(math.Round((def.ValueDef[2] - 1) / decades))
		if ppd < 1 {
			ppd = 1
		}
		return fmt.Sprintf(".AC DEC %d %s %s", ppd,
			formatNum(math.Pow(10, def.ValueDef[0])), formatNum(math.Pow(10, def.ValueDef[1]))), nil
	case sweep.TypeCon:
		f := formatNum(def.ValueDef[0])
		return fmt.Sprintf(".AC LIN 1 %s %s", f, f), nil
	}
	return "", fmt.Errorf("xyce: frequency sweep type %s not supported", def.Type)
}

// printVariables builds the .PRINT list: in DC the forced node potentials
// plus the outputs, in AC the frequency and the outputs.
func (d *Device) printVariables(sw *sweep.Sweep, biasDefs []sweep.Def, ac bool) ([]string, error) {
	var vars []string
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}

	if ac {
		add("FREQ")
	} else {
		for _, def := range biasDefs {
			if def.Var.IsPotential() {
				add("V(" + strings.ToUpper(def.Var.Nodes[0]) + ")")
			}
		}
	}
	for _, out := range sw.Outputs {
		switch out.Quantity {
		case specifiers.Frequency, specifiers.Time:
			continue
		}
		v, err := d.variableFor(out)
		if err != nil {
			return nil, err
		}
		add(v)
	}
	if len(vars) == 0 {
		return nil, fmt.Errorf("xyce: sweep %s requests no printable outputs", sw.Name)
	}
	return vars, nil
}

func (d *Device) variableFor(out specifiers.Specifier) (string, error) {
	switch {
	case out.IsPotential():
		return "V(" + strings.ToUpper(out.Nodes[0]) + ")", nil
	case out.IsVoltage() && len(out.Nodes) == 2:
		return fmt.Sprintf("V(%s,%s)", strings.ToUpper(out.Nodes[0]), strings.ToUpper(out.Nodes[1])), nil
	case out.IsCurrent():
		src, err := d.sourceFor(out)
		if err != nil {
			return "", err
		}
		return "I(" + strings.ToUpper(deviceName(src)) + ")", nil
	}
	return "", fmt.Errorf("xyce: cannot print output %s", out)
}

func (d *Device) sourceFor(s specifiers.Specifier) (circuit.Element, error) {
	if len(s.Nodes) == 0 {
		return circuit.Element{}, fmt.Errorf("xyce: %s has no node to force", s)
	}
	node := s.Nodes[0]
	if s.IsVoltage() {
		if e, ok := d.ckt.FindSourceForNode(node); ok {
			return e, nil
		}
	}
	if s.IsCurrent() {
		for _, e := range d.ckt.Elements {
			if e.Type == circuit.TypeISource && len(e.Nodes) > 0 && strings.EqualFold(e.Nodes[0], node) {
				return e, nil
			}
		}
		// No current source drives the node: the terminal current is the
		// branch current through the voltage source forcing it.
		if e, ok := d.ckt.FindSourceForNode(node); ok {
			return e, nil
		}
	}
	return circuit.Element{}, fmt.Errorf("xyce: no source for %s in circuit", s)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// ParseOutput reads the .prn table. Re(...)/Im(...) column pairs merge into
// complex columns; sweep columns the table does not carry are attached from
// the expanded sweep frame.
func (d *Device) ParseOutput(simFolder string, sw *sweep.Sweep) (*dataframe.DataFrame, error) {
	df, err := parsePrn(filepath.Join(simFolder, outputFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dut.ErrSimFailed, err)
	}
	df.EnsureSpecifierCols()
	dut.DropNonSpecifierCols(df)

	sweepFrame, err := sw.CreateFrame()
	if err != nil {
		return nil, err
	}
	if err := dut.AttachSweepCols(df, sweepFrame, sw.Defs, 0, sweepFrame.NRows()); err != nil {
		return nil, err
	}

	if !df.HasCol(specifiers.Temperature) {
		temp := make([]float64, df.NRows())
		for i := range temp {
			temp[i] = sw.Temperature()
		}
		if err := df.SetCol(specifiers.Temperature, temp); err != nil {
			return nil, err
		}
	}
	return df, nil
}

// parsePrn reads a Xyce .prn table: header line, numeric rows, and a final
// "End of Xyce(TM) Simulation" line that is ignored.
func parsePrn(path string) (*dataframe.DataFrame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("xyce: %s has no data rows", path)
	}
	header := strings.Fields(lines[0])

	cols := make([][]float64, len(header))
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, footerPrefix) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("xyce: row with %d values for %d columns in %s", len(fields), len(header), path)
		}
		for c, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("xyce: bad number %q in %s", f, path)
			}
			cols[c] = append(cols[c], v)
		}
	}
	if len(cols[0]) == 0 {
		return nil, fmt.Errorf("xyce: %s has no data rows", path)
	}

	df := dataframe.New()
	merged := make(map[int]bool)
	for c, name := range header {
		if merged[c] {
			continue
		}
		if strings.EqualFold(name, "Index") {
			continue
		}
		if base, ok := cutWrap(name, "Re(", ")"); ok {
			imIdx := indexOf(header, "Im("+base+")")
			if imIdx < 0 {
				return nil, fmt.Errorf("xyce: %s has no Im column for %s", path, name)
			}
			merged[imIdx] = true
			values := make([]complex128, len(cols[c]))
			for r := range values {
				values[r] = complex(cols[c][r], cols[imIdx][r])
			}
			if err := df.SetComplexCol(base, values); err != nil {
				return nil, err
			}
			continue
		}
		if err := df.SetCol(name, cols[c]); err != nil {
			return nil, err
		}
	}
	return df, nil
}

func cutWrap(s, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) && len(s) > len(prefix)+len(suffix) {
		return s[len(prefix) : len(s)-len(suffix)], true
	}
	return "", false
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// ValidateLog requires the Xyce banner in the captured output, no ERROR
// lines, and the presence of the output table.
func (d *Device) ValidateLog(simFolder string) error {
	raw, err := os.ReadFile(filepath.Join(simFolder, logFileName))
	if err != nil {
		return fmt.Errorf("%w: no %s: %v", dut.ErrSimFailed, logFileName, err)
	}
	text := string(raw)
	if !strings.Contains(text, banner) {
		return fmt.Errorf("%w: %s misses the Xyce banner", dut.ErrSimFailed, logFileName)
	}
	if strings.Contains(text, "ERROR") {
		return fmt.Errorf("%w: %s reports an error", dut.ErrSimFailed, logFileName)
	}
	if _, err := os.Stat(filepath.Join(simFolder, outputFileName)); err != nil {
		return fmt.Errorf("%w: no %s in %s", dut.ErrSimFailed, outputFileName, simFolder)
	}
	return nil
}

var _ dut.View = (*Device)(nil)
