// Package ngspice renders circuits and sweeps into ngspice batch netlists and
// parses the ascii output written by wrdata. Bias sweeps become dc statements
// where possible and alter/op chains otherwise; frequency sweeps run one ac
// analysis per bias point.
package ngspice

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
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
	inputFileName = "input.ngspice"
	outputSuffix  = ".ngspice"
	logFileName   = "sim.log"
)

// Device is a circuit bound to the ngspice backend.
type Device struct {
	name string
	ckt  *circuit.Circuit
	mc   *mcard.MCard
	cmd  config.CommandConfig
}

// New returns an ngspice device view. The model card may be nil when the
// circuit only uses built-in models.
func New(name string, ckt *circuit.Circuit, mc *mcard.MCard, cmd config.CommandConfig) *Device {
	return &Device{name: name, ckt: ckt, mc: mc, cmd: cmd}
}

// Name implements dut.View.
func (d *Device) Name() string { return d.name }

// Hash fingerprints the sweep-independent netlist text plus the model card
// and its Verilog-A tree. Equal hash means a finished simulation folder can
// be reused for any sweep.
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

// WriteAux writes the Verilog-A source next to the netlist.
func (d *Device) WriteAux(simFolder string, _ *sweep.Sweep) error {
	if d.mc == nil || d.mc.VA == nil {
		return nil
	}
	return d.mc.VA.WriteTo(simFolder)
}

// VAFiles implements dut.VAModule for backends whose models need OSDI
// compilation before the run.
func (d *Device) VAFiles() []*mcard.VAFile {
	if d.mc == nil || d.mc.VA == nil {
		return nil
	}
	return []*mcard.VAFile{d.mc.VA}
}

// MakeInput renders the batch netlist for the sweep.
func (d *Device) MakeInput(sw *sweep.Sweep) (string, error) {
	analyses, _, _, err := d.plan(sw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "* %s\n", d.name)
	fmt.Fprintf(&b, ".temp %.2f\n", sw.Temperature()-273.15)
	for _, line := range d.ckt.VerbatimLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(d.staticNetlist())

	b.WriteString("\n.control\n")
	b.WriteString("set filetype=ascii\n")
	b.WriteString("set wr_vecnames\n")
	b.WriteString("set wr_singlescale\n")
	if d.mc != nil && d.mc.VA != nil {
		fmt.Fprintf(&b, "pre_osdi %s.osdi\n", strings.TrimSuffix(d.mc.VA.FileName(), filepath.Ext(d.mc.VA.FileName())))
	}
	for _, a := range analyses {
		for _, stmt := range a.stmts {
			b.WriteString(stmt)
			b.WriteString("\n")
		}
	}
	b.WriteString("quit\n.endc\n.end\n")
	return b.String(), nil
}

// staticNetlist renders the element and model lines. This part of the input
// does not depend on the sweep and feeds the device hash.
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
	circuit.TypeVAModule:  "N",
}

// deviceName prefixes the instance name with the type letter when the name
// does not already carry it; ngspice derives the device type from it.
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
		fields = append(fields, "dc", circuit.FormatValue(e.Value))
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

// analysis is one emitted control-block analysis and the bias frame rows it
// covers, so the output parser can line files and bias points back up.
type analysis struct {
	file    string
	ac      bool
	stmts   []string
	biasRow int
	nBias   int
}

// plan turns the sweep into the list of analyses. Frequency must be the
// innermost sweep variable; everything before it is the bias plan.
func (d *Device) plan(sw *sweep.Sweep) ([]analysis, *dataframe.DataFrame, []sweep.Def, error) {
	var freqDef *sweep.Def
	var biasDefs []sweep.Def
	for i, def := range sw.Defs {
		if def.Var.Quantity == specifiers.Frequency {
			if i != len(sw.Defs)-1 {
				return nil, nil, nil, fmt.Errorf("ngspice: frequency must be the innermost sweep variable")
			}
			f := def
			freqDef = &f
			continue
		}
		biasDefs = append(biasDefs, def)
	}

	biasFrame := dataframe.New()
	if len(biasDefs) > 0 {
		biasSweep, err := sweep.New("bias", biasDefs, nil, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		if biasFrame, err = biasSweep.CreateFrame(); err != nil {
			return nil, nil, nil, err
		}
	}
	nBiasRows := biasFrame.NRows()
	if nBiasRows == 0 {
		nBiasRows = 1
	}

	vectors, err := d.wrVectors(sw, biasDefs, freqDef != nil)
	if err != nil {
		return nil, nil, nil, err
	}

	var analyses []analysis
	switch {
	case freqDef != nil:
		acStmt, err := acStatement(*freqDef)
		if err != nil {
			return nil, nil, nil, err
		}
		for r := 0; r < nBiasRows; r++ {
			a := analysis{file: fmt.Sprintf("ac_%03d%s", r, outputSuffix), ac: true, biasRow: r, nBias: 1}
			stmts, err := d.alterStatements(biasDefs, biasFrame, r, nil)
			if err != nil {
				return nil, nil, nil, err
			}
			a.stmts = append(stmts, acStmt, wrdata(a.file, vectors))
			analyses = append(analyses, a)
		}

	case d.dcBlockMode(biasDefs):
		inner := biasDefs[len(biasDefs)-1]
		src, err := d.sourceFor(inner.Var)
		if err != nil {
			return nil, nil, nil, err
		}
		n := int(inner.ValueDef[2])
		start, stop := inner.ValueDef[0], inner.ValueDef[1]
		step := (stop - start) / float64(n-1)
		for b := 0; b < nBiasRows; b += n {
			a := analysis{file: fmt.Sprintf("dc_%03d%s", len(analyses), outputSuffix), biasRow: b, nBias: n}
			stmts, err := d.alterStatements(biasDefs, biasFrame, b, &inner.Var)
			if err != nil {
				return nil, nil, nil, err
			}
			a.stmts = append(stmts,
				fmt.Sprintf("dc %s %s %s %s", strings.ToLower(deviceName(src)),
					formatNum(start), formatNum(stop), formatNum(step)),
				wrdata(a.file, vectors))
			analyses = append(analyses, a)
		}

	default:
		for r := 0; r < nBiasRows; r++ {
			a := analysis{file: fmt.Sprintf("dc_%03d%s", r, outputSuffix), biasRow: r, nBias: 1}
			stmts, err := d.alterStatements(biasDefs, biasFrame, r, nil)
			if err != nil {
				return nil, nil, nil, err
			}
			a.stmts = append(stmts, "op", wrdata(a.file, vectors))
			analyses = append(analyses, a)
		}
	}
	return analyses, biasFrame, biasDefs, nil
}

// dcBlockMode reports whether the innermost bias def can run as a single dc
// statement per outer point.
func (d *Device) dcBlockMode(biasDefs []sweep.Def) bool {
	if len(biasDefs) == 0 {
		return false
	}
	inner := biasDefs[len(biasDefs)-1]
	if inner.Type != sweep.TypeLin || int(inner.ValueDef[2]) < 2 {
		return false
	}
	for _, def := range biasDefs {
		if def.Type == sweep.TypeSync && def.Master.Equal(inner.Var) {
			return false
		}
	}
	return true
}

// alterStatements sets every bias source except skip to its value in the
// given bias frame row.
func (d *Device) alterStatements(biasDefs []sweep.Def, biasFrame *dataframe.DataFrame, row int, skip *specifiers.Specifier) ([]string, error) {
	var stmts []string
	for _, def := range biasDefs {
		if skip != nil && def.Var.Equal(*skip) {
			continue
		}
		src, err := d.sourceFor(def.Var)
		if err != nil {
			return nil, err
		}
		col, ok := biasFrame.Col(def.Var.String())
		if !ok {
			return nil, fmt.Errorf("ngspice: bias frame misses %s", def.Var)
		}
		stmts = append(stmts, fmt.Sprintf("alter %s dc=%s",
			strings.ToLower(deviceName(src)), formatNum(col[row])))
	}
	return stmts, nil
}

// sourceFor maps a swept quantity onto the netlist source that forces it.
func (d *Device) sourceFor(s specifiers.Specifier) (circuit.Element, error) {
	if len(s.Nodes) == 0 {
		return circuit.Element{}, fmt.Errorf("ngspice: %s has no node to force", s)
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
	return circuit.Element{}, fmt.Errorf("%w: %s", ErrNoSource, s)
}

// wrVectors collects the wrdata vector list: the forced node potentials (dc
// only, in ac they would be small-signal values) plus the requested outputs.
func (d *Device) wrVectors(sw *sweep.Sweep, biasDefs []sweep.Def, ac bool) ([]string, error) {
	var vectors []string
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			vectors = append(vectors, v)
		}
	}

	if !ac {
		for _, def := range biasDefs {
			if def.Var.IsPotential() {
				add("v(" + strings.ToLower(def.Var.Nodes[0]) + ")")
			}
		}
	}
	for _, out := range sw.Outputs {
		switch out.Quantity {
		case specifiers.Frequency, specifiers.Time:
			// the analysis scale, written by wrdata anyway
			continue
		}
		v, err := d.vectorFor(out)
		if err != nil {
			return nil, err
		}
		add(v)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ngspice: sweep %s requests no writable outputs", sw.Name)
	}
	return vectors, nil
}

func (d *Device) vectorFor(out specifiers.Specifier) (string, error) {
	switch {
	case out.IsPotential():
		return "v(" + strings.ToLower(out.Nodes[0]) + ")", nil
	case out.IsVoltage() && len(out.Nodes) == 2:
		return fmt.Sprintf("v(%s,%s)", strings.ToLower(out.Nodes[0]), strings.ToLower(out.Nodes[1])), nil
	case out.IsCurrent():
		src, err := d.sourceFor(out)
		if err != nil {
			return "", err
		}
		return "i(" + strings.ToLower(deviceName(src)) + ")", nil
	}
	return "", fmt.Errorf("ngspice: cannot write output %s", out)
}

func wrdata(file string, vectors []string) string {
	return "wrdata " + file + " " + strings.Join(vectors, " ")
}

func acStatement(def sweep.Def) (string, error) {
	switch def.Type {
	case sweep.TypeLin:
		return fmt.Sprintf("ac lin %d %s %s", int(def.ValueDef[2]),
			formatNum(def.ValueDef[0]), formatNum(def.ValueDef[1])), nil
	case sweep.TypeLog:
		decades := def.ValueDef[1] - def.ValueDef[0]
		if decades <= 0 {
			return "", fmt.Errorf("ngspice: LOG frequency sweep needs ascending decades")
		}
		ppd := int(math.Round((def.ValueDef[2] - 1) / decades))
		if ppd < 1 {
			ppd = 1
		}
		return fmt.Sprintf("ac dec %d %s %s", ppd,
			formatNum(math.Pow(10, def.ValueDef[0])), formatNum(math.Pow(10, def.ValueDef[1]))), nil
	case sweep.TypeCon:
		f := formatNum(def.ValueDef[0])
		return fmt.Sprintf("ac lin 1 %s %s", f, f), nil
	}
	return "", fmt.Errorf("ngspice: frequency sweep type %s not supported", def.Type)
}

// formatNum keeps 10 significant digits so derived values like dc steps do
// not print float artifacts.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// ParseOutput reads all wrdata files of the run and assembles one frame with
// canonical specifier columns. Bias values that are not part of the output
// files (forced currents, ac bias points) are re-attached from the sweep.
func (d *Device) ParseOutput(simFolder string, sw *sweep.Sweep) (*dataframe.DataFrame, error) {
	analyses, biasFrame, biasDefs, err := d.plan(sw)
	if err != nil {
		return nil, err
	}

	var total *dataframe.DataFrame
	for _, a := range analyses {
		df, err := parseFile(filepath.Join(simFolder, a.file), a.ac)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dut.ErrSimFailed, err)
		}
		df.EnsureSpecifierCols()
		dut.DropNonSpecifierCols(df)
		if err := dut.AttachSweepCols(df, biasFrame, biasDefs, a.biasRow, a.nBias); err != nil {
			return nil, err
		}
		if total == nil {
			total = df
			continue
		}
		if total, err = total.Append(df); err != nil {
			return nil, err
		}
	}
	if total == nil || total.NRows() == 0 {
		return nil, fmt.Errorf("%w: no output rows in %s", dut.ErrSimFailed, simFolder)
	}

	temp := make([]float64, total.NRows())
	for i := range temp {
		temp[i] = sw.Temperature()
	}
	if !total.HasCol(specifiers.Temperature) {
		if err := total.SetCol(specifiers.Temperature, temp); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// parseFile reads one ascii wrdata file: a header line with the vector names
// followed by a flat whitespace stream of numbers in row-major order. In ac
// files every vector, the frequency scale included, is a real/imag pair.
func parseFile(path string, ac bool) (*dataframe.DataFrame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	headerLine, rest, _ := strings.Cut(text, "\n")
	header := strings.Fields(headerLine)
	if len(header) == 0 {
		return nil, fmt.Errorf("ngspice: %s has no header line", path)
	}

	fields := strings.Fields(rest)
	values := make([]float64, len(fields))
	for i, f := range fields {
		if values[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, fmt.Errorf("ngspice: bad number %q in %s", f, path)
		}
	}

	width := len(header)
	if ac {
		width = 2 * len(header)
	}
	if len(values) == 0 || len(values)%width != 0 {
		return nil, fmt.Errorf("ngspice: %s has %d values for %d columns", path, len(values), width)
	}
	nRows := len(values) / width

	df := dataframe.New()
	for c, name := range header {
		if !ac {
			col := make([]float64, nRows)
			for r := range col {
				col[r] = values[r*width+c]
			}
			if err := df.SetCol(name, col); err != nil {
				return nil, err
			}
			continue
		}
		if strings.EqualFold(name, "frequency") {
			col := make([]float64, nRows)
			for r := range col {
				col[r] = values[r*width+2*c]
			}
			if err := df.SetCol(name, col); err != nil {
				return nil, err
			}
			continue
		}
		col := make([]complex128, nRows)
		for r := range col {
			col[r] = complex(values[r*width+2*c], values[r*width+2*c+1])
		}
		if err := df.SetComplexCol(name, col); err != nil {
			return nil, err
		}
	}
	return df, nil
}

// ValidateLog checks the captured simulator output and the presence of result
// files after the process exited.
func (d *Device) ValidateLog(simFolder string) error {
	raw, err := os.ReadFile(filepath.Join(simFolder, logFileName))
	if err != nil {
		return fmt.Errorf("%w: no %s: %v", dut.ErrSimFailed, logFileName, err)
	}
	if strings.Contains(strings.ToLower(string(raw)), "error") {
		return fmt.Errorf("%w: %s reports an error", dut.ErrSimFailed, logFileName)
	}

	entries, err := os.ReadDir(simFolder)
	if err != nil {
		return err
	}
	var found bool
	for _, e := range entries {
		name := e.Name()
		if name != inputFileName && strings.HasSuffix(name, outputSuffix) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no %s output files in %s", dut.ErrSimFailed, outputSuffix, simFolder)
	}
	return nil
}

// OutputFiles returns the sorted result files of a finished run, useful for
// archiving.
func OutputFiles(simFolder string) ([]string, error) {
	entries, err := os.ReadDir(simFolder)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if name := e.Name(); name != inputFileName && strings.HasSuffix(name, outputSuffix) {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ErrNoSource marks a swept or requested quantity with no matching source
// element in the circuit.
var ErrNoSource = errors.New("ngspice: no source for swept variable")

var _ dut.View = (*Device)(nil)
var _ dut.AuxWriter = (*Device)(nil)
var _ dut.VAModule = (*Device)(nil)
