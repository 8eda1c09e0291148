// Package hdev drives the Hdev TCAD solver through its text interface: a
// sectioned structure input file plus a bias table holding the sweep rows,
// and whitespace tables (.elpa) as output.
package hdev

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/smxlab/dmkit/internal/config"
	"github.com/smxlab/dmkit/internal/dut"
	"github.com/smxlab/dmkit/internal/hashutil"
	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/specifiers"
	"github.com/smxlab/dmkit/pkg/sweep"
)

const (
	inputFileName = "input.inp"
	biasFileName  = "datafile.tbl"
	outputSuffix  = ".elpa"
	logFileName   = "sim.log"
)

// Param is one key/value entry of a structure section. Values are kept as
// text so integers, floats and quoted strings render exactly as given.
type Param struct {
	Key   string
	Value string
}

// Section is one named block of the structure input.
type Section struct {
	Name   string
	Params []Param
}

// Structure is the device description: an ordered list of sections such as
// region, doping and contact definitions.
type Structure struct {
	Sections []Section
}

// Render writes the structure in Hdev's input syntax.
func (s *Structure) Render() string {
	var b strings.Builder
	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "&%s\n", sec.Name)
		for _, p := range sec.Params {
			fmt.Fprintf(&b, "  %s = %s\n", p.Key, p.Value)
		}
		b.WriteString("/\n")
	}
	return b.String()
}

// Device is a TCAD structure bound to the Hdev backend.
type Device struct {
	name string
	str  *Structure
	cmd  config.CommandConfig
}

// New returns an Hdev device view.
func New(name string, str *Structure, cmd config.CommandConfig) *Device {
	return &Device{name: name, str: str, cmd: cmd}
}

// Name implements dut.View.
func (d *Device) Name() string { return d.name }

// Hash fingerprints the structure definition. The bias table is part of the
// sweep, not the device.
func (d *Device) Hash() string {
	return hashutil.Hash(d.str.Render())
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

// MakeInput renders the structure plus the bias section pointing at the
// table written by WriteAux.
func (d *Device) MakeInput(sw *sweep.Sweep) (string, error) {
	if _, err := sw.CreateFrame(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(d.str.Render())
	b.WriteString("&BIAS_DEF\n")
	b.WriteString("  bias_fun = 'TAB'\n")
	fmt.Fprintf(&b, "  bias_file = '%s'\n", biasFileName)
	fmt.Fprintf(&b, "  temp = %.2f\n", sw.Temperature())
	b.WriteString("/\n")
	return b.String(), nil
}

// WriteAux writes the bias table: one header line with the sweep columns and
// one row per operating point.
func (d *Device) WriteAux(simFolder string, sw *sweep.Sweep) error {
	frame, err := sw.CreateFrame()
	if err != nil {
		return err
	}
	cols := frame.Cols()
	if len(cols) == 0 {
		return fmt.Errorf("hdev: sweep %s has no swept variables", sw.Name)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " "))
	b.WriteString("\n")
	for r := 0; r < frame.NRows(); r++ {
		fields := make([]string, len(cols))
		for c, name := range cols {
			values, _ := frame.Col(name)
			fields[c] = strconv.FormatFloat(values[r], 'g', 10, 64)
		}
		b.WriteString(strings.Join(fields, " "))
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(simFolder, biasFileName), []byte(b.String()), 0o644)
}

// ParseOutput reads all .elpa tables of the run. Tables with equal row count
// merge column-wise into one frame.
func (d *Device) ParseOutput(simFolder string, sw *sweep.Sweep) (*dataframe.DataFrame, error) {
	files, err := outputFiles(simFolder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", dut.ErrSimFailed, outputSuffix, simFolder)
	}

	var total *dataframe.DataFrame
	for _, file := range files {
		df, err := parseTable(filepath.Join(simFolder, file))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dut.ErrSimFailed, err)
		}
		if total == nil {
			total = df
			continue
		}
		if df.NRows() != total.NRows() {
			return nil, fmt.Errorf("hdev: %s has %d rows, expected %d", file, df.NRows(), total.NRows())
		}
		for _, name := range df.Cols() {
			if total.HasCol(name) {
				continue
			}
			values, _ := df.Col(name)
			if err := total.SetCol(name, values); err != nil {
				return nil, err
			}
		}
	}

	total.EnsureSpecifierCols()
	dut.DropNonSpecifierCols(total)

	if !total.HasCol(specifiers.Temperature) {
		temp := make([]float64, total.NRows())
		for i := range temp {
			temp[i] = sw.Temperature()
		}
		if err := total.SetCol(specifiers.Temperature, temp); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// parseTable reads one whitespace table: header line with column names, then
// one line of floats per row.
func parseTable(path string) (*dataframe.DataFrame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("hdev: %s has no data rows", path)
	}
	header := strings.Fields(lines[0])

	cols := make([][]float64, len(header))
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("hdev: row with %d values for %d columns in %s", len(fields), len(header), path)
		}
		for c, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("hdev: bad number %q in %s", f, path)
			}
			cols[c] = append(cols[c], v)
		}
	}

	df := dataframe.New()
	for c, name := range header {
		if err := df.SetCol(name, cols[c]); err != nil {
			return nil, err
		}
	}
	return df, nil
}

func outputFiles(simFolder string) ([]string, error) {
	entries, err := os.ReadDir(simFolder)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), outputSuffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ValidateLog checks the captured output and the presence of result tables.
func (d *Device) ValidateLog(simFolder string) error {
	raw, err := os.ReadFile(filepath.Join(simFolder, logFileName))
	if err != nil {
		return fmt.Errorf("%w: no %s: %v", dut.ErrSimFailed, logFileName, err)
	}
	if strings.Contains(strings.ToLower(string(raw)), "error") {
		return fmt.Errorf("%w: %s reports an error", dut.ErrSimFailed, logFileName)
	}
	files, err := outputFiles(simFolder)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no %s files in %s", dut.ErrSimFailed, outputSuffix, simFolder)
	}
	return nil
}

var _ dut.View = (*Device)(nil)
var _ dut.AuxWriter = (*Device)(nil)
