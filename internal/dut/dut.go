// Package dut defines the device-under-test views. A View pairs a device
// description with a simulator backend: it renders sweep definitions into the
// backend's input syntax, knows how to start the external binary, and parses
// the backend's output files back into DataFrames. Measured devices are Views
// too, so measurement and simulation data live side by side in libraries and
// databases under the same naming scheme.
package dut

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/mcard"
	"github.com/smxlab/dmkit/pkg/specifiers"
	"github.com/smxlab/dmkit/pkg/sweep"
)

var (
	// ErrNotSimulatable is returned by views that only carry data.
	ErrNotSimulatable = errors.New("dut: view is not simulatable")
	// ErrSimFailed is returned when a simulation log or output shows failure.
	ErrSimFailed = errors.New("dut: simulation failed")
)

// View is a device under test bound to one simulator backend.
type View interface {
	// Name is the human-readable device name, used in folder and key names.
	Name() string
	// Hash identifies the device inputs; equal hash means the rendered
	// input files are identical and a finished simulation can be reused.
	Hash() string
	// MakeInput renders the full input file text for the given sweep.
	MakeInput(sw *sweep.Sweep) (string, error)
	// InputFileName is the name of the input file inside the sim folder.
	InputFileName() string
	// OutputSuffix is the file suffix of the backend's result files.
	OutputSuffix() string
	// SimCommand returns the argv to start the external simulator inside
	// the sim folder. The input file name is already included.
	SimCommand() []string
	// ParseOutput reads the output files from the sim folder into a frame
	// with canonical specifier columns.
	ParseOutput(simFolder string, sw *sweep.Sweep) (*dataframe.DataFrame, error)
	// ValidateLog inspects the sim folder after the process finished and
	// returns ErrSimFailed when the simulator reported an error.
	ValidateLog(simFolder string) error
}

// AuxWriter is implemented by views that need extra files next to the input
// file, such as Verilog-A sources or bias tables.
type AuxWriter interface {
	WriteAux(simFolder string, sw *sweep.Sweep) error
}

// VAModule is implemented by views whose model is defined by Verilog-A
// sources that must be compiled to OSDI objects before the run.
type VAModule interface {
	VAFiles() []*mcard.VAFile
}

// FolderName returns the per-device folder name <name>_<hash>.
func FolderName(v View) string {
	return v.Name() + "_" + v.Hash()
}

// SimFolder returns the simulation folder for a device/sweep pair below the
// simulation directory.
func SimFolder(simDir string, v View, sw *sweep.Sweep) string {
	return filepath.Join(simDir, FolderName(v), sw.FolderName())
}

// JoinKey joins database key parts with the canonical separator.
func JoinKey(parts ...string) string {
	return strings.Join(parts, "/")
}

// SplitKey splits a database key back into its parts.
func SplitKey(key string) []string {
	return strings.Split(key, "/")
}

// TempKey renders a temperature key part like "T300.00K".
func TempKey(tempK float64) string {
	return fmt.Sprintf("T%.2fK", tempK)
}

// SweepKey returns the database key part for a sweep.
func SweepKey(sw *sweep.Sweep) string {
	return sw.FolderName()
}

// AttachSweepCols adds sweep columns that the simulator output does not
// carry, taken from rows [row, row+n) of the expanded sweep frame. A value
// constant over those rows broadcasts to all output rows; a varying one must
// match the output row count.
func AttachSweepCols(df, sweepFrame *dataframe.DataFrame, defs []sweep.Def, row, n int) error {
	for _, def := range defs {
		name := def.Var.String()
		if df.HasCol(name) || df.HasCol(def.Var.StripSubs().String()) {
			continue
		}
		src, ok := sweepFrame.Col(name)
		if !ok {
			return fmt.Errorf("dut: sweep frame misses %s", name)
		}
		block := src[row : row+n]

		col := make([]float64, df.NRows())
		switch {
		case len(block) == df.NRows():
			copy(col, block)
		case constantValues(block):
			for i := range col {
				col[i] = block[0]
			}
		default:
			return fmt.Errorf("dut: %d output rows for %d sweep points of %s", df.NRows(), len(block), name)
		}
		if err := df.SetCol(name, col); err != nil {
			return err
		}
	}
	return nil
}

func constantValues(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// DropNonSpecifierCols removes columns whose names did not normalize to a
// canonical specifier, such as simulator scale or index columns.
func DropNonSpecifierCols(df *dataframe.DataFrame) {
	for _, name := range df.Cols() {
		if _, err := specifiers.Parse(name); err != nil {
			df.DropCol(name)
		}
	}
}

// Data is the in-memory data map of a view: database key to frame.
type Data struct {
	frames map[string]*dataframe.DataFrame
}

// NewData returns an empty data map.
func NewData() *Data {
	return &Data{frames: make(map[string]*dataframe.DataFrame)}
}

// Add stores a frame under the key, replacing an existing one.
func (d *Data) Add(key string, df *dataframe.DataFrame) {
	d.frames[key] = df
}

// Get returns the frame for a key.
func (d *Data) Get(key string) (*dataframe.DataFrame, bool) {
	df, ok := d.frames[key]
	return df, ok
}

// Remove drops a key.
func (d *Data) Remove(key string) {
	delete(d.frames, key)
}

// Keys returns all keys sorted.
func (d *Data) Keys() []string {
	keys := make([]string, 0, len(d.frames))
	for key := range d.frames {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Frames returns the underlying map for bulk save/load.
func (d *Data) Frames() map[string]*dataframe.DataFrame {
	return d.frames
}
