package mcard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/smxlab/dmkit/internal/hashutil"
)

// VAFile references Verilog-A source that an external compiler (OpenVAF or
// ADMS) turns into a loadable model. Only the source text travels through
// dmkit; its hash becomes part of the DUT hash so a model code change forces
// a re-simulation.
type VAFile struct {
	Path    string // original source path
	Module  string // module name inside the source
	Content string
}

// LoadVA reads a Verilog-A source file.
func LoadVA(path, module string) (*VAFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcard: read VA file: %w", err)
	}
	if module == "" {
		module = trimExt(filepath.Base(path))
	}
	return &VAFile{Path: path, Module: module, Content: string(data)}, nil
}

// TreeHash returns the MD5 of the source content. The name follows the
// VA-code storage layout where compiled artifacts live under
// <simDir>/VA_codes/<treeHash>/.
func (v *VAFile) TreeHash() string {
	return hashutil.Hash(v.Module, v.Content)
}

// FileName returns the bare source file name.
func (v *VAFile) FileName() string {
	return filepath.Base(v.Path)
}

// WriteTo writes the source into dir, creating it as needed.
func (v *VAFile) WriteTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, v.FileName()), []byte(v.Content), 0o644)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
