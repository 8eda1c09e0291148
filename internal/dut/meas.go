package dut

import (
	"github.com/smxlab/dmkit/internal/hashutil"
	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/sweep"
)

// Meas is a measured device. It carries data under the same key scheme as
// simulated views but cannot be simulated.
type Meas struct {
	name string
	data *Data
}

// NewMeas returns a measured device view.
func NewMeas(name string) *Meas {
	return &Meas{name: name, data: NewData()}
}

// Name implements View.
func (m *Meas) Name() string { return m.name }

// Hash for a measured device fingerprints the name and the sorted data keys;
// there are no input files to hash.
func (m *Meas) Hash() string {
	parts := append([]string{"meas", m.name}, m.data.Keys()...)
	return hashutil.Hash(parts...)
}

// Data returns the device's data map.
func (m *Meas) Data() *Data { return m.data }

// MakeInput implements View and always fails.
func (m *Meas) MakeInput(*sweep.Sweep) (string, error) {
	return "", ErrNotSimulatable
}

// InputFileName implements View.
func (m *Meas) InputFileName() string { return "" }

// OutputSuffix implements View.
func (m *Meas) OutputSuffix() string { return "" }

// SimCommand implements View.
func (m *Meas) SimCommand() []string { return nil }

// ParseOutput implements View and always fails.
func (m *Meas) ParseOutput(string, *sweep.Sweep) (*dataframe.DataFrame, error) {
	return nil, ErrNotSimulatable
}

// ValidateLog implements View.
func (m *Meas) ValidateLog(string) error { return ErrNotSimulatable }
