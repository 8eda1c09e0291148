package dataframe

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"strconv"
)

// frameWire is the gob image of a DataFrame. Kept separate from the DataFrame
// struct so the on-disk format does not change when internals do.
type frameWire struct {
	Order   []string
	Real    map[string][]float64
	Complex map[string][]complex128
	NRows   int
}

// Encode writes the frame in its binary database format.
func (df *DataFrame) Encode(w io.Writer) error {
	wire := frameWire{
		Order:   df.order,
		Real:    df.real,
		Complex: df.complex,
		NRows:   df.nRows,
	}
	if err := gob.NewEncoder(w).Encode(wire); err != nil {
		return fmt.Errorf("dataframe: encode: %w", err)
	}
	return nil
}

// Decode reads a frame previously written by Encode.
func Decode(r io.Reader) (*DataFrame, error) {
	var wire frameWire
	if err := gob.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("dataframe: decode: %w", err)
	}
	df := New()
	df.order = wire.Order
	df.nRows = wire.NRows
	if wire.Real != nil {
		df.real = wire.Real
	}
	if wire.Complex != nil {
		df.complex = wire.Complex
	}
	return df, nil
}

// WriteCSV exports the frame for interchange with other tools. Complex
// columns are written as two columns with REAL/IMAG suffixes.
func (df *DataFrame) WriteCSV(w io.Writer) error {
	out := csv.NewWriter(w)

	var header []string
	for _, name := range df.order {
		if df.IsComplex(name) {
			header = append(header, name+"|REAL", name+"|IMAG")
			continue
		}
		header = append(header, name)
	}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("dataframe: csv: %w", err)
	}

	record := make([]string, 0, len(header))
	for row := 0; row < df.nRows; row++ {
		record = record[:0]
		for _, name := range df.order {
			if values, ok := df.complex[name]; ok {
				record = append(record,
					strconv.FormatFloat(real(values[row]), 'e', -1, 64),
					strconv.FormatFloat(imag(values[row]), 'e', -1, 64))
				continue
			}
			record = append(record, strconv.FormatFloat(df.real[name][row], 'e', -1, 64))
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("dataframe: csv: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}
