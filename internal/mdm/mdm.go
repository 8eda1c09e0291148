// Package mdm reads IC-CAP MDM measurement files into DataFrames. An MDM
// file holds one or more BEGIN_DB/END_DB blocks; each block lists constant
// conditions as ICCAP_VAR/USER_VAR lines, a '#'-prefixed column header and
// whitespace separated numeric rows. All blocks concatenate into one frame,
// block constants become columns, and column names are normalized to
// specifiers.
package mdm

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/smxlab/dmkit/pkg/dataframe"
)

var blockRe = regexp.MustCompile(`(?m)^BEGIN_DB[\r\n]+([\s\S]*?)END_DB`)

// ReadFile reads an MDM file from disk.
func ReadFile(path string) (*dataframe.DataFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	df, err := Read(string(data))
	if err != nil {
		return nil, fmt.Errorf("mdm: %s: %w", path, err)
	}
	return df, nil
}

// Read parses MDM text.
func Read(text string) (*dataframe.DataFrame, error) {
	matches := blockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("mdm: no BEGIN_DB/END_DB blocks found")
	}

	var joined *dataframe.DataFrame
	for i, match := range matches {
		block, err := readBlock(match[1])
		if err != nil {
			return nil, fmt.Errorf("mdm: block %d: %w", i+1, err)
		}
		if joined == nil {
			joined = block
			continue
		}
		joined, err = joined.Append(block)
		if err != nil {
			return nil, fmt.Errorf("mdm: block %d: %w", i+1, err)
		}
	}
	joined.EnsureSpecifierCols()
	return joined, nil
}

func readBlock(block string) (*dataframe.DataFrame, error) {
	lines := strings.Split(block, "\n")

	// leading ICCAP_VAR/USER_VAR lines carry the block constants
	constants := make(map[string]float64)
	var constOrder []string
	var header []string
	dataStart := -1
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ICCAP_VAR", "USER_VAR":
			if len(fields) < 3 {
				return nil, fmt.Errorf("malformed variable line %q", line)
			}
			value, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", fields[1], err)
			}
			if _, seen := constants[fields[1]]; !seen {
				constOrder = append(constOrder, fields[1])
			}
			constants[fields[1]] = value
		default:
			header = fields
			if header[0] == "#" {
				header = header[1:]
			} else {
				header[0] = strings.TrimPrefix(header[0], "#")
			}
			dataStart = i + 1
		}
		if dataStart > 0 {
			break
		}
	}
	if dataStart < 0 || len(header) == 0 {
		return nil, fmt.Errorf("no column header found")
	}

	// the numeric block is a flat stream, row boundaries are not significant
	var numbers []float64
	for _, line := range lines[dataStart:] {
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q: %w", field, err)
			}
			numbers = append(numbers, v)
		}
	}
	nCol := len(header)
	if len(numbers) == 0 || len(numbers)%nCol != 0 {
		return nil, fmt.Errorf("%d values do not fill rows of %d columns", len(numbers), nCol)
	}
	nRow := len(numbers) / nCol

	df := dataframe.New()
	for c, name := range header {
		col := make([]float64, nRow)
		for r := 0; r < nRow; r++ {
			col[r] = numbers[r*nCol+c]
		}
		if err := df.SetCol(name, col); err != nil {
			return nil, err
		}
	}
	for _, name := range constOrder {
		col := make([]float64, nRow)
		for r := range col {
			col[r] = constants[name]
		}
		if err := df.SetCol(name, col); err != nil {
			return nil, err
		}
	}
	return df, nil
}
