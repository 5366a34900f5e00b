// SPDX-License-Identifier: MIT

package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/katalvlaran/lvgpu/config"
	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/x448/float16"
)

var (
	errRagged      = errors.New("rows have different lengths")
	errUnknownType = errors.New("cannot detect input format")
)

// matrix is a row-major host matrix as read from an input file.
type matrix struct {
	rows, cols int
	data       []float64
}

// inputFormat picks the reader for path: an explicit format wins, otherwise
// the file extension decides.
func inputFormat(path, format string) (string, error) {
	if format != "" {
		return format, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return config.FormatCSV, nil
	case ".json":
		return config.FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q (set input.format or use a .csv or .json extension)", errUnknownType, path)
}

func readMatrix(r io.Reader, format string) (*matrix, error) {
	var rows [][]float64
	var err error
	switch format {
	case config.FormatCSV:
		rows, err = readCSV(r)
	case config.FormatJSON:
		err = json.NewDecoder(r).Decode(&rows)
	default:
		err = fmt.Errorf("%w: %q", errUnknownType, format)
	}
	if err != nil {
		return nil, err
	}
	m := &matrix{rows: len(rows)}
	if m.rows > 0 {
		m.cols = len(rows[0])
	}
	m.data = make([]float64, 0, m.rows*m.cols)
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, fmt.Errorf("%w: row %d has %d values, row 0 has %d", errRagged, i, len(row), m.cols)
		}
		m.data = append(m.data, row...)
	}
	return m, nil
}

// readCSV parses one matrix row per record. Blank lines are skipped and
// surrounding spaces are ignored.
func readCSV(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	var rows [][]float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := cr.FieldPos(j)
				return nil, fmt.Errorf("line %d, column %d: %w", line, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
}

// typed converts values into a host slice of dt. Integer and bool targets
// accept only values they represent exactly; narrower float targets round
// but reject values that would overflow or flush to zero.
func typed(values []float64, dt dtype.DType) (any, error) {
	switch dt {
	case dtype.Invalid, dtype.Float64:
		return values, nil
	case dtype.Float32:
		return convertExact(values, dt, func(v float64) (float32, bool) {
			f := float32(v)
			return f, inRange(v, float64(f))
		})
	case dtype.Float16:
		return convertExact(values, dt, func(v float64) (float16.Float16, bool) {
			f := float16.Fromfloat32(float32(v))
			return f, inRange(v, float64(f.Float32()))
		})
	case dtype.Bool:
		return convertExact(values, dt, func(v float64) (bool, bool) { return v != 0, v == 0 || v == 1 })
	case dtype.Int8:
		return convertExact(values, dt, integer[int8](-1<<7, 1<<7))
	case dtype.Int16:
		return convertExact(values, dt, integer[int16](-1<<15, 1<<15))
	case dtype.Int32:
		return convertExact(values, dt, integer[int32](-1<<31, 1<<31))
	case dtype.Int64:
		return convertExact(values, dt, integer[int64](-1<<63, 1<<63))
	case dtype.Uint8:
		return convertExact(values, dt, integer[uint8](0, 1<<8))
	case dtype.Uint16:
		return convertExact(values, dt, integer[uint16](0, 1<<16))
	case dtype.Uint32:
		return convertExact(values, dt, integer[uint32](0, 1<<32))
	case dtype.Uint64:
		return convertExact(values, dt, integer[uint64](0, 1<<64))
	}
	return nil, fmt.Errorf("cannot read input as %s", dt)
}

// inRange reports whether rounding v to a narrower float gave got without
// overflowing to an infinity or underflowing to zero.
func inRange(v, got float64) bool {
	if math.IsInf(got, 0) && !math.IsInf(v, 0) {
		return false
	}
	return got != 0 || v == 0
}

func convertExact[T any](values []float64, dt dtype.DType, f func(float64) (T, bool)) ([]T, error) {
	out := make([]T, len(values))
	for i, v := range values {
		var ok bool
		if out[i], ok = f(v); !ok {
			return nil, fmt.Errorf("value %g at index %d is not representable as %s", v, i, dt)
		}
	}
	return out, nil
}

// integer converts to T when v is integral and lo <= v < end.
func integer[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64](lo, end float64) func(float64) (T, bool) {
	return func(v float64) (T, bool) {
		if v != math.Trunc(v) || v < lo || v >= end {
			return 0, false
		}
		return T(v), true
	}
}

// writeMatrix prints the rows×cols matrix data in the given output format.
func writeMatrix(w io.Writer, format string, precision, rows, cols int, data []float64) error {
	switch format {
	case config.FormatCSV:
		cw := csv.NewWriter(w)
		for i := 0; i < rows; i++ {
			if err := cw.Write(formatRow(data[i*cols:(i+1)*cols], precision)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case config.FormatJSON:
		out := make([][]json.Number, rows)
		for i := range out {
			out[i] = make([]json.Number, cols)
			for j, s := range formatRow(data[i*cols:(i+1)*cols], precision) {
				out[i][j] = json.Number(s)
			}
		}
		enc := json.NewEncoder(w)
		return enc.Encode(out)
	case config.FormatTable:
		return renderTable(w, nil, rowsOf(data, rows, cols, precision))
	}
	return fmt.Errorf("unknown output format %q", format)
}

func formatRow(row []float64, precision int) []string {
	out := make([]string, len(row))
	for j, v := range row {
		out[j] = strconv.FormatFloat(v, 'f', precision, 64)
	}
	return out
}

func rowsOf(data []float64, rows, cols, precision int) [][]string {
	out := make([][]string, rows)
	for i := range out {
		out[i] = formatRow(data[i*cols:(i+1)*cols], precision)
	}
	return out
}
