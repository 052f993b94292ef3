package index

import (
	"errors"
	"fmt"
	"math"
)

// Matrix is a compressed sparse row matrix of float64 weights.
// Row i spans ColIdx[RowPtr[i]:RowPtr[i+1]] and the matching Values; column
// indices are strictly increasing within a row.
type Matrix struct {
	Rows   int
	Cols   int
	RowPtr []int
	ColIdx []uint32
	Values []float64
}

// NewMatrix returns an empty matrix with cols columns and no rows.
func NewMatrix(cols int) *Matrix {
	return &Matrix{Cols: cols, RowPtr: []int{0}}
}

// AppendRow adds a row. cols must be strictly increasing and in range.
func (m *Matrix) AppendRow(cols []uint32, vals []float64) error {
	if len(cols) != len(vals) {
		return fmt.Errorf("row %d: %d columns but %d values", m.Rows, len(cols), len(vals))
	}
	for i, c := range cols {
		if int(c) >= m.Cols {
			return fmt.Errorf("row %d: column %d out of range", m.Rows, c)
		}
		if i > 0 && c <= cols[i-1] {
			return fmt.Errorf("row %d: columns not strictly increasing", m.Rows)
		}
	}
	m.ColIdx = append(m.ColIdx, cols...)
	m.Values = append(m.Values, vals...)
	m.RowPtr = append(m.RowPtr, len(m.ColIdx))
	m.Rows++
	return nil
}

// Row returns the non-zero entries of row i. The slices alias the matrix.
func (m *Matrix) Row(i int) ([]uint32, []float64) {
	start, end := m.RowPtr[i], m.RowPtr[i+1]
	return m.ColIdx[start:end], m.Values[start:end]
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.ColIdx)
}

// Validate checks structural consistency: row pointers, column ranges and finite values.
func (m *Matrix) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return errors.New("negative dimensions")
	}
	if len(m.RowPtr) != m.Rows+1 {
		return fmt.Errorf("row pointer length %d, want %d", len(m.RowPtr), m.Rows+1)
	}
	if m.RowPtr[0] != 0 || m.RowPtr[m.Rows] != len(m.ColIdx) {
		return errors.New("row pointers do not span the column index")
	}
	if len(m.ColIdx) != len(m.Values) {
		return fmt.Errorf("%d column indices but %d values", len(m.ColIdx), len(m.Values))
	}
	for i := 0; i < m.Rows; i++ {
		if m.RowPtr[i] > m.RowPtr[i+1] {
			return fmt.Errorf("row %d: decreasing row pointer", i)
		}
		cols, vals := m.Row(i)
		for j, c := range cols {
			if int(c) >= m.Cols {
				return fmt.Errorf("row %d: column %d out of range", i, c)
			}
			if j > 0 && c <= cols[j-1] {
				return fmt.Errorf("row %d: columns not strictly increasing", i)
			}
			if math.IsNaN(vals[j]) || math.IsInf(vals[j], 0) {
				return fmt.Errorf("row %d: non-finite weight", i)
			}
		}
	}
	return nil
}
