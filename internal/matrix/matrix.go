package matrix

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrInvalidDimension = errors.New("matrix: invalid dimension")
	ErrInvalidRange     = errors.New("matrix: invalid value range")
	ErrNotSquare        = errors.New("matrix: rows are not square")
)

// Matrix is a square grid of int32 cells indexed [row][col].
type Matrix struct {
	rows [][]int32
}

// New returns a zero-filled dim x dim matrix.
func New(dim int) (Matrix, error) {
	if dim < 0 {
		return Matrix{}, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	return Matrix{rows: makeRows(dim)}, nil
}

// FromRows copies rows into a new matrix, rejecting ragged or non-square input.
func FromRows(rows [][]int32) (Matrix, error) {
	dim := len(rows)
	out := makeRows(dim)
	for i, row := range rows {
		if len(row) != dim {
			return Matrix{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrNotSquare, i, len(row), dim)
		}
		copy(out[i], row)
	}
	return Matrix{rows: out}, nil
}

// Generate fills a dim x dim matrix with values drawn uniformly from [low, high).
func Generate(rng *rand.Rand, dim int, low, high int32) (Matrix, error) {
	if dim < 0 {
		return Matrix{}, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	if high <= low {
		return Matrix{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, low, high)
	}
	span := int64(high) - int64(low)
	rows := makeRows(dim)
	for _, row := range rows {
		for c := range row {
			row[c] = int32(int64(low) + rng.Int63n(span))
		}
	}
	return Matrix{rows: rows}, nil
}

func (m Matrix) Dim() int {
	return len(m.rows)
}

func (m Matrix) At(row, col int) int32 {
	return m.rows[row][col]
}

func (m Matrix) Set(row, col int, v int32) {
	m.rows[row][col] = v
}

// Rows returns a deep copy of the cell data.
func (m Matrix) Rows() [][]int32 {
	out := makeRows(len(m.rows))
	for i, row := range m.rows {
		copy(out[i], row)
	}
	return out
}

func (m Matrix) Equal(other Matrix) bool {
	if m.Dim() != other.Dim() {
		return false
	}
	for i, row := range m.rows {
		for j, v := range row {
			if other.rows[i][j] != v {
				return false
			}
		}
	}
	return true
}

func (m Matrix) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range m.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, row)
	}
	b.WriteByte(']')
	return b.String()
}

func makeRows(dim int) [][]int32 {
	cells := make([]int32, dim*dim)
	rows := make([][]int32, dim)
	for i := range rows {
		rows[i] = cells[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return rows
}
