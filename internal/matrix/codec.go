package matrix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	DimLen  = 4
	CellLen = 4
)

var ErrTruncatedBuffer = errors.New("matrix: truncated buffer")

// SerializedSize is the wire length of a dim x dim matrix: header plus dim²
// cells. ok is false when that length does not fit in an int.
func SerializedSize(dim uint32) (size int, ok bool) {
	cells := uint64(dim) * uint64(dim)
	if cells > uint64(math.MaxInt-DimLen)/CellLen {
		return 0, false
	}
	return DimLen + int(cells)*CellLen, true
}

func (m Matrix) SerializedSize() int {
	dim := m.Dim()
	return DimLen + dim*dim*CellLen
}

// Serialize encodes the matrix as u32_be(dim) followed by row-major i32_be cells.
func (m Matrix) Serialize() []byte {
	buf := make([]byte, m.SerializedSize())
	binary.BigEndian.PutUint32(buf[0:DimLen], uint32(m.Dim()))
	off := DimLen
	for _, row := range m.rows {
		for _, v := range row {
			binary.BigEndian.PutUint32(buf[off:off+CellLen], uint32(v))
			off += CellLen
		}
	}
	return buf
}

// DecodeHeader reads the dimension prefix of a wire buffer.
func DecodeHeader(b []byte) (uint32, error) {
	if len(b) < DimLen {
		return 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedBuffer, DimLen, len(b))
	}
	return binary.BigEndian.Uint32(b[0:DimLen]), nil
}

// Deserialize decodes a wire buffer into a fresh matrix. Bytes past the
// declared size are ignored.
func Deserialize(b []byte) (Matrix, error) {
	dim, err := DecodeHeader(b)
	if err != nil {
		return Matrix{}, err
	}
	need, ok := SerializedSize(dim)
	if !ok {
		return Matrix{}, fmt.Errorf("%w: dim=%d exceeds addressable size, have %d bytes", ErrTruncatedBuffer, dim, len(b))
	}
	if len(b) < need {
		return Matrix{}, fmt.Errorf("%w: dim=%d needs %d bytes, have %d", ErrTruncatedBuffer, dim, need, len(b))
	}

	rows := makeRows(int(dim))
	off := DimLen
	for _, row := range rows {
		for c := range row {
			row[c] = int32(binary.BigEndian.Uint32(b[off : off+CellLen]))
			off += CellLen
		}
	}
	return Matrix{rows: rows}, nil
}
