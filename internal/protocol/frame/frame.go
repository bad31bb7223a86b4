package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/matrixctl/internal/matrix"
	"github.com/danmuck/matrixctl/internal/protocol"
)

const WorkersLen = 4

var (
	ErrShortPayload      = errors.New("frame: short payload")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrDimensionMismatch = errors.New("frame: result dimension mismatch")
)

// DataRequest is the payload carried after the DAT token.
type DataRequest struct {
	Workers uint32
	Matrix  matrix.Matrix
}

// Limits constrains decode memory use on the receiving side.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 256 * 1024 * 1024,
	}
}

// EncodeDataRequest builds "DAT" || u32_be(workers) || wire buffer.
func EncodeDataRequest(req DataRequest) []byte {
	body := req.Matrix.Serialize()
	buf := make([]byte, 0, protocol.TokenLen+WorkersLen+len(body))
	buf = append(buf, string(protocol.TokenData)...)
	buf = binary.BigEndian.AppendUint32(buf, req.Workers)
	return append(buf, body...)
}

// ReadDataRequest reads the DAT payload once the token itself was consumed.
func ReadDataRequest(r io.Reader, limits Limits) (DataRequest, error) {
	var workers [WorkersLen]byte
	if err := readFull(r, workers[:]); err != nil {
		return DataRequest{}, err
	}
	m, err := readMatrix(r, limits)
	if err != nil {
		return DataRequest{}, err
	}
	return DataRequest{Workers: binary.BigEndian.Uint32(workers[:]), Matrix: m}, nil
}

// ReadResult reads the matrix following a DON reply. The header is checked
// against expectedDim before the cell payload is read.
func ReadResult(r io.Reader, expectedDim uint32) (matrix.Matrix, error) {
	size, ok := matrix.SerializedSize(expectedDim)
	if !ok {
		return matrix.Matrix{}, fmt.Errorf("%w: dim=%d", ErrPayloadTooLarge, expectedDim)
	}
	buf := make([]byte, size)
	if err := readFull(r, buf[:matrix.DimLen]); err != nil {
		return matrix.Matrix{}, err
	}
	dim, err := matrix.DecodeHeader(buf)
	if err != nil {
		return matrix.Matrix{}, err
	}
	if dim != expectedDim {
		return matrix.Matrix{}, fmt.Errorf("%w: got=%d want=%d", ErrDimensionMismatch, dim, expectedDim)
	}
	if err := readFull(r, buf[matrix.DimLen:]); err != nil {
		return matrix.Matrix{}, err
	}
	return matrix.Deserialize(buf)
}

func WriteResult(w io.Writer, m matrix.Matrix) error {
	_, err := w.Write(m.Serialize())
	return err
}

func readMatrix(r io.Reader, limits Limits) (matrix.Matrix, error) {
	var header [matrix.DimLen]byte
	if err := readFull(r, header[:]); err != nil {
		return matrix.Matrix{}, err
	}
	dim := binary.BigEndian.Uint32(header[:])
	// dim² fits in a uint64; the byte count may not.
	cells := uint64(dim) * uint64(dim)
	if cells > limits.MaxPayloadBytes/matrix.CellLen {
		return matrix.Matrix{}, fmt.Errorf("%w: dim=%d", ErrPayloadTooLarge, dim)
	}
	size := cells * matrix.CellLen
	buf := make([]byte, matrix.DimLen+size)
	copy(buf, header[:])
	if err := readFull(r, buf[matrix.DimLen:]); err != nil {
		return matrix.Matrix{}, err
	}
	return matrix.Deserialize(buf)
}

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrShortPayload
		}
		return err
	}
	return nil
}
