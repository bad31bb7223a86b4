package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/danmuck/matrixctl/internal/matrix"
	"github.com/danmuck/matrixctl/internal/protocol"
	"github.com/danmuck/matrixctl/internal/testutil/testlog"
)

func TestEncodeDataRequestLayout(t *testing.T) {
	testlog.Start(t)
	m, err := matrix.FromRows([][]int32{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("from rows: %v", err)
	}
	buf := EncodeDataRequest(DataRequest{Workers: 4, Matrix: m})
	if string(buf[:3]) != "DAT" {
		t.Fatalf("missing DAT token: %q", buf[:3])
	}
	if got := binary.BigEndian.Uint32(buf[3:7]); got != 4 {
		t.Fatalf("worker count=%d want 4", got)
	}
	if !bytes.Equal(buf[7:], m.Serialize()) {
		t.Fatalf("wire buffer mismatch")
	}
	if len(buf) != protocol.TokenLen+WorkersLen+m.SerializedSize() {
		t.Fatalf("unexpected request length %d", len(buf))
	}
}

func TestReadDataRequestRoundTrip(t *testing.T) {
	testlog.Start(t)
	m, err := matrix.Generate(rand.New(rand.NewSource(5)), 6, 0, 9)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	buf := EncodeDataRequest(DataRequest{Workers: 3, Matrix: m})
	r := bytes.NewReader(buf)
	tok, err := protocol.ReadToken(r)
	if err != nil || tok != protocol.TokenData {
		t.Fatalf("read token: %q %v", tok, err)
	}
	req, err := ReadDataRequest(r, DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if req.Workers != 3 || !req.Matrix.Equal(m) {
		t.Fatalf("request mismatch: workers=%d", req.Workers)
	}
}

func TestReadDataRequestLimits(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(1))
	_ = binary.Write(&buf, binary.BigEndian, uint32(1024))
	_, err := ReadDataRequest(&buf, Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadDataRequestHugeDimension(t *testing.T) {
	testlog.Start(t)
	for _, dim := range []uint32{0x80000000, 0xFFFFFFFF} {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(1))
		_ = binary.Write(&buf, binary.BigEndian, dim)
		_, err := ReadDataRequest(&buf, DefaultLimits())
		if !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("dim=%#x expected ErrPayloadTooLarge, got %v", dim, err)
		}
	}
}

func TestReadResult(t *testing.T) {
	testlog.Start(t)
	m, _ := matrix.FromRows([][]int32{{9, 8, 7}, {6, 5, 4}, {3, 2, 1}})
	var buf bytes.Buffer
	if err := WriteResult(&buf, m); err != nil {
		t.Fatalf("write result: %v", err)
	}
	out, err := ReadResult(&buf, 3)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !out.Equal(m) {
		t.Fatalf("result mismatch: %s", out)
	}
}

func TestReadResultDimensionMismatch(t *testing.T) {
	testlog.Start(t)
	m, _ := matrix.FromRows([][]int32{{1, 2}, {3, 4}})
	_, err := ReadResult(bytes.NewReader(m.Serialize()), 3)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestReadResultShort(t *testing.T) {
	testlog.Start(t)
	m, _ := matrix.FromRows([][]int32{{1, 2}, {3, 4}})
	buf := m.Serialize()
	_, err := ReadResult(bytes.NewReader(buf[:len(buf)-1]), 2)
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}
