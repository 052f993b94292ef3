package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var matrixMagic = [4]byte{'T', 'F', 'I', 'M'}

const matrixCodecVersion uint32 = 1

type matrixHeader struct {
	Magic   [4]byte
	Version uint32
	Rows    uint64
	Cols    uint64
	NNZ     uint64
}

// EncodeMatrix serializes m as little-endian CSR: header, row pointers
// (uint64), column indices (uint32), values (float64).
func EncodeMatrix(m *Matrix) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(32 + 8*len(m.RowPtr) + 12*len(m.ColIdx))

	header := matrixHeader{
		Magic:   matrixMagic,
		Version: matrixCodecVersion,
		Rows:    uint64(m.Rows),
		Cols:    uint64(m.Cols),
		NNZ:     uint64(m.NNZ()),
	}
	rowPtr := make([]uint64, len(m.RowPtr))
	for i, p := range m.RowPtr {
		rowPtr[i] = uint64(p)
	}
	for _, part := range []any{header, rowPtr, m.ColIdx, m.Values} {
		if err := binary.Write(&buf, binary.LittleEndian, part); err != nil {
			return nil, fmt.Errorf("encode matrix: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeMatrix parses the EncodeMatrix format and validates the result.
func DecodeMatrix(data []byte) (*Matrix, error) {
	r := bytes.NewReader(data)
	var header matrixHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("decode matrix header: %w", err)
	}
	if header.Magic != matrixMagic {
		return nil, errors.New("decode matrix: bad magic")
	}
	if header.Version != matrixCodecVersion {
		return nil, fmt.Errorf("decode matrix: unsupported version %d", header.Version)
	}
	want := 8*(header.Rows+1) + 12*header.NNZ
	if header.Rows > uint64(len(data)) || header.NNZ > uint64(len(data)) || uint64(r.Len()) != want {
		return nil, fmt.Errorf("decode matrix: body is %d bytes, header implies %d", r.Len(), want)
	}

	rowPtr := make([]uint64, header.Rows+1)
	colIdx := make([]uint32, header.NNZ)
	values := make([]float64, header.NNZ)
	for _, part := range []any{rowPtr, colIdx, values} {
		if err := binary.Read(r, binary.LittleEndian, part); err != nil {
			return nil, fmt.Errorf("decode matrix body: %w", err)
		}
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode matrix: trailing bytes")
	}

	m := &Matrix{
		Rows:   int(header.Rows),
		Cols:   int(header.Cols),
		RowPtr: make([]int, len(rowPtr)),
		ColIdx: colIdx,
		Values: values,
	}
	for i, p := range rowPtr {
		if p > header.NNZ {
			return nil, fmt.Errorf("decode matrix: row pointer %d out of range", i)
		}
		m.RowPtr[i] = int(p)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	return m, nil
}
