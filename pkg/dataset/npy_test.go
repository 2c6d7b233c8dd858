package dataset

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

func TestNPYHeaderAlignment(t *testing.T) {
	for _, shape := range [][]int{{}, {3}, {2, 3}, {10, 15, 64, 64, 3}} {
		h := npyHeader(DTypeUint8, shape)
		assert.Zero(t, (10+len(h))%64, "shape %v", shape)
		assert.Equal(t, byte('\n'), h[len(h)-1])
	}
	assert.Contains(t, npyHeader(DTypeFloat32, []int{3}), "'shape': (3,)")
	assert.Contains(t, npyHeader(DTypeFloat32, []int{2, 7}), "'shape': (2, 7)")
	assert.Contains(t, npyHeader(DTypeFloat32, nil), "'shape': ()")
}

func TestNPYRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Array
	}{
		{"uint8 5d", Uint8Array([]int{1, 2, 2, 1, 3}, []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255})},
		{"float32 3d", Float32Array([]int{1, 2, 7}, []float32{
			1, 2, 3, 0.5, -0.5, 0.25, 1,
			-1, -2, -3, 1e-7, 3.5e8, 0, -0,
		})},
		{"float32 1d", Float32Array([]int{3}, []float32{1, 2, 3})},
		{"scalar", Uint8Array(nil, []uint8{42})},
		{"empty", Uint8Array([]int{0, 3}, []uint8{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteNPY(&buf, tt.in))
			got, err := ReadNPY(&buf)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.in, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNPYWriteInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   Array
	}{
		{"short data", Uint8Array([]int{2, 2}, []uint8{1, 2, 3})},
		{"no data", Array{Shape: []int{2}}},
		{"both types", Array{Shape: []int{1}, Uint8: []uint8{1}, Float32: []float32{1}}},
		{"negative dim", Uint8Array([]int{-1}, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WriteNPY(&bytes.Buffer{}, tt.in)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument), "got %v", err)
		})
	}
}

func TestNPYReadInvalid(t *testing.T) {
	valid := func(header string) []byte {
		var b bytes.Buffer
		b.WriteString("\x93NUMPY\x01\x00")
		b.WriteByte(byte(len(header)))
		b.WriteByte(0)
		b.WriteString(header)
		return b.Bytes()
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOTNUMPY\x00\x00")},
		{"bad version", []byte("\x93NUMPY\x03\x00\x00\x00")},
		{"truncated header", []byte("\x93NUMPY\x01\x00\x50\x00{'descr'")},
		{"fortran order", valid("{'descr': '|u1', 'fortran_order': True, 'shape': (1,), }\n")},
		{"unsupported dtype", valid("{'descr': '<i8', 'fortran_order': False, 'shape': (1,), }\n")},
		{"missing shape", valid("{'descr': '|u1', 'fortran_order': False, }\n")},
		{"truncated data", valid("{'descr': '|u1', 'fortran_order': False, 'shape': (4,), }\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadNPY(bytes.NewReader(tt.data))
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
		})
	}
}

func TestNPYReadVersion2(t *testing.T) {
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (1,), }\n"
	var b bytes.Buffer
	b.WriteString("\x93NUMPY\x02\x00")
	b.Write([]byte{byte(len(header)), 0, 0, 0})
	b.WriteString(header)
	b.Write([]byte{0, 0, 0x80, 0x3f}) // 1.0

	got, err := ReadNPY(&b)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got.Float32)
	assert.Equal(t, []int{1}, got.Shape)
}
