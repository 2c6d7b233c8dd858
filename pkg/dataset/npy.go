package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// NPY dtype descriptors.
const (
	DTypeUint8   = "|u1"
	DTypeFloat32 = "<f4"
)

var npyMagic = []byte("\x93NUMPY")

// Array is a C-ordered n-d array of uint8 or float32 values. Exactly one of
// Uint8 and Float32 is set.
type Array struct {
	Shape   []int
	Uint8   []uint8
	Float32 []float32
}

// Uint8Array wraps data with shape.
func Uint8Array(shape []int, data []uint8) Array {
	return Array{Shape: shape, Uint8: data}
}

// Float32Array wraps data with shape.
func Float32Array(shape []int, data []float32) Array {
	return Array{Shape: shape, Float32: data}
}

// DType returns the array's descriptor.
func (a Array) DType() string {
	if a.Float32 != nil {
		return DTypeFloat32
	}
	return DTypeUint8
}

// Len returns the number of elements the shape describes.
func (a Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

func (a Array) validate() error {
	for _, d := range a.Shape {
		if d < 0 {
			return errors.New(errors.ErrCodeInvalidArgument, "negative dimension in shape %v", a.Shape)
		}
	}
	if (a.Uint8 == nil) == (a.Float32 == nil) && a.Len() != 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "array needs exactly one of uint8 or float32 data")
	}
	got := max(len(a.Uint8), len(a.Float32))
	if got != a.Len() {
		return errors.New(errors.ErrCodeInvalidArgument, "shape %v holds %d values, got %d", a.Shape, a.Len(), got)
	}
	return nil
}

// WriteNPY encodes a in NPY format version 1.0.
func WriteNPY(w io.Writer, a Array) error {
	if err := a.validate(); err != nil {
		return err
	}
	header := npyHeader(a.DType(), a.Shape)

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	if a.Float32 != nil {
		buf := make([]byte, 4)
		for _, v := range a.Float32 {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			bw.Write(buf)
		}
	} else {
		bw.Write(a.Uint8)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	return nil
}

// npyHeader renders the header dict padded with spaces so the data starts on
// a 64-byte boundary.
func npyHeader(dtype string, shape []int) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	tuple += ")"

	h := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dtype, tuple)
	const preamble = 10 // magic, version, header length
	pad := 64 - (preamble+len(h)+1)%64
	if pad == 64 {
		pad = 0
	}
	return h + strings.Repeat(" ", pad) + "\n"
}

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ReadNPY decodes a version 1.0 or 2.0 NPY stream of uint8 or little-endian
// float32 values in C order.
func ReadNPY(r io.Reader) (Array, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, 8)
	if _, err := io.ReadFull(br, magic); err != nil {
		return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy preamble")
	}
	if !bytes.Equal(magic[:6], npyMagic) {
		return Array{}, errors.New(errors.ErrCodeInvalidFormat, "not an npy stream")
	}

	var headerLen int
	switch magic[6] {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy header length")
		}
		headerLen = int(n)
	case 2:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy header length")
		}
		headerLen = int(n)
	default:
		return Array{}, errors.New(errors.ErrCodeInvalidFormat, "npy version %d.%d is not supported", magic[6], magic[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy header")
	}
	dtype, shape, err := parseHeader(string(header))
	if err != nil {
		return Array{}, err
	}

	a := Array{Shape: shape}
	switch dtype {
	case DTypeUint8, "<u1":
		a.Uint8 = make([]uint8, a.Len())
		if _, err := io.ReadFull(br, a.Uint8); err != nil {
			return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy data")
		}
	case DTypeFloat32:
		raw := make([]byte, 4*a.Len())
		if _, err := io.ReadFull(br, raw); err != nil {
			return Array{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read npy data")
		}
		a.Float32 = make([]float32, a.Len())
		for i := range a.Float32 {
			a.Float32[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	default:
		return Array{}, errors.New(errors.ErrCodeInvalidFormat, "npy dtype %q is not supported", dtype)
	}
	return a, nil
}

func parseHeader(h string) (string, []int, error) {
	descr := descrRe.FindStringSubmatch(h)
	fortran := fortranRe.FindStringSubmatch(h)
	shape := shapeRe.FindStringSubmatch(h)
	if descr == nil || fortran == nil || shape == nil {
		return "", nil, errors.New(errors.ErrCodeInvalidFormat, "malformed npy header %q", strings.TrimSpace(h))
	}
	if fortran[1] == "True" {
		return "", nil, errors.New(errors.ErrCodeInvalidFormat, "fortran-ordered arrays are not supported")
	}
	var dims []int
	for _, f := range strings.Split(shape[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := strconv.Atoi(f)
		if err != nil || d < 0 {
			return "", nil, errors.New(errors.ErrCodeInvalidFormat, "bad npy dimension %q", f)
		}
		dims = append(dims, d)
	}
	return descr[1], dims, nil
}
