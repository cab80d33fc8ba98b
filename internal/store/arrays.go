package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/contextfabric/fabric/internal/mmap"
	"github.com/contextfabric/fabric/internal/warp"
)

// arrayHeader is the fixed-size header written at the start of every
// flat array file (warp/*.bin, features/*.bin). It lets a reader
// recover the logical element count without trusting the raw file
// size, and gives every section the same magic+version shape as the
// teacher's index file headers.
type arrayHeader struct {
	Magic   [8]byte
	Version uint32
	Count   uint32
	Reserved uint64
}

const arrayHeaderSize = 24

var arrayMagic = [8]byte{'C', 'F', 'A', 'R', 'R', 'A', 'Y', '1'}

func readArrayHeader(data []byte) (arrayHeader, error) {
	var h arrayHeader
	if len(data) < arrayHeaderSize {
		return h, fmt.Errorf("store: array file too small for header (%d bytes)", len(data))
	}
	copy(h.Magic[:], data[0:8])
	if h.Magic != arrayMagic {
		return h, fmt.Errorf("store: array file has bad magic %q", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint32(data[8:12])
	h.Count = binary.LittleEndian.Uint32(data[12:16])
	h.Reserved = binary.LittleEndian.Uint64(data[16:24])
	return h, nil
}

// Int32Array is a read-only int32 array decoded from an mmap'd region
// into a heap slice when the file is opened; Get never copies and is
// safe for concurrent use.
type Int32Array struct {
	region *mmap.Region
	values []int32
	count  int
}

// openInt32Array maps path and interprets it as a header-prefixed,
// little-endian int32 array.
func openInt32Array(mgr *mmap.Manager, name, path string) (*Int32Array, error) {
	region, err := mgr.Open(name, path)
	if err != nil {
		return nil, err
	}
	data := region.Data()
	h, err := readArrayHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[arrayHeaderSize:]
	if len(body) < int(h.Count)*4 {
		return nil, fmt.Errorf("store: array %s declares %d elements but file too short", name, h.Count)
	}
	bodySlice := body[:int(h.Count)*4]
	if crc := uint64(crc32.ChecksumIEEE(bodySlice)); crc != h.Reserved {
		return nil, fmt.Errorf("store: array %s fails checksum (want %x, got %x)", name, h.Reserved, crc)
	}
	values := bytesToInt32Slice(bodySlice, int(h.Count))
	return &Int32Array{region: region, values: values, count: int(h.Count)}, nil
}

// Get returns the value at index i (0-based), or (0, false) if i is out
// of range. It never panics: out-of-range access is an absence, per
// spec.md's bounds-safety invariant.
func (a *Int32Array) Get(i int) (int32, bool) {
	if a == nil || i < 0 || i >= a.count {
		return 0, false
	}
	return a.values[i], true
}

// Len reports the number of elements.
func (a *Int32Array) Len() int {
	if a == nil {
		return 0
	}
	return a.count
}

// Slice returns the full backing slice. Callers must not mutate it: it
// is the decoded heap copy shared by every reader, so a write does not
// fault but is seen by all of them.
func (a *Int32Array) Slice() []int32 {
	if a == nil {
		return nil
	}
	return a.values
}

// openCSR maps an offsets file and a values file and wraps them in a
// warp.CSR. Both files use the same header-prefixed int32 encoding as
// Int32Array.
func openCSR(mgr *mmap.Manager, namePrefix, offsetsPath, valuesPath string) (*warp.CSR, error) {
	offsets, err := openInt32Array(mgr, namePrefix+".offsets", offsetsPath)
	if err != nil {
		return nil, fmt.Errorf("store: open csr offsets: %w", err)
	}
	values, err := openInt32Array(mgr, namePrefix+".values", valuesPath)
	if err != nil {
		return nil, fmt.Errorf("store: open csr values: %w", err)
	}
	return warp.NewCSR(offsets.Slice(), values.Slice()), nil
}

// bytesToInt32Slice decodes a little-endian byte slice into a newly
// allocated []int32, element by element. It copies instead of
// reinterpreting the mapped bytes with an unsafe cast (the teacher's
// direct-mmap-as-typed-slice pattern), which keeps it correct on
// big-endian hosts.
func bytesToInt32Slice(b []byte, count int) []int32 {
	out := make([]int32, count)
	for i := 0; i < count; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}
