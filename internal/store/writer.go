package store

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/contextfabric/fabric/internal/warp"
)

// Compiled is the in-memory representation the compiler hands to the
// writer: already-decoded node/edge/feature arrays plus the precomputed
// warps from internal/warp.Compute. The writer only serializes; it
// never parses source (the .tf importer is out of scope per spec.md §1).
type Compiled struct {
	Meta    *Meta
	OType   []int32
	OSlots  *warp.CSR
	Warps   *warp.Output
	// NodeFeatures maps feature name to its dense int32 array (raw
	// value for int features, pool index for string features).
	NodeFeatures map[string][]int32
	// StringPools maps string-feature name to its sorted, deduplicated
	// interned value table.
	StringPools map[string][]string
	// EdgeFeatures maps edge feature name to its CSR and, if the
	// feature carries values, a parallel values array.
	EdgeFeatures map[string]*warp.CSR
	EdgeValues   map[string][]int32
}

// Write serializes a Compiled corpus into versionDir (e.g.
// "<corpus>/v3"), using the atomic-temp-file-then-rename pattern for
// every section so a crash mid-write never leaves a half-written file
// visible under its final name.
func Write(versionDir string, c *Compiled) error {
	warpDir := filepath.Join(versionDir, "warp")
	featDir := filepath.Join(versionDir, "features")
	edgeDir := filepath.Join(versionDir, "edges")
	for _, d := range []string{warpDir, featDir, edgeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("store: create %s: %w", d, err)
		}
	}

	if err := writeInt32Array(filepath.Join(warpDir, "otype.bin"), c.OType); err != nil {
		return fmt.Errorf("store: write otype: %w", err)
	}
	if err := writeCSR(warpDir, "oslots.csr", c.OSlots); err != nil {
		return fmt.Errorf("store: write oslots: %w", err)
	}
	if err := writeInt32Array(filepath.Join(warpDir, "order.bin"), c.Warps.Order); err != nil {
		return fmt.Errorf("store: write order: %w", err)
	}
	if err := writeInt32Array(filepath.Join(warpDir, "rank.bin"), c.Warps.Rank); err != nil {
		return fmt.Errorf("store: write rank: %w", err)
	}
	if err := writeInt32Array(filepath.Join(warpDir, "boundary.first.bin"), c.Warps.FirstSlot); err != nil {
		return fmt.Errorf("store: write boundary.first: %w", err)
	}
	if err := writeInt32Array(filepath.Join(warpDir, "boundary.last.bin"), c.Warps.LastSlot); err != nil {
		return fmt.Errorf("store: write boundary.last: %w", err)
	}
	if err := writeCSR(warpDir, "levUp.csr", c.Warps.LevUp); err != nil {
		return fmt.Errorf("store: write levUp: %w", err)
	}
	if err := writeCSR(warpDir, "levDown.csr", c.Warps.LevDown); err != nil {
		return fmt.Errorf("store: write levDown: %w", err)
	}
	if err := writeLevels(filepath.Join(warpDir, "levels.bin"), c.Warps.Levels); err != nil {
		return fmt.Errorf("store: write levels: %w", err)
	}

	for name, values := range c.NodeFeatures {
		f, ok := c.Meta.featureByName()[name]
		if !ok {
			return fmt.Errorf("store: feature %q has data but no catalog entry", name)
		}
		if err := writeInt32Array(filepath.Join(versionDir, f.Path), values); err != nil {
			return fmt.Errorf("store: write feature %q: %w", name, err)
		}
		if f.ValueType == ValueStr {
			pool, ok := c.StringPools[name]
			if !ok {
				return fmt.Errorf("store: string feature %q missing pool", name)
			}
			if err := writeStringPool(filepath.Join(versionDir, f.Path)+".json", pool); err != nil {
				return fmt.Errorf("store: write pool %q: %w", name, err)
			}
		}
	}

	for name, csr := range c.EdgeFeatures {
		f, ok := c.Meta.featureByName()[name]
		if !ok {
			return fmt.Errorf("store: edge %q has data but no catalog entry", name)
		}
		base := filepath.Join(versionDir, f.Path)
		if err := writeInt32Array(base+".offsets", csr.Offsets); err != nil {
			return fmt.Errorf("store: write edge %q offsets: %w", name, err)
		}
		if err := writeInt32Array(base+".values", csr.Values); err != nil {
			return fmt.Errorf("store: write edge %q values: %w", name, err)
		}
		if vals, ok := c.EdgeValues[name]; ok {
			if err := writeInt32Array(base+".values.val", vals); err != nil {
				return fmt.Errorf("store: write edge %q value array: %w", name, err)
			}
		}
	}

	return saveMeta(versionDir, c.Meta)
}

// writeInt32Array atomically writes a header-prefixed, little-endian
// int32 array, computing a CRC32 over the body the same way the
// teacher's persistence layer checksums its sections.
func writeInt32Array(path string, values []int32) error {
	return atomicWrite(path, func(f *os.File) error {
		w := bufio.NewWriter(f)

		body := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(body[i*4:i*4+4], uint32(v))
		}
		crc := crc32.ChecksumIEEE(body)

		if _, err := w.Write(arrayMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(1)); err != nil { // version
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(values))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(crc)); err != nil { // reserved slot carries the checksum
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		return w.Flush()
	})
}

func writeCSR(dir, name string, csr *warp.CSR) error {
	if err := writeInt32Array(filepath.Join(dir, name+".offsets"), csr.Offsets); err != nil {
		return err
	}
	return writeInt32Array(filepath.Join(dir, name+".values"), csr.Values)
}

func writeLevels(path string, levels []warp.LevelRange) error {
	flat := make([]int32, 0, len(levels)*4)
	for _, l := range levels {
		flat = append(flat, l.TypeID, l.MinNode, l.MaxNode, l.Count)
	}
	return writeInt32Array(path, flat)
}

func writeStringPool(path string, values []string) error {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	data, err := json.MarshalIndent(poolFile{Values: sorted}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// atomicWrite writes to a temp file, syncs, closes, then renames over
// the final path, mirroring the teacher's crash-safe write sequence
// (internal/index/hnsw/persistence.go).
func atomicWrite(finalPath string, writeFunc func(*os.File) error) error {
	tempPath := finalPath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	writeErr := writeFunc(f)

	if syncErr := f.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}
	if closeErr := f.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("write data: %w", writeErr)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
