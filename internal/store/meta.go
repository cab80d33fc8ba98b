package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FormatVersion is the current meta.json schema version this package
// reads and writes. It is unrelated to the corpus version (vN directory
// name); it guards the shape of meta.json itself.
const FormatVersion = 1

// TypeInfo describes one node type declared in the catalog.
type TypeInfo struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	LevelOrder int    `json:"level_order"`
	SlotType   bool   `json:"slot_type"`
}

// ValueKind enumerates the two feature value kinds from spec.md §3.
type ValueKind string

const (
	ValueInt ValueKind = "int"
	ValueStr ValueKind = "str"
)

// FeatureKind distinguishes node-attached from edge-attached features.
type FeatureKind string

const (
	FeatureNode FeatureKind = "node"
	FeatureEdge FeatureKind = "edge"
)

// FeatureInfo is one catalog entry describing where a feature's data
// lives and how to interpret it.
type FeatureInfo struct {
	Name       string      `json:"name"`
	Kind       FeatureKind `json:"kind"`
	ValueType  ValueKind   `json:"value_type"`
	Path       string      `json:"path"`
	HasValues  bool        `json:"has_values,omitempty"` // edge features only
}

// TextFormat is one named rendering template declared by the corpus
// (e.g. "text-orig-full" -> "{g_word_utf8}{trailer_utf8}").
type TextFormat struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

// Meta is the full contents of meta.json, the store's single
// human-readable descriptor.
type Meta struct {
	FormatVersion int                    `json:"format_version"`
	NodeCount     int32                  `json:"node_count"`
	SlotCount     int32                  `json:"slot_count"`
	Types         []TypeInfo             `json:"types"`
	Features      []FeatureInfo          `json:"features"`
	TextFormats   []TextFormat           `json:"text_formats"`
	Sections      []string               `json:"sections"` // e.g. ["book","chapter","verse"]
	DefaultFormat string                 `json:"default_format"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// typeByID and typeByName build a fresh lookup map on each call.
func (m *Meta) typeByID() map[int32]TypeInfo {
	out := make(map[int32]TypeInfo, len(m.Types))
	for _, t := range m.Types {
		out[t.ID] = t
	}
	return out
}

func (m *Meta) typeByName() map[string]TypeInfo {
	out := make(map[string]TypeInfo, len(m.Types))
	for _, t := range m.Types {
		out[t.Name] = t
	}
	return out
}

func (m *Meta) featureByName() map[string]FeatureInfo {
	out := make(map[string]FeatureInfo, len(m.Features))
	for _, f := range m.Features {
		out[f.Name] = f
	}
	return out
}

func (m *Meta) textFormatByName() map[string]string {
	out := make(map[string]string, len(m.TextFormats))
	for _, f := range m.TextFormats {
		out[f.Name] = f.Template
	}
	return out
}

// loadMeta reads and validates meta.json from a version directory.
func loadMeta(versionDir string) (*Meta, error) {
	path := filepath.Join(versionDir, "meta.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read meta.json: %w", err)
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: parse meta.json: %w", err)
	}
	if m.NodeCount <= 0 {
		return nil, fmt.Errorf("store: meta.json declares non-positive node_count")
	}
	if m.SlotCount < 0 || m.SlotCount > m.NodeCount {
		return nil, fmt.Errorf("store: meta.json declares invalid slot_count %d for node_count %d", m.SlotCount, m.NodeCount)
	}
	return &m, nil
}

// saveMeta writes meta.json to a version directory, creating it if
// necessary.
func saveMeta(versionDir string, m *Meta) error {
	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return fmt.Errorf("store: create version dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal meta.json: %w", err)
	}
	path := filepath.Join(versionDir, "meta.json")
	if err := atomicWrite(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("store: write meta.json: %w", err)
	}
	return nil
}
