package store

import (
	"time"

	"github.com/skelly-dev/codr/internal/metadata"
)

const (
	CurrentManifestVersion = "1"
	CurrentParserVersion   = "tree-sitter-v1"
)

// Manifest describes one published generation.
type Manifest struct {
	Version       string         `json:"version"`
	ParserVersion string         `json:"parser_version"`
	BuildID       string         `json:"build_id"`
	Generation    int            `json:"generation"`
	Root          string         `json:"root"`
	CreatedAt     time.Time      `json:"created_at"`
	Counts        map[string]int `json:"counts"`
}

func (m *Manifest) fill(generation int, root string, sets metadata.RecordSets) {
	if m.Version == "" {
		m.Version = CurrentManifestVersion
	}
	if m.ParserVersion == "" {
		m.ParserVersion = CurrentParserVersion
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Generation = generation
	m.Root = root
	m.Counts = map[string]int{
		string(metadata.KindFunctions): len(sets.Functions),
		string(metadata.KindClasses):   len(sets.Classes),
		string(metadata.KindFiles):     len(sets.Files),
		string(metadata.KindCallGraph): len(sets.CallGraph),
	}
}
