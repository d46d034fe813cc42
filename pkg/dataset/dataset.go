// Package dataset loads the bundle and metadata documents a run evaluates
// against. Both are thin collaborators (out of scope as domain logic per
// the evaluation's own design) — this package only owns parsing them into
// the shapes the rest of the pipeline expects.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bundle is a mapping from string keys to arbitrary JSON-shaped values: a
// representative row sample, scalar aggregates, and per-category/time-bucket
// aggregates. At least one key must be non-empty for a bundle to be usable.
type Bundle map[string]any

// Column describes one documented field of the dataset for the metadata
// document's `columns` map.
type Column struct {
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Strptime    string   `json:"strptime,omitempty"`
	Nullable    bool     `json:"nullable,omitempty"`
	NullRate    float64  `json:"null_rate,omitempty"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	Values      []any    `json:"values,omitempty"`
	Range       []any    `json:"range,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// Metadata is the schema document accompanying a Bundle.
type Metadata struct {
	Description    string            `json:"description"`
	Domain         string            `json:"domain"`
	Columns        map[string]Column `json:"columns"`
	DatasetKeys    map[string]string `json:"dataset_keys"`
	ImportantNotes []string          `json:"important_notes"`
}

// LoadBundle reads a JSON file into a Bundle.
func LoadBundle(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing dataset file: %w", err)
	}
	return b, nil
}

// LoadMetadata reads a JSON file into Metadata. A missing or unreadable
// file is returned as an error like any other — the caller decides whether
// an absent metadata document is fatal or merely degrades the run (spec's
// "missing metadata is non-fatal" ingest rule lives there, not here).
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing metadata file: %w", err)
	}
	return &m, nil
}

// Empty reports whether b has no usable keys: a key whose value is nil, an
// empty string, an empty object or an empty array does not count.
func (b Bundle) Empty() bool {
	for _, v := range b {
		switch val := v.(type) {
		case nil:
		case string:
			if val != "" {
				return false
			}
		case map[string]any:
			if len(val) > 0 {
				return false
			}
		case []any:
			if len(val) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// StructuralSummary describes a Bundle's shape without dumping raw rows:
// top-level keys, their value types, and example sub-field names — exactly
// the context the question generator is given instead of a full row dump.
type StructuralSummary struct {
	Keys []KeySummary `json:"keys"`
}

// KeySummary describes one top-level Bundle key.
type KeySummary struct {
	Key        string   `json:"key"`
	ValueType  string   `json:"value_type"`
	SubFields  []string `json:"sub_fields,omitempty"`
}

// Summarize builds a StructuralSummary for b.
func Summarize(b Bundle) StructuralSummary {
	summary := StructuralSummary{Keys: make([]KeySummary, 0, len(b))}
	for key, value := range b {
		ks := KeySummary{Key: key, ValueType: jsonTypeName(value)}
		if m, ok := value.(map[string]any); ok {
			for field := range m {
				ks.SubFields = append(ks.SubFields, field)
			}
		} else if arr, ok := value.([]any); ok && len(arr) > 0 {
			if m, ok := arr[0].(map[string]any); ok {
				for field := range m {
					ks.SubFields = append(ks.SubFields, field)
				}
			}
		}
		summary.Keys = append(summary.Keys, ks)
	}
	return summary
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
