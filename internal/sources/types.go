// Package sources defines the supplier data connectors. A Source pulls
// raw records from wherever the supplier publishes them (a dropped file,
// a store API) and emits them one by one for capture. Connectors register
// themselves by name in init(), like database drivers.
package sources

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// RawItem is one record as the supplier delivered it, before any
// normalization. Payload keys are the supplier's own column/field names.
type RawItem struct {
	LineNumber int
	Payload    map[string]any
	Reference  string // supplier product reference, if the connector knows it
}

// FetchOptions narrows a single fetch.
type FetchOptions struct {
	// File forces a specific input file instead of the newest one.
	// Only meaningful for file-based connectors.
	File string
	// Limit stops after this many emitted records (0 = no limit).
	Limit int
}

// Source is a supplier data connector.
type Source interface {
	// Name returns the connector name the source was registered under.
	Name() string
	// Describe returns a human-readable description of what will be
	// fetched (resolved file path, endpoint), for logs and dry runs.
	Describe(opts FetchOptions) string
	// Fetch emits raw items until the input is exhausted, emit returns
	// an error, or ctx is cancelled.
	Fetch(ctx context.Context, opts FetchOptions, emit func(RawItem) error) error
}

// Factory builds a Source from its raw JSON config section.
type Factory func(log zerolog.Logger, raw json.RawMessage) (Source, error)
