package model

import "encoding/json"

// QueryOptions narrows a feature query.
type QueryOptions struct {
	Layers   []string        `json:"layers,omitempty"`
	Filter   json.RawMessage `json:"filter,omitempty"`
	Validate *bool           `json:"validate,omitempty"`
}

// SourceQueryOptions narrows a source feature query.
type SourceQueryOptions struct {
	SourceLayer string          `json:"sourceLayer,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
}
