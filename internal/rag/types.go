package rag

import "encoding/json"

// Request modes. An empty mode means the intent-classified default pipeline.
const (
	ModeRAG = "rag"
	ModeGen = "gen"
	ModeOps = "ops"
)

// TopK and similarity clamping bounds.
const (
	DefaultTopK = 12
	MaxTopK     = 50
	MinTopK     = 1

	DefaultMinSim = 0.35
	MaxMinSim     = 0.99
)

// Request is the JSON body accepted by the ask endpoint. All fields except
// Query are optional.
type Request struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode,omitempty"`
	TopK      int      `json:"topK,omitempty"`
	MinSim    float64  `json:"minSim,omitempty"`
	Equipment string   `json:"equipment,omitempty"`
	Module    string   `json:"module,omitempty"`
	Submodule string   `json:"submodule,omitempty"`
	Schemas   []string `json:"schemas,omitempty"`
	Entity    string   `json:"entity,omitempty"`
	Key       string   `json:"key,omitempty"`
	UserID    string   `json:"userId,omitempty"`
}

// clampTopK bounds topK to [1, 50], defaulting to 12.
func clampTopK(k int) int {
	if k == 0 {
		return DefaultTopK
	}
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// clampMinSim bounds minSim to [0, 0.99], defaulting to 0.35.
func clampMinSim(s float64) float64 {
	if s == 0 {
		return DefaultMinSim
	}
	if s < 0 {
		return 0
	}
	if s > MaxMinSim {
		return MaxMinSim
	}
	return s
}

// DocRow is a retrieved context chunk.
type DocRow struct {
	ID      int64   `json:"id"`
	Content string  `json:"content"`
	Page    *int32  `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Source  string  `json:"source"`
	Sim     float64 `json:"sim"`
}

// Source is a citation entry in the response: the context block index, a
// human-readable reference, and the chunk's similarity.
type Source struct {
	Index      int     `json:"index"`
	Ref        string  `json:"ref"`
	Similarity float64 `json:"similarity"`
}

// SchemaRow is one row of schema introspection output.
type SchemaRow struct {
	Schema   string `json:"table_schema"`
	Table    string `json:"table_name"`
	Column   string `json:"column_name"`
	DataType string `json:"data_type"`
}

// Response is the mode-shaped result of handling one request. Kind tells the
// client which fields are populated: "rag", "gen" and "ops" carry Answer and
// Sources; "catalog" carries Text; "schema" carries Schema; "entity" carries
// Rows or Count or Text. Usage and Cost are always present.
type Response struct {
	Kind    string            `json:"kind"`
	Answer  string            `json:"answer,omitempty"`
	Sources []Source          `json:"sources,omitempty"`
	Text    string            `json:"text,omitempty"`
	Schema  []SchemaRow       `json:"schema,omitempty"`
	Rows    []json.RawMessage `json:"rows,omitempty"`
	Count   *int64            `json:"count,omitempty"`
	Usage   Usage             `json:"usage"`
	Cost    Cost              `json:"cost"`
}
