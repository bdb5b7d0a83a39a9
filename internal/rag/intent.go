package rag

import (
	"regexp"
	"strings"
)

// Detected intents for the default (rag) mode.
type intent int

const (
	intentRAG intent = iota
	intentCatalog
	intentSchema
	intentEntity
)

var (
	catalogRe = regexp.MustCompile(`\b(?:sub)?modules?\b`)
	schemaRe  = regexp.MustCompile(`\b(?:schema|tables?|columns?|datatypes?|data types?|structure|views?)\b`)
	entityRe  = regexp.MustCompile(`\b(?:who|when|status|count|how many|open|closed|created|updated|owner)\b`)

	tableHintRe = regexp.MustCompile(`\bof\s+([a-zA-Z0-9_]+)`)
	quotedRe    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	countsRe    = regexp.MustCompile(`how many\s+([a-z_ ]+?)\s+are\s+(open|closed|active|inactive)`)
)

// detectIntent classifies the lowercased query, first match wins.
func detectIntent(query string) intent {
	q := strings.ToLower(query)
	switch {
	case catalogRe.MatchString(q):
		return intentCatalog
	case schemaRe.MatchString(q):
		return intentSchema
	case entityRe.MatchString(q):
		return intentEntity
	default:
		return intentRAG
	}
}

// tableHint extracts an optional table name from "... of <NAME>" phrasing.
func tableHint(query string) string {
	if m := tableHintRe.FindStringSubmatch(strings.ToLower(query)); m != nil {
		return m[1]
	}
	return ""
}

// entityVocabulary maps query keywords to canonical entity names.
// Ordered so multi-word phrases match before their single-word prefixes.
var entityVocabulary = []struct {
	keyword string
	entity  string
}{
	{"work order", "work_order"},
	{"work_order", "work_order"},
	{"gate pass", "gate_pass"},
	{"spare part", "part_master"},
	{"part", "part_master"},
	{"equipment", "asset"},
	{"asset", "asset"},
	{"wo", "work_order"},
}

// deriveEntity picks the entity name: the explicit field when given, else the
// first vocabulary keyword found in the query, lowercased and underscored.
func deriveEntity(query, explicit string) string {
	if explicit != "" {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(explicit)), " ", "_")
	}
	q := strings.ToLower(query)
	for _, v := range entityVocabulary {
		if strings.Contains(q, v.keyword) {
			return v.entity
		}
	}
	return ""
}

// deriveKey picks the lookup key: the explicit field, else the first quoted
// substring, else the last token of the query.
func deriveKey(query, explicit string) string {
	if explicit != "" {
		return strings.TrimSpace(explicit)
	}
	if m := quotedRe.FindStringSubmatch(query); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	fields := strings.Fields(strings.TrimRight(query, "?!. "))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// matchCounts recognizes "how many <entity> are <state>" questions. The
// entity comes back singular and underscored ("work orders" -> "work_order")
// to match the lookup procedure's vocabulary.
func matchCounts(query string) (entity, state string, ok bool) {
	m := countsRe.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return "", "", false
	}
	entity = strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_")
	return singularize(entity), m[2], true
}

// singularize strips a plural suffix: "passes" -> "pass", "orders" -> "order".
func singularize(word string) string {
	if strings.HasSuffix(word, "ses") || strings.HasSuffix(word, "xes") || strings.HasSuffix(word, "ches") {
		return strings.TrimSuffix(word, "es")
	}
	if strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		return strings.TrimSuffix(word, "s")
	}
	return word
}
