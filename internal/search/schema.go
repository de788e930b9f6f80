// Package search ties together the schema, BM25F engine, segment store and
// indexer into the per-tenant ranking pipeline described in spec §4.3-§4.5.
package search

import "fmt"

// FieldType identifies how a schema field is stored/indexed.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldKeyword FieldType = "keyword"
	FieldNumeric FieldType = "numeric"
	FieldStored  FieldType = "stored"
)

// Field describes one column of the schema: its name, type, storage/index
// flags, BM25F boost, and (for text fields) which analyzer profile tokenizes it.
type Field struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Stored       bool      `json:"stored"`
	Indexed      bool      `json:"indexed"`
	Boost        float64   `json:"boost"`
	AnalyzerName string    `json:"analyzer_name,omitempty"`
}

// Schema is an ordered list of fields plus the field that uniquely
// identifies a document (normally "url").
type Schema struct {
	Name        string  `json:"name"`
	UniqueField string  `json:"unique_field"`
	Fields      []Field `json:"fields"`
}

// Validate checks that UniqueField names an actual field.
func (s Schema) Validate() error {
	for _, f := range s.Fields {
		if f.Name == s.UniqueField {
			return nil
		}
	}
	return fmt.Errorf("unique field %q not found in schema", s.UniqueField)
}

// Field looks up a field definition by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TextFields returns every analyzed text field, in schema order.
func (s Schema) TextFields() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Type == FieldText {
			out = append(out, f)
		}
	}
	return out
}

// Boost returns a field's BM25F boost, defaulting to 1.0 for unknown fields.
func (s Schema) Boost(name string) float64 {
	if f, ok := s.Field(name); ok {
		return f.Boost
	}
	return 1.0
}

// DefaultSchema is the documentation schema from spec §3: url/url_path,
// title, heading tiers, body, path, tags, language, plus stored excerpt and
// numeric timestamp.
func DefaultSchema() Schema {
	return Schema{
		Name:        "docs",
		UniqueField: "url",
		Fields: []Field{
			{Name: "url", Type: FieldKeyword, Stored: true, Indexed: true, Boost: 1.0},
			{Name: "url_path", Type: FieldText, Stored: false, Indexed: true, Boost: 1.5, AnalyzerName: "path"},
			{Name: "title", Type: FieldText, Stored: true, Indexed: true, Boost: 2.5, AnalyzerName: "english"},
			{Name: "headings_h1", Type: FieldText, Stored: false, Indexed: true, Boost: 2.5, AnalyzerName: "english"},
			{Name: "headings_h2", Type: FieldText, Stored: false, Indexed: true, Boost: 2.0, AnalyzerName: "english"},
			{Name: "headings", Type: FieldText, Stored: false, Indexed: true, Boost: 1.5, AnalyzerName: "english"},
			{Name: "body", Type: FieldText, Stored: true, Indexed: true, Boost: 1.0, AnalyzerName: "english"},
			{Name: "path", Type: FieldKeyword, Stored: true, Indexed: true, Boost: 1.5},
			{Name: "tags", Type: FieldKeyword, Stored: false, Indexed: true, Boost: 1.5},
			{Name: "language", Type: FieldKeyword, Stored: true, Indexed: false, Boost: 0.0},
			{Name: "excerpt", Type: FieldStored, Stored: true, Indexed: false, Boost: 0.0},
			{Name: "timestamp", Type: FieldNumeric, Stored: true, Indexed: false, Boost: 0.0},
		},
	}
}
