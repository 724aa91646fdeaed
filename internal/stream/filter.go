package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is a single foreign-key equality predicate written "column=eq.value".
// The zero Filter matches every record.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "user_id=eq.5". An empty string yields the zero Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: missing '='", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: only eq is supported", s)
	}
	column = strings.TrimSpace(column)
	if column == "" || value == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: empty column or value", s)
	}
	return Filter{Column: column, Value: value}, nil
}

// Eq builds the filter column=eq.value.
func Eq(column string, value fmt.Stringer) Filter {
	return Filter{Column: column, Value: value.String()}
}

// IsZero reports whether f matches everything.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether record's column equals the filter value.
// Numbers and strings compare by their textual form, so 5 and "5" both match "eq.5".
func (f Filter) Matches(record json.RawMessage) bool {
	if f.IsZero() {
		return true
	}
	if len(record) == 0 {
		return false
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(record, &row); err != nil {
		return false
	}
	raw, ok := row[f.Column]
	if !ok {
		return false
	}
	return scalarString(raw) == f.Value
}

func scalarString(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Topic names a table and an optional row filter.
type Topic struct {
	Table  string
	Filter Filter
}

// ParseTopic builds a Topic from its query-string parts.
func ParseTopic(table, filter string) (Topic, error) {
	if !KnownTable(table) {
		return Topic{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return Topic{}, err
	}
	return Topic{Table: table, Filter: f}, nil
}

// Matches reports whether e belongs to the topic.
func (t Topic) Matches(e ChangeEvent) bool {
	return e.Table == t.Table && t.Filter.Matches(e.Record())
}

func (t Topic) String() string {
	if t.Filter.IsZero() {
		return t.Table
	}
	return t.Table + ":" + t.Filter.String()
}
