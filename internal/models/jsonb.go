// Package models - JSON column types and value helpers
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Row maps field id to value. Every row carries an "id".
type Row map[string]any

// Value implements the driver.Valuer interface
func (r Row) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (r *Row) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	if len(bytes) == 0 {
		*r = make(Row)
		return nil
	}

	result := make(Row)
	dec := json.NewDecoder(strings.NewReader(string(bytes)))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return err
	}
	*r = result.normalize()
	return nil
}

// normalize turns json.Number values into int or float64.
func (r Row) normalize() Row {
	for k, v := range r {
		r[k] = normalizeValue(v)
	}
	return r
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}

// NormalizeRows converts decoded JSON numbers so rows from the wire compare
// the same way as generated rows.
func NormalizeRows(rows []Row) []Row {
	for _, r := range rows {
		r.normalize()
	}
	return rows
}

// ID returns the row id as a string.
func (r Row) ID() string {
	return Stringify(r["id"])
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Option is one selectable value of a select or reference field.
type Option struct {
	Value     any    `json:"value" yaml:"value"`
	Label     string `json:"label" yaml:"label"`
	ChipClass string `json:"chipClass,omitempty" yaml:"chipClass,omitempty"`
}

// UnmarshalJSON accepts either a bare scalar or an object.
func (o *Option) UnmarshalJSON(data []byte) error {
	var obj struct {
		Value     any    `json:"value"`
		Label     string `json:"label"`
		ChipClass string `json:"chipClass"`
	}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*o = Option{Value: normalizeValue(obj.Value), Label: obj.Label, ChipClass: obj.ChipClass}
	} else {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*o = Option{Value: normalizeValue(v)}
	}
	if o.Label == "" {
		o.Label = Stringify(o.Value)
	}
	return nil
}

// UnmarshalYAML accepts either a bare scalar or a mapping.
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		*o = Option{Value: v}
	case yaml.MappingNode:
		var obj struct {
			Value     any    `yaml:"value"`
			Label     string `yaml:"label"`
			ChipClass string `yaml:"chipClass"`
		}
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*o = Option{Value: obj.Value, Label: obj.Label, ChipClass: obj.ChipClass}
	default:
		return fmt.Errorf("option must be a scalar or mapping (line %d)", node.Line)
	}
	if o.Label == "" {
		o.Label = Stringify(o.Value)
	}
	return nil
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

// Stringify renders a cell value as text. Lists are comma-joined.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	case []int:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = strconv.Itoa(e)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	}
	return fmt.Sprint(v)
}

// AsFloat converts a cell value to a number. Missing and non-numeric values
// report false.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsList returns the members of a multi-valued cell, or the single value.
func AsList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []int:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return []any{v}
}
