// Package schema validates raw backend payloads before they are decoded into
// typed records. Validation walks the JSON with gjson and reports the first
// mismatch as a *ValidationError carrying its JSON path, so a payload shape
// problem is never confused with a transport failure.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/tidwall/gjson"
)

type ValidationError struct {
	Schema   string
	Path     string
	Expected string
	Got      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s: expected %s, got %s", e.Schema, e.Path, e.Expected, e.Got)
}

// Rule checks one JSON value.
type Rule interface {
	check(path string, v gjson.Result) *ValidationError
}

type Schema struct {
	Name string
	root Rule
}

func New(name string, root Rule) Schema {
	return Schema{Name: name, root: root}
}

// Validate reports whether raw satisfies the schema.
func (s Schema) Validate(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return &ValidationError{Schema: s.Name, Path: "$", Expected: "valid JSON", Got: "malformed payload"}
	}
	if verr := s.root.check("$", gjson.ParseBytes(raw)); verr != nil {
		verr.Schema = s.Name
		return verr
	}
	return nil
}

// Parse validates raw against s and decodes it into T.
func Parse[T any](s Schema, raw []byte) (T, error) {
	var out T
	if err := s.Validate(raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ValidationError{Schema: s.Name, Path: "$", Expected: fmt.Sprintf("%T", out), Got: err.Error()}
	}
	return out, nil
}

func describe(v gjson.Result) string {
	switch {
	case !v.Exists():
		return "nothing"
	case v.Type == gjson.Null:
		return "null"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.String:
		return "string"
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	default:
		return v.Type.String()
	}
}

func mismatch(path, expected string, v gjson.Result) *ValidationError {
	return &ValidationError{Path: path, Expected: expected, Got: describe(v)}
}

///////////////////////////////////////////////////////////
/// Scalars
///////////////////////////////////////////////////////////

type scalarRule struct {
	name  string
	match func(gjson.Result) bool
}

func (r scalarRule) check(path string, v gjson.Result) *ValidationError {
	if !r.match(v) {
		return mismatch(path, r.name, v)
	}
	return nil
}

func String() Rule {
	return scalarRule{name: "string", match: func(v gjson.Result) bool { return v.Type == gjson.String }}
}

func Bool() Rule {
	return scalarRule{name: "boolean", match: func(v gjson.Result) bool {
		return v.Type == gjson.True || v.Type == gjson.False
	}}
}

func Number() Rule {
	return scalarRule{name: "number", match: func(v gjson.Result) bool { return v.Type == gjson.Number }}
}

func Integer() Rule {
	return scalarRule{name: "integer", match: func(v gjson.Result) bool {
		return v.Type == gjson.Number && v.Num == math.Trunc(v.Num)
	}}
}

func NonNegativeInteger() Rule {
	return scalarRule{name: "non-negative integer", match: func(v gjson.Result) bool {
		return v.Type == gjson.Number && v.Num == math.Trunc(v.Num) && v.Num >= 0
	}}
}

// Any accepts every present value, including null.
func Any() Rule {
	return scalarRule{name: "any value", match: func(v gjson.Result) bool { return v.Exists() }}
}

type nullableRule struct{ inner Rule }

func (r nullableRule) check(path string, v gjson.Result) *ValidationError {
	if v.Type == gjson.Null && v.Exists() {
		return nil
	}
	return r.inner.check(path, v)
}

// Nullable accepts null in addition to whatever r accepts.
func Nullable(r Rule) Rule { return nullableRule{inner: r} }

///////////////////////////////////////////////////////////
/// Arrays
///////////////////////////////////////////////////////////

type arrayRule struct{ item Rule }

func Array(item Rule) Rule { return arrayRule{item: item} }

func (r arrayRule) check(path string, v gjson.Result) *ValidationError {
	if !v.IsArray() {
		return mismatch(path, "array", v)
	}
	var verr *ValidationError
	i := 0
	v.ForEach(func(_, item gjson.Result) bool {
		verr = r.item.check(fmt.Sprintf("%s[%d]", path, i), item)
		i++
		return verr == nil
	})
	return verr
}

///////////////////////////////////////////////////////////
/// Objects
///////////////////////////////////////////////////////////

type FieldRule struct {
	name     string
	rule     Rule
	optional bool
}

func Field(name string, r Rule) FieldRule {
	return FieldRule{name: name, rule: r}
}

// Optional declares a field that may be absent; when present it must match r.
func Optional(name string, r Rule) FieldRule {
	return FieldRule{name: name, rule: r, optional: true}
}

type objectRule struct{ fields []FieldRule }

// Object requires a JSON object holding the given fields. Unknown fields
// are allowed.
func Object(fields ...FieldRule) Rule {
	sorted := make([]FieldRule, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	return objectRule{fields: sorted}
}

func (r objectRule) check(path string, v gjson.Result) *ValidationError {
	if !v.IsObject() {
		return mismatch(path, "object", v)
	}
	members := v.Map()
	for _, f := range r.fields {
		member, ok := members[f.name]
		fieldPath := path + "." + f.name
		if !ok {
			if f.optional {
				continue
			}
			return &ValidationError{Path: fieldPath, Expected: "required field", Got: "nothing"}
		}
		if verr := f.rule.check(fieldPath, member); verr != nil {
			return verr
		}
	}
	return nil
}

// ListEnvelope is the {list, total} shape of every list endpoint.
func ListEnvelope(item Rule) Rule {
	return Object(
		Field("list", Array(item)),
		Field("total", NonNegativeInteger()),
	)
}
