package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind discriminates the attribute value sum type.
type ValueKind uint8

const (
	// ValueAbsent covers missing values as well as present-but-empty and
	// present-but-NaN-like payloads. All three render as "omit".
	ValueAbsent ValueKind = iota
	ValueNumber
	ValueString
)

// Value is one attribute value: a number, a string, or absent.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Number creates a numeric value. NaN and infinities classify as absent.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: ValueNumber, num: f}
}

// String creates a string value. Blank and NaN-like text classifies as absent.
func String(s string) Value {
	return classifyString(s)
}

func classifyString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return Value{}
	}
	return Value{kind: ValueString, str: trimmed}
}

// Classify maps a decoded JSON value onto the Value sum type. Nulls, empty
// strings and NaN-like payloads all collapse to the absent variant, which is
// the single "omit from output" signal used by the tool formatters.
func Classify(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case float64:
		return Number(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return classifyString(v.String())
		}
		return Number(f)
	case string:
		return classifyString(v)
	case bool:
		if v {
			return Value{kind: ValueString, str: "true"}
		}
		return Value{kind: ValueString, str: "false"}
	default:
		return Value{}
	}
}

func (v Value) Kind() ValueKind { return v.kind }

// Omit reports whether the value should be dropped from rendered output.
func (v Value) Omit() bool { return v.kind == ValueAbsent }

// Render returns the display form of the value. Absent values render empty.
func (v Value) Render() string {
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueString:
		return v.str
	default:
		return ""
	}
}

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// Attributes is an insertion-ordered attribute bag. Records carry an open set
// of named specification values with no fixed schema, so iteration order
// follows the order the keys were stored in, which keeps rendered output
// stable across calls.
type Attributes struct {
	keys   []string
	values map[string]Value
}

func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]Value)}
}

// Set stores a value under key, preserving first-insertion order.
func (a *Attributes) Set(key string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

func (a *Attributes) Get(key string) (Value, bool) {
	if a == nil || a.values == nil {
		return Value{}, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the attribute names in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// MarshalJSON emits the bag as a JSON object in insertion order. Absent
// values are dropped, matching how the ingest pipeline persists rows.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range a.keys {
		v := a.values[k]
		if v.Omit() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		switch v.kind {
		case ValueNumber:
			buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
		default:
			s, err := json.Marshal(v.str)
			if err != nil {
				return nil, err
			}
			buf.Write(s)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseAttributeBag decodes a serialized attribute bag, preserving key order.
// Malformed payloads degrade to an empty bag rather than an error: one bad
// row must not fail a whole lookup. Nested objects and arrays are skipped.
func ParseAttributeBag(data []byte) *Attributes {
	attrs := NewAttributes()
	if len(bytes.TrimSpace(data)) == 0 {
		return attrs
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return NewAttributes()
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return NewAttributes()
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return NewAttributes()
		}
		key, ok := keyTok.(string)
		if !ok {
			return NewAttributes()
		}
		valTok, err := dec.Token()
		if err != nil {
			return NewAttributes()
		}
		if _, ok := valTok.(json.Delim); ok {
			// Nested structure: consume and drop it.
			if err := skipValue(dec); err != nil {
				return NewAttributes()
			}
			continue
		}
		attrs.Set(key, Classify(valTok))
	}
	return attrs
}

// skipValue consumes the remainder of a nested value whose opening delimiter
// was already read.
func skipValue(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// ActuatorRecord is one part row from the record store: the unique part
// number plus its schema-less attribute bag. The bag never repeats the
// identifier under its own key.
type ActuatorRecord struct {
	Identifier string
	Attributes *Attributes
}

// EmbeddedChunk is one narrative document in the similarity index. Metadata
// carries at least the part identifier and the operating-context field; the
// embedding is produced once at ingestion time and never mutated.
type EmbeddedChunk struct {
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// SearchHit pairs a chunk with its distance from the query embedding.
// Smaller distance means more similar.
type SearchHit struct {
	Chunk    EmbeddedChunk
	Distance float64
}
