package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueType is the declared type of a trait's value space.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeNumber ValueType = "number"
	TypeBool   ValueType = "bool"
	TypeEnum   ValueType = "enum"
	TypeArray  ValueType = "array"
	TypeObject ValueType = "object"
	TypeScript ValueType = "script"
)

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBool, TypeEnum, TypeArray, TypeObject, TypeScript:
		return true
	}
	return false
}

// Value is a tagged variant holding one trait value. Only the payload matching
// Type is meaningful. JSON only appears at the serialization edge.
type Value struct {
	Type ValueType
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

func String(s string) Value  { return Value{Type: TypeString, str: s} }
func Enum(s string) Value    { return Value{Type: TypeEnum, str: s} }
func Script(s string) Value  { return Value{Type: TypeScript, str: s} }
func Number(n float64) Value { return Value{Type: TypeNumber, num: n} }
func Int(n int) Value        { return Value{Type: TypeNumber, num: float64(n)} }
func Bool(b bool) Value      { return Value{Type: TypeBool, b: b} }

// Array builds an array value. The slice is copied.
func Array(items ...Value) Value {
	return Value{Type: TypeArray, arr: append([]Value(nil), items...)}
}

// Strings builds an array of string values.
func Strings(items ...string) Value {
	arr := make([]Value, len(items))
	for i, s := range items {
		arr[i] = String(s)
	}
	return Value{Type: TypeArray, arr: arr}
}

// Object builds an object value. The map is copied.
func Object(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{Type: TypeObject, obj: obj}
}

// IsZero reports whether v was never assigned.
func (v Value) IsZero() bool { return v.Type == "" }

// AsString returns the payload of string, enum and script values.
func (v Value) AsString() (string, bool) {
	switch v.Type {
	case TypeString, TypeEnum, TypeScript:
		return v.str, true
	}
	return "", false
}

func (v Value) AsNumber() (float64, bool) {
	if v.Type != TypeNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsInt() (int, bool) {
	n, ok := v.AsNumber()
	return int(n), ok
}

func (v Value) AsBool() (bool, bool) {
	if v.Type != TypeBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.Type != TypeArray {
		return nil, false
	}
	return v.arr, true
}

// AsStrings flattens an array of string-like values.
func (v Value) AsStrings() ([]string, bool) {
	arr, ok := v.AsArray()
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.AsString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Field returns one member of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.Type != TypeObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// StringField is a shortcut for Field(name).AsString().
func (v Value) StringField(name string) string {
	f, _ := v.Field(name)
	s, _ := f.AsString()
	return s
}

// NumberField is a shortcut for Field(name).AsNumber().
func (v Value) NumberField(name string) float64 {
	f, _ := v.Field(name)
	n, _ := f.AsNumber()
	return n
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	a, errA := json.Marshal(v)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && v.Type == o.Type && bytes.Equal(a, b)
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<invalid %s>", v.Type)
	}
	return string(raw)
}

// MarshalJSON writes the natural JSON form of the payload. Object keys are
// sorted so the encoding is stable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case "":
		return []byte("null"), nil
	case TypeString, TypeEnum, TypeScript:
		return json.Marshal(v.str)
	case TypeNumber:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case TypeBool:
		return json.Marshal(v.b)
	case TypeArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			raw, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case TypeObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, _ := json.Marshal(k)
			buf.Write(name)
			buf.WriteByte(':')
			raw, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("catalog: cannot marshal value of type %q", v.Type)
}

// UnmarshalJSON infers the variant from the JSON token. Strings decode as
// TypeString; use DecodeValue when the declared type is known.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// DecodeValue decodes raw JSON against a declared value type.
func DecodeValue(t ValueType, raw []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, fmt.Errorf("catalog: decode %s value: %w", t, err)
	}
	return coerce(t, v)
}

// FromInterface converts a decoded JSON/YAML tree into a Value.
func FromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case int:
		return Int(x), nil
	case int64:
		return Number(float64(x)), nil
	case []interface{}:
		arr := make([]Value, 0, len(x))
		for _, item := range x {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, iv)
		}
		return Value{Type: TypeArray, arr: arr}, nil
	case map[string]interface{}:
		obj := make(map[string]Value, len(x))
		for k, item := range x {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = iv
		}
		return Value{Type: TypeObject, obj: obj}, nil
	}
	return Value{}, fmt.Errorf("catalog: unsupported value %T", raw)
}

// coerce retags an inferred value to the declared type where the payloads are compatible.
func coerce(t ValueType, v Value) (Value, error) {
	if v.IsZero() || v.Type == t {
		return v, nil
	}
	switch t {
	case TypeEnum, TypeScript:
		if v.Type == TypeString {
			v.Type = t
			return v, nil
		}
	case TypeString:
		if v.Type == TypeEnum || v.Type == TypeScript {
			v.Type = t
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("catalog: value of type %s does not fit declared type %s", v.Type, t)
}
