package args

import (
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Bag is the untyped argument payload of one field resolution.
// A nil Bag behaves like an empty one.
type Bag map[string]any

// Has reports whether name carries a non-null value.
func (b Bag) Has(name string) bool {
	v, ok := b[name]
	return ok && v != nil
}

func (b Bag) lookup(kind Kind, name string) (any, bool) {
	return b.lookupSpec(NewSpec(name, kind))
}

func (b Bag) lookupSpec(s Spec) (any, bool) {
	if s.Kind == LocaleMap {
		m, ok := b.gatherLocaleMap(s.Name, s.Locales)
		if !ok {
			return nil, false
		}
		return m, true
	}
	raw, ok := b[s.Name]
	if !ok || raw == nil {
		return nil, false
	}
	return coerce(s.Kind, raw)
}

// Int64 returns the argument as an int64, the optional default, or 0.
func (b Bag) Int64(name string, def ...int64) int64 {
	if v, ok := b.lookup(Int64, name); ok {
		return v.(int64)
	}
	if len(def) > 0 {
		return def[0]
	}
	return 0
}

// String returns the argument as a string, the optional default, or "".
func (b Bag) String(name string, def ...string) string {
	if v, ok := b.lookup(String, name); ok {
		return v.(string)
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

// Bool returns the argument as a bool, the optional default, or false.
func (b Bag) Bool(name string, def ...bool) bool {
	if v, ok := b.lookup(Bool, name); ok {
		return v.(bool)
	}
	if len(def) > 0 {
		return def[0]
	}
	return false
}

// Float64 returns the argument as a float64, the optional default, or 0.
func (b Bag) Float64(name string, def ...float64) float64 {
	if v, ok := b.lookup(Float64, name); ok {
		return v.(float64)
	}
	if len(def) > 0 {
		return def[0]
	}
	return 0
}

// Date returns the argument as a time, the optional default, or the zero time.
func (b Bag) Date(name string, def ...time.Time) time.Time {
	if v, ok := b.lookup(Date, name); ok {
		return v.(time.Time)
	}
	if len(def) > 0 {
		return def[0]
	}
	return zeroTime
}

// Int64s returns an identifier list. Absent yields nil (or the default).
func (b Bag) Int64s(name string, def ...[]int64) []int64 {
	if v, ok := b.lookup(Int64Array, name); ok {
		return v.([]int64)
	}
	if len(def) > 0 {
		return def[0]
	}
	return nil
}

// LocaleMap returns the explicit translation map of one logical text field
// keyed by locale identifier. The result is never nil. Flat per-locale keys
// are read only through a Spec that lists its locales.
func (b Bag) LocaleMap(name string, def ...map[string]string) map[string]string {
	if v, ok := b.lookup(LocaleMap, name); ok {
		return v.(map[string]string)
	}
	if len(def) > 0 && def[0] != nil {
		return def[0]
	}
	return map[string]string{}
}

// Object returns a nested argument structure as a detached map, or nil.
func (b Bag) Object(name string) map[string]any {
	if v, ok := b.lookup(Object, name); ok {
		return v.(map[string]any)
	}
	return nil
}

// Message decodes a nested argument structure into a message of the given
// descriptor using the protobuf JSON mapping. Unknown members are ignored.
// It returns nil when the argument is absent or does not fit the message.
func (b Bag) Message(name string, desc protoreflect.MessageDescriptor) protoreflect.Message {
	obj := b.Object(name)
	if obj == nil || desc == nil {
		return nil
	}
	st, err := structpb.NewStruct(obj)
	if err != nil {
		return nil
	}
	raw, err := protojson.Marshal(st)
	if err != nil {
		return nil
	}
	msg := dynamicpb.NewMessage(desc)
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(raw, msg); err != nil {
		return nil
	}
	return msg
}

// Value resolves one declared argument: the coerced value when present, the
// coerced default when declared, otherwise the zero value of the kind.
func (b Bag) Value(s Spec) any {
	if v, ok := b.lookupSpec(s); ok {
		return withMemberDefaults(s, v)
	}
	if s.Default != nil {
		if v, ok := coerce(s.Kind, s.Default); ok {
			return v
		}
	}
	return s.Kind.Zero()
}

// Present reports whether a declared argument was supplied.
func (b Bag) Present(s Spec) bool {
	_, ok := b.lookupSpec(s)
	return ok
}

// Resolve resolves every declared argument, absent ones included.
func (b Bag) Resolve(specs []Spec) map[string]any {
	out := make(map[string]any, len(specs))
	for _, s := range specs {
		out[s.Name] = b.Value(s)
	}
	return out
}

// Changed resolves only the declared arguments that were supplied, so an
// update leaves everything else untouched.
func (b Bag) Changed(specs []Spec) map[string]any {
	out := make(map[string]any, len(specs))
	for _, s := range specs {
		if v, ok := b.lookupSpec(s); ok {
			out[s.Name] = withMemberDefaults(s, v)
		}
	}
	return out
}

// withMemberDefaults fills the declared defaults of the members an embedded
// object was sent without.
func withMemberDefaults(s Spec, v any) any {
	obj, ok := v.(map[string]any)
	if !ok || s.Kind != Object {
		return v
	}
	sub := Bag(obj)
	for _, f := range s.Fields {
		if f.Default != nil && !sub.Present(f) {
			obj[f.Name] = sub.Value(f)
		}
	}
	return obj
}
