package grpcrt

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
)

const timestampFullName = "google.protobuf.Timestamp"

// setMessageFieldsByJSON sets the fields of msg from resolved argument
// values keyed by JSON name. Unknown names and nil values are skipped, so a
// nil id list means "none" on create and is never sent on update.
func setMessageFieldsByJSON(msg protoreflect.Message, data map[string]any) error {
	if data == nil {
		return nil
	}
	desc := msg.Descriptor()
	for k, v := range data {
		fd := fieldByJSONName(desc, k)
		if fd == nil || unset(v) {
			continue
		}
		switch {
		case fd.IsMap():
			if err := setMap(msg, fd, v); err != nil {
				return err
			}
		case fd.IsList():
			if err := setList(msg, fd, v); err != nil {
				return err
			}
		case fd.Kind() == protoreflect.MessageKind:
			if err := setMessage(msg.Mutable(fd).Message(), v); err != nil {
				return fmt.Errorf("%s: %w", fd.JSONName(), err)
			}
		default:
			val, err := toProtoScalar(fd, v)
			if err != nil {
				return err
			}
			msg.Set(fd, val)
		}
	}
	return nil
}

// unset reports values that leave a field untouched: nil, typed nil
// containers and the zero time.
func unset(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case []int64:
		return vv == nil
	case []any:
		return vv == nil
	case map[string]any:
		return vv == nil
	case map[string]string:
		return vv == nil
	case time.Time:
		return vv.IsZero()
	}
	return false
}

func setList(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v any) error {
	var items []any
	switch vv := v.(type) {
	case []int64:
		for _, n := range vv {
			items = append(items, n)
		}
	case []any:
		items = vv
	case []string:
		for _, s := range vv {
			items = append(items, s)
		}
	default:
		return fmt.Errorf("unsupported repeated arg type %T for %s", v, fd.JSONName())
	}
	list := msg.Mutable(fd).List()
	for _, it := range items {
		pv, err := toProtoScalar(fd, it)
		if err != nil {
			return err
		}
		list.Append(pv)
	}
	return nil
}

func setMap(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v any) error {
	if fd.MapKey().Kind() != protoreflect.StringKind || fd.MapValue().Kind() != protoreflect.StringKind {
		return fmt.Errorf("unsupported map field %s", fd.JSONName())
	}
	m := msg.Mutable(fd).Map()
	switch vv := v.(type) {
	case map[string]string:
		for k, s := range vv {
			m.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(s))
		}
	case map[string]any:
		for k, item := range vv {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("map %s: value for %q is %T, not string", fd.JSONName(), k, item)
			}
			m.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(s))
		}
	default:
		return fmt.Errorf("unsupported map arg type %T for %s", v, fd.JSONName())
	}
	return nil
}

// setMessage fills a singular message field: timestamps from time values,
// nested records from maps.
func setMessage(msg protoreflect.Message, v any) error {
	desc := msg.Descriptor()
	if desc.FullName() == timestampFullName {
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("timestamp value is %T, not time.Time", v)
		}
		msg.Set(desc.Fields().ByName("seconds"), protoreflect.ValueOfInt64(t.Unix()))
		msg.Set(desc.Fields().ByName("nanos"), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
		return nil
	}
	mv, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("message value is %T, not an object", v)
	}
	return setMessageFieldsByJSON(msg, mv)
}

func toProtoScalar(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		switch n := v.(type) {
		case int32:
			return protoreflect.ValueOfInt32(n), nil
		case int:
			return protoreflect.ValueOfInt32(int32(n)), nil
		case int64:
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		switch n := v.(type) {
		case int64:
			return protoreflect.ValueOfInt64(n), nil
		case int:
			return protoreflect.ValueOfInt64(int64(n)), nil
		case int32:
			return protoreflect.ValueOfInt64(int64(n)), nil
		}
	case protoreflect.DoubleKind:
		switch n := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat64(n), nil
		case int64:
			return protoreflect.ValueOfFloat64(float64(n)), nil
		}
	case protoreflect.FloatKind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfFloat32(float32(n)), nil
		}
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if b, ok := v.([]byte); ok {
			return protoreflect.ValueOfBytes(b), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("unsupported arg type %T for %s", v, fd.JSONName())
}

// FieldValue reads the attribute called name (JSON or proto name) from an
// entity record as a Go value:
//
//	int64, string, bool, float64     scalars
//	time.Time                        timestamps; ok is false when unset
//	[]int64                          id lists
//	map[string]string                locale maps
//	protoreflect.Message             nested records; ok is false when unset
func FieldValue(msg protoreflect.Message, name string) (any, bool) {
	if msg == nil {
		return nil, false
	}
	fd := fieldByJSONName(msg.Descriptor(), name)
	if fd == nil {
		return nil, false
	}
	v := msg.Get(fd)
	switch {
	case fd.IsMap():
		out := map[string]string{}
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = mv.String()
			return true
		})
		return out, true
	case fd.IsList():
		lst := v.List()
		out := make([]int64, 0, lst.Len())
		for i := 0; i < lst.Len(); i++ {
			if n, ok := scalarValue(fd, lst.Get(i)).(int64); ok {
				out = append(out, n)
			}
		}
		return out, true
	case fd.Kind() == protoreflect.MessageKind:
		if !msg.Has(fd) {
			return nil, false
		}
		sub := v.Message()
		if sub.Descriptor().FullName() == timestampFullName {
			sec := sub.Get(sub.Descriptor().Fields().ByName("seconds")).Int()
			nanos := sub.Get(sub.Descriptor().Fields().ByName("nanos")).Int()
			return time.Unix(sec, nanos).UTC(), true
		}
		return sub, true
	}
	return scalarValue(fd, v), true
}

// Int64Value reads an int64 attribute, 0 when absent.
func Int64Value(msg protoreflect.Message, name string) int64 {
	v, _ := FieldValue(msg, name)
	n, _ := v.(int64)
	return n
}

// Int64sValue reads an id list attribute, nil when absent.
func Int64sValue(msg protoreflect.Message, name string) []int64 {
	v, _ := FieldValue(msg, name)
	ids, _ := v.([]int64)
	return ids
}

func scalarValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return int64(v.Uint())
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int64(v.Enum())
	default:
		return nil
	}
}
