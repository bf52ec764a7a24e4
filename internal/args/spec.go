// Package args turns the loosely-typed argument bag of a field resolution into
// strongly-typed values.
//
// Every argument an entity operation accepts is declared once as a Spec with
// one of a closed set of kinds. Each kind has exactly one coercion function;
// resolution never fails: an absent argument yields its default (when one was
// declared) or the zero value of the kind, and a value that cannot be coerced
// is treated as absent. Shape validation of the payload happens before the
// bag is built (the GraphQL validator does it for the HTTP surface).
//
// Kinds and their Go representation:
//
//	Int64       int64
//	String      string
//	Bool        bool
//	Float64     float64
//	Date        time.Time
//	Int64Array  []int64            (nil when absent)
//	LocaleMap   map[string]string  (empty, never nil)
//	Object      map[string]any     (nil when absent)
package args

import "fmt"

// Kind is the declared type of an argument.
type Kind int

const (
	Int64 Kind = iota + 1
	String
	Bool
	Float64
	Date
	Int64Array
	LocaleMap
	Object
)

func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Float64:
		return "float64"
	case Date:
		return "date"
	case Int64Array:
		return "int64-array"
	case LocaleMap:
		return "locale-map"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Spec declares one argument of an operation. Specs are values; the With*
// helpers return modified copies.
type Spec struct {
	Name    string
	Kind    Kind
	Default any
	// Fields describes the members of an Object argument. Their defaults fill
	// members an object is sent without; they also drive schema and wire
	// generation.
	Fields []Spec
	// Description is carried into the generated schema.
	Description string
	// Locales lists the locales a LocaleMap argument also accepts as flat
	// "<base>_<locale>" keys. Other flat keys are ignored.
	Locales []string
}

// NewSpec declares an argument without a default.
func NewSpec(name string, kind Kind) Spec {
	return Spec{Name: name, Kind: kind}
}

// WithDefault returns a copy of s whose absent value resolves to v.
func (s Spec) WithDefault(v any) Spec {
	s.Default = v
	return s
}

// WithFields returns a copy of s describing the members of an Object argument.
func (s Spec) WithFields(fields ...Spec) Spec {
	s.Fields = append([]Spec(nil), fields...)
	return s
}

// WithDescription returns a copy of s with a schema description.
func (s Spec) WithDescription(d string) Spec {
	s.Description = d
	return s
}

// WithLocales returns a copy of s accepting flat keys for locales.
func (s Spec) WithLocales(locales ...string) Spec {
	s.Locales = append([]string(nil), locales...)
	return s
}

// Localize returns copies of specs whose LocaleMap arguments accept flat
// keys for locales.
func Localize(specs []Spec, locales []string) []Spec {
	out := make([]Spec, len(specs))
	for i, s := range specs {
		if s.Kind == LocaleMap {
			s = s.WithLocales(locales...)
		}
		out[i] = s
	}
	return out
}

// Zero returns the zero value of the kind in its Go representation.
func (k Kind) Zero() any {
	switch k {
	case Int64:
		return int64(0)
	case String:
		return ""
	case Bool:
		return false
	case Float64:
		return float64(0)
	case Date:
		return zeroTime
	case Int64Array:
		return []int64(nil)
	case LocaleMap:
		return map[string]string{}
	case Object:
		return map[string]any(nil)
	default:
		return nil
	}
}
