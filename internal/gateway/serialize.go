package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hanpama/portalgraph/internal/schema"
)

// SerializeLeafValue converts attribute values to their JSON form. Long
// stays an int64, Date becomes an RFC 3339 string, LocaleMap a string map.
func (r *Runtime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case schema.LongScalar:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case "Int":
		if n, ok := toInt64(value); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
		if n, ok := toInt64(value); ok {
			return float64(n), nil
		}
	case "String", "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case schema.DateScalar:
		if t, ok := value.(time.Time); ok {
			if t.IsZero() {
				return nil, nil
			}
			return t.UTC().Format(time.RFC3339), nil
		}
	case schema.LocaleMapScalar:
		if m, ok := value.(map[string]string); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("gateway: cannot serialize %T as %s", value, typeName)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}
