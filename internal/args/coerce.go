package args

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var zeroTime time.Time

// dateLayouts are tried in order when a date arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerce converts raw into the Go representation of kind. The boolean is
// false when raw cannot represent a value of that kind.
func coerce(kind Kind, raw any) (any, bool) {
	switch kind {
	case Int64:
		return coerceToInt64(raw)
	case String:
		return coerceToString(raw)
	case Bool:
		return coerceToBool(raw)
	case Float64:
		return coerceToFloat64(raw)
	case Date:
		return coerceToDate(raw)
	case Int64Array:
		return coerceToInt64s(raw)
	case LocaleMap:
		return coerceToLocaleMap(raw)
	case Object:
		return coerceToObject(raw)
	}
	return nil, false
}

func coerceToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		return coerceToInt64(uint64(v))
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// floatToInt64 accepts integral values inside the int64 range. 2^63 itself is
// excluded because float64 cannot represent MaxInt64.
func floatToInt64(v float64) (int64, bool) {
	if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func coerceToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceToString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	case map[string]any, []any:
		return "", false
	}
	return fmt.Sprintf("%v", value), true
}

func coerceToBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// coerceToDate accepts time values, timestamps, formatted strings and epoch
// milliseconds.
func coerceToDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return zeroTime, false
		}
		return *v, true
	case *timestamppb.Timestamp:
		if v == nil || v.CheckValid() != nil {
			return zeroTime, false
		}
		return v.AsTime(), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return zeroTime, false
	}
	if ms, ok := coerceToInt64(value); ok {
		return time.UnixMilli(ms).UTC(), true
	}
	return zeroTime, false
}

// coerceToInt64s coerces a list of identifiers. Elements that are not
// integers are dropped; a single scalar becomes a list of one.
func coerceToInt64s(value any) ([]int64, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []int64:
		return append([]int64{}, v...), true
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []string:
		out := make([]int64, 0, len(v))
		for _, s := range v {
			if n, ok := coerceToInt64(s); ok {
				out = append(out, n)
			}
		}
		return out, true
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			if n, ok := coerceToInt64(item); ok {
				out = append(out, n)
			}
		}
		return out, true
	}
	if n, ok := coerceToInt64(value); ok {
		return []int64{n}, true
	}
	return nil, false
}

func coerceToObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = item
		}
		return out, true
	case *structpb.Struct:
		if v == nil {
			return nil, false
		}
		return v.AsMap(), true
	}
	return nil, false
}

// normalize copies nested maps and lists so resolved objects never alias the
// caller's bag.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	default:
		return v
	}
}
