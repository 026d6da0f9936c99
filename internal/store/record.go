package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/shelf/api"
)

// Record is one entity as key-value pairs, the shape collaborators hand
// in and get back. Keys the kind does not declare are ignored.
type Record map[string]any

// missingSentinel is what upstream clients put in fields they could not fill.
const missingSentinel = "N/A"

var numberCleaner = strings.NewReplacer("$", "", ",", "", "_", "", " ", "")

// absent reports whether v carries no information.
func absent(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		t := strings.TrimSpace(x)
		return t == "" || t == missingSentinel
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// coerce converts v to the Go value stored for a field of type t.
// Absent values become nil.
func coerce(t api.FieldType, v any) (any, error) {
	if absent(v) {
		return nil, nil
	}
	switch t {
	case api.Integer:
		return toInt(v)
	case api.Real:
		return toFloat(v)
	case api.Bool:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case api.Date:
		return toDate(v)
	default:
		return toText(v)
	}
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case []string:
		return strings.Join(x, ", "), nil
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if !absent(e) {
				parts = append(parts, fmt.Sprint(e))
			}
		}
		return strings.Join(parts, ", "), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	if i, err := toInt(v); err == nil {
		return strconv.FormatInt(i.(int64), 10), nil
	}
	return nil, fmt.Errorf("%w: cannot store %T as text", ErrInvalidValue, v)
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows", ErrInvalidValue, x)
		}
		return int64(x), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x.String())
		}
		return floatToInt(f)
	case string:
		s := numberCleaner.Replace(strings.TrimSpace(x))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, x)
		}
		return floatToInt(f)
	}
	return nil, fmt.Errorf("%w: cannot store %T as integer", ErrInvalidValue, v)
}

func floatToInt(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, f)
	}
	return int64(f), nil
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(numberCleaner.Replace(strings.TrimSpace(x)), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x)
		}
		return f, nil
	}
	i, err := toInt(v)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot store %T as real", ErrInvalidValue, v)
	}
	return float64(i.(int64)), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, x)
		}
		return b, nil
	}
	i, err := toInt(v)
	if err != nil {
		return false, fmt.Errorf("%w: cannot store %T as bool", ErrInvalidValue, v)
	}
	return i.(int64) != 0, nil
}

func toDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339), nil
	case string:
		return strings.TrimSpace(x), nil
	}
	return nil, fmt.Errorf("%w: cannot store %T as date", ErrInvalidValue, v)
}

// row is a validated, coerced insert for one record.
type row struct {
	cols []string
	vals []any
	key  string
}

// prepare coerces a record against the kind's fields. Precedence for each
// field is: the record's own value, then defaults, then the field default.
func prepare(k *api.Kind, rec Record, defaults Record) (row, error) {
	var r row
	for _, f := range k.Fields {
		raw, ok := rec[f.Name]
		if !ok || absent(raw) {
			raw, ok = defaults[f.Name]
			if !ok || absent(raw) {
				raw = f.Default
			}
		}
		v, err := coerce(f.Type, raw)
		if err != nil {
			return row{}, invalid(k.Name, f.Name, err)
		}
		if v == nil {
			continue
		}
		if r.key == "" && k.IsNaturalKey(f.Name) {
			r.key = fmt.Sprint(v)
		}
		r.cols = append(r.cols, f.Name)
		r.vals = append(r.vals, v)
	}

	if r.key == "" {
		return row{}, invalid(k.Name, strings.Join(k.NaturalKeys, "|"), ErrMissingNaturalKey)
	}
	for _, f := range k.Fields {
		if f.Required && !r.has(f.Name) {
			return row{}, invalid(k.Name, f.Name, ErrMissingField)
		}
	}
	return r, nil
}

func (r row) has(col string) bool {
	for _, c := range r.cols {
		if c == col {
			return true
		}
	}
	return false
}
