package operators

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Statement parameters arrive either as Go values set by the compiler or as
// JSON-decoded values (float64, string, []any) when a program is read back.
// The As* helpers accept both.

// Convert converts v to the Go type behind t.
func Convert(v any, t ParamType) (any, error) {
	switch t {
	case TypeDuration:
		return AsDuration(v)
	case TypeInt:
		return AsInt(v)
	case TypeFloat:
		return AsFloat(v)
	case TypeString, TypeEnum:
		return AsString(v), nil
	case TypeStringList:
		return AsStringList(v)
	}
	return v, nil
}

// AsDuration reads bare numbers as seconds and strings in any form
// schemas.ParseDuration accepts.
func AsDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case schemas.Duration:
		return d.Duration, nil
	case *schemas.Duration:
		if d == nil {
			return 0, errors.New("nil duration")
		}
		return d.Duration, nil
	case string:
		return schemas.ParseDuration(d)
	case float64:
		return schemas.Seconds(d).Duration, nil
	case int:
		return time.Duration(d) * time.Second, nil
	}
	return 0, fmt.Errorf("cannot use %T as a duration", v)
}

// AsInt rejects fractional numbers.
func AsInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("cannot use %T as an int", v)
}

func AsFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("cannot use %T as a float", v)
}

func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// AsStringList accepts []string or a decoded []any holding only strings.
// A nil value is an empty list.
func AsStringList(v any) ([]string, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return l, nil
	case []any:
		out := make([]string, len(l))
		for i, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: expected string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %T as a string list", v)
}
