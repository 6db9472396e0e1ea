package typeconv

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ParamType is the driver-level type a bound parameter is sent as.
type ParamType int

const (
	ParamNull ParamType = iota
	ParamInt
	ParamStr
	ParamLOB
	ParamBool
)

func (t ParamType) String() string {
	switch t {
	case ParamNull:
		return "NULL"
	case ParamInt:
		return "INT"
	case ParamStr:
		return "STR"
	case ParamLOB:
		return "LOB"
	case ParamBool:
		return "BOOL"
	default:
		return "ParamType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Infer maps a Go value to the parameter type it binds as: integer kinds to
// INT, bool to BOOL, nil to NULL and everything else to STR.
func Infer(v any) ParamType {
	if v == nil {
		return ParamNull
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ParamNull
		}
		return Infer(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ParamInt
	case reflect.Bool:
		return ParamBool
	default:
		return ParamStr
	}
}

// Coerce converts v to the Go value the driver receives for type t.
// Values already satisfying driver.Valuer are passed through for STR.
func Coerce(v any, t ParamType) (any, error) {
	switch t {
	case ParamNull:
		return nil, nil
	case ParamInt:
		return toInt64(v)
	case ParamBool:
		return toBool(v)
	case ParamLOB:
		switch x := v.(type) {
		case nil:
			return nil, nil
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		default:
			return []byte(fmt.Sprint(x)), nil
		}
	case ParamStr:
		switch x := v.(type) {
		case nil:
			return nil, nil
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case bool:
			if x {
				return "1", nil
			}
			return "", nil
		case driver.Valuer:
			return x, nil
		}
		return fmt.Sprint(deref(v)), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %v", t)
	}
}

func toInt64(v any) (int64, error) {
	rv := reflect.ValueOf(deref(v))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	case reflect.Invalid:
		return 0, nil
	}
	return 0, fmt.Errorf("cannot bind %T as %v", v, ParamInt)
}

func toBool(v any) (bool, error) {
	rv := reflect.ValueOf(deref(v))
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.String:
		s := rv.String()
		return s != "" && s != "0", nil
	case reflect.Invalid:
		return false, nil
	}
	return false, fmt.Errorf("cannot bind %T as %v", v, ParamBool)
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
