package gormfinder

import (
	"database/sql"
	"encoding"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gorm.io/gorm/schema"

	"github.com/theplant/finder"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	timeType            = reflect.TypeOf(time.Time{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	scannerType         = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

// fieldType is the type values of field are coerced to, pointers unwrapped.
func fieldType(field *schema.Field) reflect.Type {
	t := field.FieldType
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func coerceField(field *schema.Field, path string, value any) (any, error) {
	t := fieldType(field)
	v, err := coerce(t, value)
	if err != nil {
		return nil, &finder.TypeCoercionError{Field: path, Type: t.String(), Value: value, Err: err}
	}
	return v, nil
}

// coerceFieldList converts a comma separated string or a slice into a []T of the field type.
func coerceFieldList(field *schema.Field, path string, value any) (any, error) {
	t := fieldType(field)
	fail := func(err error) error {
		return &finder.TypeCoercionError{Field: path, Type: "[]" + t.String(), Value: value, Err: err}
	}

	var items []any
	switch v := value.(type) {
	case nil:
		return nil, fail(errors.New("list value is nil"))
	case string:
		for _, item := range strings.Split(v, ",") {
			items = append(items, strings.TrimSpace(item))
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			items = append(items, value)
			break
		}
		for i := 0; i < rv.Len(); i++ {
			items = append(items, rv.Index(i).Interface())
		}
	}

	list := reflect.MakeSlice(reflect.SliceOf(t), 0, len(items))
	for _, item := range items {
		v, err := coerce(t, item)
		if err != nil {
			return nil, fail(err)
		}
		list = reflect.Append(list, reflect.ValueOf(v))
	}
	return list.Interface(), nil
}

func coerce(t reflect.Type, value any) (any, error) {
	if value == nil {
		return nil, errors.New("value is nil")
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.New("value is nil")
		}
		rv = rv.Elem()
	}
	if rv.Type() == t {
		return rv.Interface(), nil
	}

	// strings and json.Number values are parsed
	if rv.Kind() == reflect.String {
		return coerceString(t, rv.String())
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return convertNumber(rv, t)
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	if rv.Type() == timeType && t.ConvertibleTo(timeType) {
		return rv.Convert(t).Interface(), nil
	}

	b, err := jsonAPI.Marshal(rv.Interface())
	if err != nil {
		return nil, errors.Wrap(err, "marshal value")
	}
	ptr := reflect.New(t)
	if err := jsonAPI.Unmarshal(b, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "decode %s", b)
	}
	return ptr.Elem().Interface(), nil
}

func coerceString(t reflect.Type, s string) (any, error) {
	ptr := reflect.New(t)
	out := ptr.Elem()

	if t == timeType || (t.Kind() == reflect.Struct && t.ConvertibleTo(timeType)) {
		tm, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(tm).Convert(t).Interface(), nil
	}
	if ptr.Type().Implements(textUnmarshalerType) {
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, errors.Wrap(err, "unmarshal text")
		}
		return out.Interface(), nil
	}

	switch t.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		out.SetFloat(f)
	default:
		if ptr.Type().Implements(scannerType) {
			if err := ptr.Interface().(sql.Scanner).Scan(s); err != nil {
				return nil, errors.Wrap(err, "scan")
			}
			return out.Interface(), nil
		}
		if err := jsonAPI.UnmarshalFromString(s, ptr.Interface()); err != nil {
			return nil, errors.Wrapf(err, "decode %q", s)
		}
	}
	return out.Interface(), nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time format %q", s)
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func convertNumber(rv reflect.Value, t reflect.Type) (any, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		var f float64
		switch {
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		default:
			f = rv.Float()
		}
		if out.OverflowFloat(f) {
			return nil, errors.Errorf("%v overflows %s", f, t)
		}
		out.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch {
		case rv.CanInt():
			n = rv.Int()
		case rv.CanUint():
			if rv.Uint() > math.MaxInt64 {
				return nil, errors.Errorf("%v overflows %s", rv.Uint(), t)
			}
			n = int64(rv.Uint())
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
				return nil, errors.Errorf("%v is not an integer", f)
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return nil, errors.Errorf("%v overflows %s", n, t)
		}
		out.SetInt(n)
	default:
		var n uint64
		switch {
		case rv.CanInt():
			if rv.Int() < 0 {
				return nil, errors.Errorf("%v is negative", rv.Int())
			}
			n = uint64(rv.Int())
		case rv.CanUint():
			n = rv.Uint()
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f < 0 || f > math.MaxUint64 {
				return nil, errors.Errorf("%v is not an unsigned integer", f)
			}
			n = uint64(f)
		}
		if out.OverflowUint(n) {
			return nil, errors.Errorf("%v overflows %s", n, t)
		}
		out.SetUint(n)
	}
	return out.Interface(), nil
}
