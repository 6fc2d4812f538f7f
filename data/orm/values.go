package orm

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// 读取 SQLite/MySQL 文本时间时依次尝试的格式
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Assign 将按列名组织的属性写入记录。
//
// dest 为结构体指针或 *map[string]any；结构体上未声明的列返回 ErrUnknownColumn。
func Assign(meta *ModelMeta, dest any, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	if m, ok := dest.(*map[string]any); ok {
		if *m == nil {
			*m = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			(*m)[k] = v
		}
		return nil
	}
	if m, ok := dest.(map[string]any); ok && m != nil {
		for k, v := range attrs {
			m[k] = v
		}
		return nil
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: assign target must be a non-nil struct pointer, got %T", ErrInvalidModel, dest)
	}
	elem := rv.Elem()
	for col, v := range attrs {
		f, ok := meta.Field(col)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, meta.Table, col)
		}
		if err := SetFieldValue(elem.FieldByIndex(f.Index), v); err != nil {
			return fmt.Errorf("orm: assign %s: %w", col, err)
		}
	}
	return nil
}

// Value 读取记录某列的值；指针字段为 nil 时返回 nil
func Value(meta *ModelMeta, src any, column string) (any, bool) {
	switch m := src.(type) {
	case map[string]any:
		v, ok := m[column]
		return v, ok
	case *map[string]any:
		if m == nil || *m == nil {
			return nil, false
		}
		v, ok := (*m)[column]
		return v, ok
	}

	rv := reflect.ValueOf(src)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	f, ok := meta.Field(column)
	if !ok {
		return nil, false
	}
	return fieldInterface(rv.FieldByIndex(f.Index)), true
}

// Values 读取记录全部声明列的值
func Values(meta *ModelMeta, src any) map[string]any {
	switch m := src.(type) {
	case map[string]any:
		return copyAttrs(m)
	case *map[string]any:
		if m == nil {
			return map[string]any{}
		}
		return copyAttrs(*m)
	}
	out := make(map[string]any, len(meta.Fields))
	for _, f := range meta.Fields {
		if v, ok := Value(meta, src, f.Column); ok {
			out[f.Column] = v
		}
	}
	return out
}

// WritableValues 与 Values 相同，但剔除只读列
func WritableValues(meta *ModelMeta, src any) map[string]any {
	values := Values(meta, src)
	if meta == nil {
		return values
	}
	for _, f := range meta.Fields {
		if f.ReadOnly {
			delete(values, f.Column)
		}
	}
	return values
}

// IsZero 判断值是否为其类型零值（nil 视为零值）
func IsZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func fieldInterface(fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

func copyAttrs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SetFieldValue 将数据库或请求中的值转换后写入字段。
//
// 支持指针字段、sql.Scanner、time.Time 文本解析以及数字/字符串/布尔之间的常见转换。
func SetFieldValue(fv reflect.Value, v any) error {
	if !fv.CanSet() {
		return fmt.Errorf("field is not settable")
	}
	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if b, ok := v.([]byte); ok && !(fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8) {
		v = string(b)
	}

	if fv.CanAddr() && fv.Addr().Type().Implements(scannerType) {
		return fv.Addr().Interface().(sql.Scanner).Scan(v)
	}

	ft := fv.Type()
	if ft.Kind() == reflect.Ptr {
		ptr := reflect.New(ft.Elem())
		if err := SetFieldValue(ptr.Elem(), v); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			fv.Set(reflect.Zero(ft))
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Type().AssignableTo(ft) {
		fv.Set(rv)
		return nil
	}

	if ft == timeType {
		t, err := toTime(rv.Interface())
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch ft.Kind() {
	case reflect.String:
		if rv.Kind() == reflect.String {
			fv.SetString(rv.String())
			return nil
		}
		if t, ok := rv.Interface().(time.Time); ok {
			fv.SetString(t.Format(time.RFC3339Nano))
			return nil
		}
		fv.SetString(fmt.Sprint(rv.Interface()))
		return nil
	case reflect.Bool:
		b, err := toBool(rv)
		if err != nil {
			return err
		}
		fv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(rv)
		if err != nil {
			return err
		}
		fv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt(rv)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("cannot assign negative %d to %s", n, ft)
		}
		fv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(rv)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
		return nil
	}

	if rv.Type().ConvertibleTo(ft) {
		fv.Set(rv.Convert(ft))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, ft)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := t
		if i := strings.Index(s, " m="); i > 0 {
			s = s[:i]
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", t)
	case int64:
		return time.Unix(t, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", v)
	}
}

func toBool(rv reflect.Value) (bool, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return strconv.ParseBool(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return false, fmt.Errorf("cannot convert %s to bool", rv.Type())
}

func toInt(rv reflect.Value) (int64, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != float64(int64(f)) {
			return 0, fmt.Errorf("cannot convert non-integral %v to integer", f)
		}
		return int64(f), nil
	case reflect.String:
		return strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %s to integer", rv.Type())
}

func toFloat(rv reflect.Value) (float64, error) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.String:
		return strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
	}
	return 0, fmt.Errorf("cannot convert %s to float", rv.Type())
}
