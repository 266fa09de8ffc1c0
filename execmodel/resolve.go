package execmodel

import (
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

func resolveRange(args string) (any, bool) {
	if strings.TrimSpace(args) == "" {
		return nil, false
	}
	fields := strings.Split(args, ",")
	if len(fields) > 3 {
		return nil, false
	}
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}

	start, stop, step := 0, 0, 1
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	}
	if step == 0 {
		return nil, false
	}

	out := []any{}
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}
	return out, true
}

func indexValue(base any, expr string) (any, bool) {
	idx, err := strconv.Atoi(expr)
	if err != nil {
		return nil, false
	}
	if s, ok := base.(string); ok {
		runes := []rune(s)
		i, ok := normalizeIndex(idx, len(runes))
		if !ok {
			return nil, false
		}
		return string(runes[i]), true
	}

	rv := reflect.ValueOf(base)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	i, ok := normalizeIndex(idx, rv.Len())
	if !ok {
		return nil, false
	}
	return rv.Index(i).Interface(), true
}

func normalizeIndex(idx, n int) (int, bool) {
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// sliceValue applies a start:end slice with open-ended bounds. Bounds are
// clamped to the sequence, and negative bounds count from the end.
func sliceValue(base any, expr string) (any, bool) {
	parts := strings.Split(expr, ":")
	bound := func(s string, def, n int) (int, bool) {
		s = strings.TrimSpace(s)
		if s == "" {
			return def, true
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		if v < 0 {
			v += n
		}
		return min(max(v, 0), n), true
	}

	var n int
	rv := reflect.ValueOf(base)
	str, isStr := base.(string)
	switch {
	case isStr:
		n = utf8.RuneCountInString(str)
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		n = rv.Len()
	default:
		return nil, false
	}

	start, ok := bound(parts[0], 0, n)
	if !ok {
		return nil, false
	}
	end, ok := bound(parts[1], n, n)
	if !ok {
		return nil, false
	}
	end = max(end, start)

	if isStr {
		return string([]rune(str)[start:end]), true
	}
	out := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out, true
}

// lookupField resolves one dotted segment: map lookup first, then a
// struct field or method on the value.
func lookupField(v any, name string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		val, found := m[name]
		return val, found
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return m.Call(nil)[0].Interface(), true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Struct:
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), true
		}
		if f, ok := fieldByTag(rv, name); ok {
			return f, true
		}
		if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return m.Call(nil)[0].Interface(), true
		}
	}
	return nil, false
}

func fieldByTag(rv reflect.Value, name string) (any, bool) {
	t := rv.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == name {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}
