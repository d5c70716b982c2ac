package asidecache

import "github.com/goccy/go-reflect"

// absent reports whether v carries no value: a nil interface, pointer, map,
// slice, func or chan. Zero values of other kinds are real values.
func absent[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
