package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a decoded JSON object addressed by key paths.
// A path is a key or a dotted chain of keys into nested objects ("money.totalPaid").
type Record map[string]any

// Decode parses a JSON object, keeping numbers exact.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return r, nil
}

// Lookup returns the raw value at path. Null values are reported as absent.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// resolve returns the first value under paths that conv accepts.
func resolve[T any](r Record, conv func(any) (T, bool), paths []string) (T, bool) {
	for _, p := range paths {
		raw, ok := r.Lookup(p)
		if !ok {
			continue
		}
		if v, ok := conv(raw); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// String returns the first non-empty string under paths, or "".
func (r Record) String(paths ...string) string {
	s, _ := resolve(r, ToString, paths)
	return s
}

// Decimal returns the first numeric value under paths, or zero.
func (r Record) Decimal(paths ...string) decimal.Decimal {
	d, _ := resolve(r, ToDecimal, paths)
	return d
}

// NullDecimal is like Decimal but reports absence.
func (r Record) NullDecimal(paths ...string) decimal.NullDecimal {
	d, ok := resolve(r, ToDecimal, paths)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// Int64 returns the first integral value under paths.
func (r Record) Int64(paths ...string) (int64, bool) {
	return resolve(r, ToInt64, paths)
}

// Bool returns the first boolean-like value under paths.
func (r Record) Bool(paths ...string) (bool, bool) {
	return resolve(r, ToBool, paths)
}

// Time returns the first parseable timestamp under paths, or nil.
func (r Record) Time(paths ...string) *time.Time {
	t, ok := resolve(r, ParseTime, paths)
	if !ok {
		return nil
	}
	return &t
}

// Object returns the first nested object under paths.
func (r Record) Object(paths ...string) (Record, bool) {
	return resolve(r, asRecord, paths)
}

// Records returns the objects of the first array under paths.
// Array elements that are not objects are dropped.
func (r Record) Records(paths ...string) ([]Record, bool) {
	return resolve(r, asRecords, paths)
}

// Len returns the raw length of the array Records would read, counting
// elements that are not objects.
func (r Record) Len(paths ...string) int {
	arr, _ := resolve(r, asArray, paths)
	return len(arr)
}

func asArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Record:
		return o, true
	default:
		return nil, false
	}
}

func asRecord(v any) (Record, bool) {
	o, ok := asObject(v)
	return Record(o), ok
}

func asRecords(v any) ([]Record, bool) {
	arr, ok := asArray(v)
	if !ok {
		return nil, false
	}
	out := make([]Record, 0, len(arr))
	for _, item := range arr {
		if o, ok := asObject(item); ok {
			out = append(out, Record(o))
		}
	}
	return out, true
}
