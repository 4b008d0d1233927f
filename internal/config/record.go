package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// ErrInvalid is matched by every configuration error (errors.Is).
var ErrInvalid = errors.New("invalid configuration")

// Error reports a malformed, missing or unknown parameter of one
// configuration record.
type Error struct {
	Kind string
	Key  string
	Msg  string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("config: %s: %q %s", e.Kind, e.Key, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Record is one raw parameter mapping as produced by the YAML front end,
// e.g. {"kind": "dns", "server": "9.9.9.9", "name": "example.com"}.
// Readers delete the keys they consume, so whatever is left after
// construction was not understood.
type Record map[string]any

// Check verifies that every mandatory key is present and that no key
// outside mandatory ∪ optional is set. All problems are reported at once.
func (r Record) Check(kind string, mandatory, optional []string) error {
	known := make(map[string]bool, len(mandatory)+len(optional))
	var err error
	for _, k := range mandatory {
		known[k] = true
		if _, ok := r[k]; !ok {
			err = multierr.Append(err, &Error{Kind: kind, Key: k, Msg: "is mandatory"})
		}
	}
	for _, k := range optional {
		known[k] = true
	}
	for _, k := range r.Keys() {
		if !known[k] {
			err = multierr.Append(err, &Error{Kind: kind, Key: k, Msg: "is not a recognized option"})
		}
	}
	return err
}

// Leftover fails when keys remain after construction consumed the record.
func (r Record) Leftover(kind string) error {
	if len(r) == 0 {
		return nil
	}
	return &Error{Kind: kind, Msg: "parameters not consumed: " + strings.Join(r.Keys(), ", ")}
}

// Keys returns the record's keys sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy, so callers can keep the original for
// error messages while a constructor consumes the copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Reader consumes typed values from a Record and keeps the first error.
type Reader struct {
	kind string
	rec  Record
	err  error
}

func (r Record) Reader(kind string) *Reader {
	return &Reader{kind: kind, rec: r}
}

// Err returns the first conversion error, if any.
func (rd *Reader) Err() error { return rd.err }

func (rd *Reader) take(key string) (any, bool) {
	v, ok := rd.rec[key]
	if ok {
		delete(rd.rec, key)
	}
	return v, ok
}

func (rd *Reader) fail(key, format string, args ...any) {
	if rd.err == nil {
		rd.err = &Error{Kind: rd.kind, Key: key, Msg: fmt.Sprintf(format, args...)}
	}
}

func (rd *Reader) String(key string) string { return rd.StringOr(key, "") }

func (rd *Reader) StringOr(key, def string) string {
	v, ok := rd.take(key)
	if !ok {
		return def
	}
	s, ok := scalarString(v)
	if !ok {
		rd.fail(key, "must be a string, got %T", v)
		return def
	}
	return s
}

func (rd *Reader) Int(key string) int { return rd.IntOr(key, 0) }

func (rd *Reader) IntOr(key string, def int) int {
	v, ok := rd.take(key)
	if !ok {
		return def
	}
	n, ok := scalarInt(v)
	if !ok {
		rd.fail(key, "must be an integer, got %v", v)
		return def
	}
	return n
}

func (rd *Reader) BoolOr(key string, def bool) bool {
	v, ok := rd.take(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	rd.fail(key, "must be a boolean, got %v", v)
	return def
}

// Strings accepts a single scalar or a list of scalars.
func (rd *Reader) Strings(key string) []string {
	v, ok := rd.take(key)
	if !ok {
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		list = []any{v}
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := scalarString(e)
		if !ok {
			rd.fail(key, "must be a list of strings, got element %T", e)
			return nil
		}
		out = append(out, s)
	}
	return out
}

// Ints accepts a single integer or a list of integers.
func (rd *Reader) Ints(key string) []int {
	v, ok := rd.take(key)
	if !ok {
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		list = []any{v}
	}
	out := make([]int, 0, len(list))
	for _, e := range list {
		n, ok := scalarInt(e)
		if !ok {
			rd.fail(key, "must be a list of integers, got element %v", e)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

func scalarInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
