// Package fields pulls values out of loosely shaped JSON records.
//
// Upstream APIs disagree on key names, nest the interesting value one level
// down, or wrap it in a single-element array. Every lookup here tries an
// ordered list of candidate keys and reports absence with ok == false; none of
// the helpers return errors.
//
// Lookup order for a candidate list:
//  1. each key against the record's own fields (keys starting with "$" are
//     evaluated as JSONPath expressions against the whole record)
//  2. each key against the fields of every directly nested object, visited in
//     key order
//  3. for numbers only, the first element when the record itself is an array
package fields

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PaesslerAG/jsonpath"
)

// Number returns the first candidate that parses as a finite number
func Number(record interface{}, keys ...string) (float64, bool) {
	if obj, ok := record.(map[string]interface{}); ok {
		for _, key := range keys {
			if f, ok := toNumber(lookup(obj, key)); ok {
				return f, true
			}
		}
		for _, nested := range nestedObjects(obj) {
			for _, key := range keys {
				if isPath(key) {
					continue
				}
				if f, ok := toNumber(nested[key]); ok {
					return f, true
				}
			}
		}
		return 0, false
	}

	if arr, ok := record.([]interface{}); ok && len(arr) > 0 {
		if f, ok := toNumber(arr[0]); ok {
			return f, true
		}
		if _, isObj := arr[0].(map[string]interface{}); isObj {
			return Number(arr[0], keys...)
		}
		return 0, false
	}

	return toNumber(record)
}

// FlatNumber is Number restricted to the record's own fields
func FlatNumber(record interface{}, keys ...string) (float64, bool) {
	obj, ok := asObject(record)
	if !ok {
		return 0, false
	}
	for _, key := range keys {
		if f, ok := toNumber(lookup(obj, key)); ok {
			return f, true
		}
	}
	return 0, false
}

// String returns the first non-empty string found flat, then one level nested
func String(record interface{}, keys ...string) (string, bool) {
	obj, ok := asObject(record)
	if !ok {
		return "", false
	}
	if s, ok := flatString(obj, keys); ok {
		return s, true
	}
	for _, nested := range nestedObjects(obj) {
		if s, ok := flatString(nested, withoutPaths(keys)); ok {
			return s, true
		}
	}
	return "", false
}

// FlatString only looks at the record's own fields
func FlatString(record interface{}, keys ...string) (string, bool) {
	obj, ok := asObject(record)
	if !ok {
		return "", false
	}
	return flatString(obj, keys)
}

// CurrencyCode returns the first candidate that looks like a three-letter
// code. Case is preserved; validation against a currency table is up to the
// caller.
func CurrencyCode(record interface{}, keys ...string) (string, bool) {
	obj, ok := asObject(record)
	if !ok {
		return "", false
	}
	for _, key := range keys {
		if code, ok := codeValue(lookup(obj, key)); ok {
			return code, true
		}
	}
	for _, nested := range nestedObjects(obj) {
		for _, key := range withoutPaths(keys) {
			if code, ok := codeValue(nested[key]); ok {
				return code, true
			}
		}
	}
	return "", false
}

// FlatCurrencyCode is CurrencyCode without the nested pass
func FlatCurrencyCode(record interface{}, keys ...string) (string, bool) {
	obj, ok := asObject(record)
	if !ok {
		return "", false
	}
	for _, key := range keys {
		if code, ok := codeValue(lookup(obj, key)); ok {
			return code, true
		}
	}
	return "", false
}

// Object returns the nested object stored under the first matching key
func Object(record interface{}, keys ...string) (map[string]interface{}, bool) {
	obj, ok := asObject(record)
	if !ok {
		return nil, false
	}
	for _, key := range keys {
		if nested, ok := lookup(obj, key).(map[string]interface{}); ok {
			return nested, true
		}
	}
	return nil, false
}

// Records normalizes a response into a list of objects. A bare array is used
// as is; an object is searched for an array under one of wrapKeys; a single
// object becomes a one-element list. Non-object array items are skipped.
func Records(v interface{}, wrapKeys ...string) []map[string]interface{} {
	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		for _, key := range wrapKeys {
			if arr, ok := t[key].([]interface{}); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return []map[string]interface{}{t}
		}
	default:
		return nil
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

func asObject(record interface{}) (map[string]interface{}, bool) {
	switch t := record.(type) {
	case map[string]interface{}:
		return t, true
	case []interface{}:
		if len(t) > 0 {
			obj, ok := t[0].(map[string]interface{})
			return obj, ok
		}
	}
	return nil, false
}

func isPath(key string) bool {
	return strings.HasPrefix(key, "$")
}

func withoutPaths(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if !isPath(key) {
			out = append(out, key)
		}
	}
	return out
}

func lookup(obj map[string]interface{}, key string) interface{} {
	if !isPath(key) {
		return obj[key]
	}
	val, err := jsonpath.Get(key, obj)
	if err != nil {
		return nil
	}
	// jsonpath returns a list for wildcard and filter expressions
	if list, ok := val.([]interface{}); ok && len(list) > 0 {
		return list[0]
	}
	return val
}

func nestedObjects(obj map[string]interface{}) []map[string]interface{} {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if _, ok := v.(map[string]interface{}); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, obj[k].(map[string]interface{}))
	}
	return out
}

func flatString(obj map[string]interface{}, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := lookup(obj, key).(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func codeValue(val interface{}) (string, bool) {
	s, ok := val.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return "", false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return "", false
		}
	}
	return s, true
}

func toNumber(val interface{}) (float64, bool) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, ok := parseNumericString(v)
		if !ok {
			return 0, false
		}
		f = parsed
	case []interface{}:
		if len(v) == 0 {
			return 0, false
		}
		return toNumber(v[0])
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumericString accepts "141.4", the comma-decimal "141,4" and
// thousands-grouped forms such as "1,234.5" or "1.234,5". A lone comma
// followed by exactly three digits ("1,234") is read as grouping unless the
// integer part is zero ("0,125").
func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// the separator that comes last is the decimal one
		group, decimal := byte(','), lastDot
		if lastComma > lastDot {
			group, decimal = '.', lastComma
		}
		if strings.IndexByte(s[decimal+1:], group) >= 0 || !groupedThousands(s[:decimal], group) {
			return 0, false
		}
		s = strings.ReplaceAll(s[:decimal], string(group), "") + "." + s[decimal+1:]
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && (len(s)-lastComma-1 != 3 || isZero(s[:lastComma])) {
			s = strings.Replace(s, ",", ".", 1)
		} else if groupedThousands(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			return 0, false
		}
	case lastDot >= 0:
		if !groupedThousands(s, '.') {
			return 0, false
		}
		s = strings.ReplaceAll(s, ".", "")
	default:
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// groupedThousands reports whether s is digits grouped in threes by sep,
// with an optional sign and a leading group of one to three digits
func groupedThousands(s string, sep byte) bool {
	s = strings.TrimLeft(s, "+-")
	groups := strings.Split(s, string(sep))
	if len(groups) < 2 {
		return false
	}
	for i, g := range groups {
		if (i == 0 && (len(g) == 0 || len(g) > 3)) || (i > 0 && len(g) != 3) {
			return false
		}
		for j := 0; j < len(g); j++ {
			if g[j] < '0' || g[j] > '9' {
				return false
			}
		}
	}
	return true
}

func isZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return s == "0" || s == ""
}
