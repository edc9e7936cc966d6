package labelformat

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one data row stamped onto a template. Values are scalars:
// strings, numbers, booleans or nil.
type Record map[string]interface{}

// Lookup returns the printable value of key. A nil value counts as missing.
func (r Record) Lookup(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// LookupFold is Lookup with a case-insensitive key match as fallback
func (r Record) LookupFold(key string) (string, bool) {
	if v, ok := r.Lookup(key); ok {
		return v, true
	}
	for k := range r {
		if strings.EqualFold(k, key) {
			return r.Lookup(k)
		}
	}
	return "", false
}

// Keys returns the record's field names in no particular order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}

// FormatValue renders a scalar the way it appears on a label
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
