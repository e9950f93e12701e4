package stats

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// MaxBodyBytes caps how much of a provider response is read.
const MaxBodyBytes = 8 << 20

// ReadBody reads at most MaxBodyBytes of resp and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
}

// DecodeLoose parses JSON into generic values. Blank input yields an empty object.
func DecodeLoose(body []byte) (interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// AsRecord returns v as an object, or nil.
func AsRecord(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// AsList returns v as an array, or nil.
func AsList(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}

// AsString returns trimmed string values and "" for anything else.
func AsString(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// AsNumber returns finite numeric values, including numeric strings, and 0
// for anything else.
func AsNumber(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// AsInt64 truncates AsNumber.
func AsInt64(v interface{}) int64 {
	return int64(AsNumber(v))
}

// AsBool returns true only for the JSON literal true.
func AsBool(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// FirstString returns the first non-blank string among keys of rec.
func FirstString(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := AsString(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// FirstNumber returns the first non-zero number among keys of rec.
func FirstNumber(rec map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if n := AsNumber(rec[k]); n != 0 {
			return n
		}
	}
	return 0
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
