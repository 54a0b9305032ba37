package calc

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// displayScalar renders an evaluate result the way a text node shows it:
// strings verbatim, numbers in shortest round-trip form, null or nothing as "".
// Arrays and objects go through the JavaScript string conversion, so [1,2]
// reads "1,2".
func displayScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if !gjson.ValidBytes(raw) {
		return string(raw)
	}
	return jsString(gjson.ParseBytes(raw))
}

// jsString is String(v) for a parsed JSON value.
func jsString(v gjson.Result) string {
	switch {
	case v.IsArray():
		items := v.Array()
		parts := make([]string, len(items))
		for i, it := range items {
			// Array#join writes null elements as empty strings.
			if it.Type != gjson.Null {
				parts[i] = jsString(it)
			}
		}
		return strings.Join(parts, ",")
	case v.IsObject():
		return "[object Object]"
	}
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return formatNumber(v.Num)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return ""
	}
}

// formatNumber follows ECMAScript Number#toString: plain decimal notation for
// 1e-6 <= |f| < 1e21, exponent form with an explicit sign otherwise.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// indentResult lays out a matrix result like JSON.stringify(v, null, 2).
// Member order is kept and numbers are re-serialized, so 1.0 prints as 1.
func indentResult(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	if !gjson.ValidBytes(raw) {
		return "", errors.New("result is not valid JSON")
	}
	var b strings.Builder
	writeIndented(&b, gjson.ParseBytes(raw), 0)
	return b.String(), nil
}

func writeIndented(b *strings.Builder, v gjson.Result, depth int) {
	switch {
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, it := range items {
			writeIndent(b, depth+1)
			writeIndented(b, it, depth+1)
			if i < len(items)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		writeIndent(b, depth)
		b.WriteByte(']')
		return
	case v.IsObject():
		first := true
		v.ForEach(func(key, val gjson.Result) bool {
			if first {
				b.WriteString("{\n")
				first = false
			} else {
				b.WriteString(",\n")
			}
			writeIndent(b, depth+1)
			b.WriteString(quoteJSON(key.Str))
			b.WriteString(": ")
			writeIndented(b, val, depth+1)
			return true
		})
		if first {
			b.WriteString("{}")
			return
		}
		b.WriteByte('\n')
		writeIndent(b, depth)
		b.WriteByte('}')
		return
	}
	switch v.Type {
	case gjson.String:
		b.WriteString(quoteJSON(v.Str))
	case gjson.Number:
		b.WriteString(formatNumber(v.Num))
	case gjson.True:
		b.WriteString("true")
	case gjson.False:
		b.WriteString("false")
	default:
		b.WriteString("null")
	}
}

func writeIndent(b *strings.Builder, depth int) {
	for range depth {
		b.WriteString("  ")
	}
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
