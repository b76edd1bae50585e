package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	tagEscaper         = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// AppendLine appends m in InfluxDB line protocol, without the newline:
//
//	<measurement>[,<tag>=<value>...] <field>=<value>[,...] <unix-ns>
//
// Tags keep their insertion order. Integers carry the "i" suffix, strings
// are quoted. Fields with an empty key or a NaN/Inf value are dropped, a
// metric left without fields appends nothing and reports false.
func AppendLine(buf []byte, m *Metric) ([]byte, bool) {
	start := len(buf)
	buf = append(buf, measurementEscaper.Replace(m.Measurement)...)
	for _, t := range m.Tags {
		if t.Key == "" || t.Value == "" {
			continue
		}
		buf = append(buf, ',')
		buf = append(buf, tagEscaper.Replace(t.Key)...)
		buf = append(buf, '=')
		buf = append(buf, tagEscaper.Replace(t.Value)...)
	}
	written := 0
	for _, f := range m.Fields {
		if !f.writable() {
			continue
		}
		if written == 0 {
			buf = append(buf, ' ')
		} else {
			buf = append(buf, ',')
		}
		written++
		buf = append(buf, tagEscaper.Replace(f.Key)...)
		buf = append(buf, '=')
		buf = appendFieldValue(buf, f.Value)
	}
	if m.Measurement == "" || written == 0 {
		return buf[:start], false
	}
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, m.Time.UnixNano(), 10)
	return buf, true
}

// Line is AppendLine into a new string, empty when m has no valid field.
func Line(m *Metric) string {
	b, _ := AppendLine(nil, m)
	return string(b)
}

func (f Field) writable() bool {
	if f.Key == "" {
		return false
	}
	if v, ok := f.Value.(float64); ok {
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return true
}

func appendFieldValue(buf []byte, v any) []byte {
	switch v := v.(type) {
	case int64:
		buf = strconv.AppendInt(buf, v, 10)
		return append(buf, 'i')
	case int:
		buf = strconv.AppendInt(buf, int64(v), 10)
		return append(buf, 'i')
	case float64:
		return strconv.AppendFloat(buf, v, 'g', -1, 64)
	case bool:
		return strconv.AppendBool(buf, v)
	case string:
		return appendQuoted(buf, v)
	default:
		return appendQuoted(buf, fmt.Sprint(v))
	}
}

func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	buf = append(buf, stringEscaper.Replace(s)...)
	return append(buf, '"')
}
