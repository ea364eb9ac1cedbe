package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// attrString is the unquoted form, used where a value becomes part of the
// line prefix (component names).
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	if v.Kind() == slog.KindAny {
		return anyString(v.Any())
	}
	return formatValue(v)
}

// formatValue renders a value for console key=value output. Floats carry at
// most three decimals, which keeps media timestamps readable.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return formatFloat(v.Float64())
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		return quoteIfNeeded(anyString(v.Any()))
	default:
		return quoteIfNeeded(v.String())
	}
}

func anyString(x any) string {
	switch val := x.(type) {
	case nil:
		return "<nil>"
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 3, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
