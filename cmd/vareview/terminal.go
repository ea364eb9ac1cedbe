package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}

// formatAge renders an RFC 3339 timestamp relative to now, or the raw value
// when it does not parse.
func formatAge(stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return humanize.Time(t)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
