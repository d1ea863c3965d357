package utils

import (
	"fmt"
	"strconv"
	"time"
)

// Number groups the digits of n in threes, e.g. 1234567 becomes "1,234,567"
func Number(n int64) string {
	if n < 0 {
		return "-" + Number(-n)
	}

	digits := strconv.FormatInt(n, 10)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return string(out)
}

// Duration formats an elapsed time for run summaries: "0s" below a second,
// then "5.2s", "3m5.2s" and "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		minutes := int(d / time.Minute)
		return fmt.Sprintf("%dm%.1fs", minutes, (d - time.Duration(minutes)*time.Minute).Seconds())
	default:
		return fmt.Sprintf("%dh%dm", int(d/time.Hour), int(d/time.Minute)%60)
	}
}

// Bytes formats a size with a binary unit suffix: "512B", "12.3K", "4.5M".
func Bytes(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%dB", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	}
}
