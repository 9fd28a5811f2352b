// Package units converts between byte counts and the binary size strings
// used by directory listings ("1.2 MiB", "512 KiB").
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var unitNames = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// multipliers maps a unit name to its 1024-based byte multiplier.
var multipliers = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// FormatBytes renders n as "<value> <unit>" with the largest unit that keeps
// the value >= 1. The value carries one decimal place when non-integral.
func FormatBytes(n uint64) string {
	size := float64(n)
	idx := 0

	for size >= 1024 && idx < len(unitNames)-1 {
		size /= 1024
		idx++
	}

	if size == math.Trunc(size) {
		return fmt.Sprintf("%d %s", uint64(size), unitNames[idx])
	}

	return fmt.Sprintf("%.1f %s", size, unitNames[idx])
}

// ParseBytes parses "<value> <unit>" back into a byte count. The unit must be
// one of B, KiB, MiB, GiB or TiB; anything else is a parse error. The value is
// rounded to the nearest byte.
func ParseBytes(s string) (uint64, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("malformed size %q", s)
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed size value %q: %w", fields[0], err)
	}

	if value < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}

	mult, ok := multipliers[fields[1]]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", fields[1])
	}

	return uint64(math.Round(value * mult)), nil
}

// FormatDuration renders a wall-clock duration the way the run summary shows
// it: "45s", "3m 12s" or "1h 4m 5s".
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}

	total := int64(seconds)
	if total < 3600 {
		return fmt.Sprintf("%dm %ds", total/60, total%60)
	}

	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}
