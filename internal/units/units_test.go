package units_test

import (
	"testing"

	"github.com/datfetch/datfetch/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name string
		in   uint64
		want string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"exact kib", 1024, "1 KiB"},
		{"fractional kib", 1536, "1.5 KiB"},
		{"fractional mib", 1258291, "1.2 MiB"},
		{"exact gib", 1 << 30, "1 GiB"},
		{"tib stays tib", 3 << 40, "3 TiB"},
		{"huge stays tib", 2048 << 40, "2048 TiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, units.FormatBytes(tt.in))
		})
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{"bytes", "512 B", 512, false},
		{"kib", "1.5 KiB", 1536, false},
		{"mib rounded", "1.2 MiB", 1258291, false},
		{"gib", "2 GiB", 2 << 30, false},
		{"padded", "  4.0 TiB  ", 4 << 40, false},
		{"si unit rejected", "1.2 MB", 0, true},
		{"unknown unit", "3 XiB", 0, true},
		{"missing unit", "1024", 0, true},
		{"garbage value", "abc MiB", 0, true},
		{"negative", "-1 KiB", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := units.ParseBytes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Formatting then parsing must land within one-decimal-place rounding of the
// original count.
func TestSizeRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 999, 1024, 1536, 1258291, 5 << 20, 7<<30 + 12345, 1 << 40} {
		formatted := units.FormatBytes(n)
		back, err := units.ParseBytes(formatted)
		require.NoError(t, err, formatted)

		// One decimal place of the active unit bounds the error.
		var tolerance uint64 = 1
		switch {
		case n >= 1<<40:
			tolerance = 1 << 40 / 10
		case n >= 1<<30:
			tolerance = 1 << 30 / 10
		case n >= 1<<20:
			tolerance = 1 << 20 / 10
		case n >= 1<<10:
			tolerance = 1 << 10 / 10
		}

		diff := back - n
		if back < n {
			diff = n - back
		}
		assert.LessOrEqual(t, diff, tolerance, "round trip of %d via %q", n, formatted)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", units.FormatDuration(45.4))
	assert.Equal(t, "3m 12s", units.FormatDuration(192))
	assert.Equal(t, "1h 4m 5s", units.FormatDuration(3845))
}
