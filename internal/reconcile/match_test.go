package reconcile_test

import (
	"fmt"
	"testing"

	"github.com/datfetch/datfetch/internal/listing"
	"github.com/datfetch/datfetch/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, rows ...[2]string) *listing.Index {
	t.Helper()

	doc := "<html><body><table>"
	for _, row := range rows {
		doc += fmt.Sprintf(`<tr><td><a href=%q>%s</a></td><td>%s</td></tr>`, row[0], row[0], row[1])
	}
	doc += "</table></body></html>"

	idx := listing.ParseListing(doc, "https://example.org/roms/")
	require.Equal(t, len(rows), idx.Len())

	return idx
}

func TestDominantExtension(t *testing.T) {
	tests := []struct {
		name string
		rows [][2]string
		want string
	}{
		{
			"clear majority",
			[][2]string{{"a.zip", "1 KiB"}, {"b.zip", "1 KiB"}, {"c.7z", "1 KiB"}},
			".zip",
		},
		{
			"tie goes to first seen",
			[][2]string{{"a.7z", "1 KiB"}, {"b.zip", "1 KiB"}, {"c.zip", "1 KiB"}, {"d.7z", "1 KiB"}},
			".7z",
		},
		{
			"extensionless entries ignored",
			[][2]string{{"README", "1 KiB"}, {"b.rar", "1 KiB"}},
			".rar",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := buildIndex(t, tt.rows...)
			assert.Equal(t, tt.want, reconcile.DominantExtension(idx))
		})
	}
}

func TestDominantExtensionEmptyIndex(t *testing.T) {
	assert.Equal(t, ".zip", reconcile.DominantExtension(listing.NewIndex()))
}

func TestMatchTitles(t *testing.T) {
	idx := buildIndex(t,
		[2]string{"Super%20Mario%20World%20%28USA%29.zip", "1.2 MiB"},
		[2]string{"Mega%20Man%20%26%20Bass%20%28USA%29.zip", "2 MiB"},
		[2]string{"Bare-Name", "3 MiB"},
	)

	titles := []reconcile.Title{
		{Name: "Super Mario World (USA)"},
		{Name: "Mega Man & Bass (USA)"},
		{Name: "Bare-Name"},
		{Name: "Not There At All"},
	}

	records := reconcile.Match(titles, idx)
	require.Len(t, records, len(titles))

	for i, record := range records {
		assert.Equal(t, titles[i], record.Title, "order must be preserved")
	}

	assert.Equal(t, "Super Mario World (USA).zip", records[0].Filename)
	assert.Equal(t, uint64(1258291), records[0].Size)
	assert.Equal(t, "https://example.org/roms/Super%20Mario%20World%20%28USA%29.zip", records[0].URL)

	// Matched through the &/%26 and space/%20 expansion.
	assert.Equal(t, "Mega Man & Bass (USA).zip", records[1].Filename)
	assert.True(t, records[1].Matched())

	// Second probe tier: remote file has no extension.
	assert.Equal(t, "Bare-Name", records[2].Filename)

	assert.False(t, records[3].Matched())
	assert.Empty(t, records[3].URL)
	assert.Zero(t, records[3].Size)
	assert.Equal(t, "Not There At All.zip", records[3].ExpectedFilename)
}

func TestMatchExpectedFilenameFromStem(t *testing.T) {
	idx := buildIndex(t, [2]string{"Tetris.zip", "31.5 KiB"})

	records := reconcile.Match([]reconcile.Title{{Name: "Tetris", Stem: "Tetris (World) (Rev 1).zip"}}, idx)
	require.Len(t, records, 1)
	assert.Equal(t, "Tetris (World) (Rev 1).zip", records[0].ExpectedFilename)
	assert.Equal(t, "Tetris.zip", records[0].Filename)
}

func TestMatchDuplicateTitlesNotCollapsed(t *testing.T) {
	idx := buildIndex(t, [2]string{"Tetris.zip", "31.5 KiB"})

	titles := []reconcile.Title{{Name: "Tetris"}, {Name: "Tetris"}}
	records := reconcile.Match(titles, idx)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].Filename, records[1].Filename)
}

func TestMatchEmptyInputs(t *testing.T) {
	idx := buildIndex(t, [2]string{"Tetris.zip", "31.5 KiB"})
	assert.Empty(t, reconcile.Match(nil, idx))

	records := reconcile.Match([]reconcile.Title{{Name: "Tetris"}}, listing.NewIndex())
	require.Len(t, records, 1)
	assert.False(t, records[0].Matched())
}

func TestMatchDeterministic(t *testing.T) {
	idx := buildIndex(t,
		[2]string{"Game%20One.zip", "1 MiB"},
		[2]string{"Game+One.zip", "2 MiB"},
	)
	titles := []reconcile.Title{{Name: "Game One"}, {Name: "Game+One"}}

	first := reconcile.Match(titles, idx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, reconcile.Match(titles, idx))
	}
}

// A title whose variant set reaches two distinct entries resolves to the
// entry owning the earliest variant in insertion order.
func TestMatchVariantOrderTieBreak(t *testing.T) {
	idx := buildIndex(t,
		[2]string{"Game%20One.zip", "1 MiB"},
		[2]string{"Game+One.zip", "2 MiB"},
	)

	records := reconcile.Match([]reconcile.Title{{Name: "Game One"}}, idx)
	require.Len(t, records, 1)

	// The first variant of "Game One.zip" is its own lowercase form, a key
	// both rows registered; the later row owns it under last-write-wins.
	assert.Equal(t, "Game+One.zip", records[0].Filename)
	assert.Equal(t, uint64(2<<20), records[0].Size)
}
