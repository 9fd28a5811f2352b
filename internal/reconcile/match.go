// Package reconcile matches desired titles from a manifest diff against the
// files a remote listing actually offers.
package reconcile

import (
	"path"
	"strings"

	"github.com/datfetch/datfetch/internal/listing"
)

// fallbackExtension is assumed when the listing is empty or carries no
// extensions to vote on.
const fallbackExtension = ".zip"

// Title is one desired entry from the manifest diff. Stem optionally carries
// the manifest's expected base filename when it differs from the title.
type Title struct {
	Name string
	Stem string
}

// MatchRecord pairs a desired title with the listing entry chosen for it.
// Unmatched titles keep empty Filename and URL and zero Size.
type MatchRecord struct {
	Title            Title
	ExpectedFilename string
	Filename         string
	URL              string
	Size             uint64
}

// Matched reports whether a remote file was found for this title.
func (r MatchRecord) Matched() bool {
	return r.Filename != ""
}

// DominantExtension returns the most common file extension in the index, in
// lowercase. Ties go to the extension seen first in listing order.
func DominantExtension(idx *listing.Index) string {
	counts := make(map[string]int)

	var order []string

	for _, entry := range idx.Entries() {
		ext := strings.ToLower(path.Ext(entry.Filename))
		if ext == "" {
			continue
		}

		if counts[ext] == 0 {
			order = append(order, ext)
		}
		counts[ext]++
	}

	var best string

	for _, ext := range order {
		if best == "" || counts[ext] > counts[best] {
			best = ext
		}
	}

	if best == "" {
		return fallbackExtension
	}

	return best
}

// Match resolves each title against the index, preserving input order and
// emitting exactly one record per title. Each title is probed first with the
// dominant extension appended and then bare, because hosts are inconsistent
// about whether filenames carry one. Within a probe the variant insertion
// order breaks ties, which keeps the result reproducible.
func Match(titles []Title, idx *listing.Index) []MatchRecord {
	ext := DominantExtension(idx)
	records := make([]MatchRecord, 0, len(titles))

	for _, title := range titles {
		expected := title.Stem
		if expected == "" {
			expected = title.Name + ext
		}

		record := MatchRecord{Title: title, ExpectedFilename: expected}

		entry, canonical := probe(title.Name+ext, idx)
		if entry == nil {
			entry, canonical = probe(title.Name, idx)
		}

		if entry != nil {
			record.Filename = canonical
			record.URL = entry.URL
			record.Size = entry.Size
		}

		records = append(records, record)
	}

	return records
}

// probe looks the candidate name up under every normalized variant; the first
// variant present in the index wins.
func probe(candidate string, idx *listing.Index) (*listing.Entry, string) {
	for _, variant := range listing.Variants(candidate) {
		if entry, ok := idx.Lookup(variant); ok {
			canonical, _ := idx.Canonical(variant)

			return entry, canonical
		}
	}

	return nil, ""
}
