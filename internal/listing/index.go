package listing

// Entry is one downloadable file discovered in a remote directory listing.
type Entry struct {
	Filename string
	Size     uint64
	URL      string
}

// Index maps every normalized variant of a filename to its listing entry.
// It is populated once by ParseListing and read-only afterwards, so it is
// safe to share across concurrent lookups.
type Index struct {
	entries   map[string]*Entry
	canonical map[string]string
	order     []*Entry

	// SkippedRows counts listing rows that produced neither a filename nor a
	// size and were dropped during the parse.
	SkippedRows int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		entries:   make(map[string]*Entry),
		canonical: make(map[string]string),
	}
}

// add registers an entry under every variant of its filename. Both maps are
// updated together here and nowhere else, so they cannot diverge. A variant
// already claimed by an earlier entry is overwritten (last write wins for
// that key only); the earlier entry keeps its remaining keys.
func (idx *Index) add(entry *Entry) {
	variants := Variants(entry.Filename)
	if len(variants) == 0 {
		return
	}

	for _, v := range variants {
		idx.entries[v] = entry
		idx.canonical[v] = entry.Filename
	}

	idx.order = append(idx.order, entry)
}

// Lookup resolves a normalized variant to its entry.
func (idx *Index) Lookup(variant string) (*Entry, bool) {
	entry, ok := idx.entries[variant]

	return entry, ok
}

// Canonical resolves a normalized variant back to the listing's own spelling
// of the filename.
func (idx *Index) Canonical(variant string) (string, bool) {
	name, ok := idx.canonical[variant]

	return name, ok
}

// Entries returns all entries in the order the listing presented them.
func (idx *Index) Entries() []*Entry {
	return idx.order
}

// Len reports the number of distinct files in the index.
func (idx *Index) Len() int {
	return len(idx.order)
}
