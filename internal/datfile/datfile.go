// Package datfile reads the fixdat manifests that enumerate missing titles.
package datfile

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/datfetch/datfetch/internal/reconcile"
)

// File is a parsed fixdat: header metadata plus the ordered desired titles.
type File struct {
	Name        string
	Description string
	Titles      []reconcile.Title
}

type datafileXML struct {
	Header struct {
		Name        string `xml:"name"`
		Description string `xml:"description"`
	} `xml:"header"`
	Games []struct {
		Name string `xml:"name,attr"`
		ROMs []struct {
			Name string `xml:"name,attr"`
		} `xml:"rom"`
	} `xml:"game"`
}

// Parse decodes a fixdat document. Games without a name are skipped; order
// and duplicates are preserved, since each entry is an independent
// reconciliation target.
func Parse(r io.Reader) (*File, error) {
	var doc datafileXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode fixdat: %w", err)
	}

	file := &File{
		Name:        doc.Header.Name,
		Description: doc.Header.Description,
	}

	for _, game := range doc.Games {
		if game.Name == "" {
			continue
		}

		title := reconcile.Title{Name: game.Name}
		if len(game.ROMs) > 0 {
			title.Stem = game.ROMs[0].Name
		}

		file.Titles = append(file.Titles, title)
	}

	return file, nil
}

// ParseFile opens and parses a fixdat from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixdat: %w", err)
	}
	defer f.Close()

	return Parse(f)
}
