// Package listing builds a queryable index of downloadable files out of an
// HTML directory listing.
package listing

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/datfetch/datfetch/internal/units"
)

// sizeTokenRE matches "<number>[.<number>] <unit>" cells such as "1.2 MiB".
var sizeTokenRE = regexp.MustCompile(`^\s*([\d.]+)\s*([A-Za-z]+)\s*$`)

// ParseListing parses an HTML directory listing into an Index. Rows that
// cannot be parsed are skipped; a malformed or empty document yields an empty
// index, never an error. Hrefs are resolved against baseURL.
func ParseListing(document, baseURL string) *Index {
	idx := NewIndex()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return idx
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	rows := doc.Find("tr")
	if rows.Length() > 0 {
		rows.Each(func(_ int, row *goquery.Selection) {
			parseTableRow(idx, row, base)
		})

		return idx
	}

	// No table structure: fall back to scanning bare links, where some hosts
	// put "Name - 12.3 MiB" in the anchor text.
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		parseBareLink(idx, link, base)
	})

	return idx
}

func parseTableRow(idx *Index, row *goquery.Selection, base *url.URL) {
	link := row.Find("a[href]").First()
	if link.Length() == 0 {
		return
	}

	href, _ := link.Attr("href")
	if !usableHref(href) {
		idx.SkippedRows++

		return
	}

	filename, absURL := resolveHref(href, strings.TrimSpace(link.Text()), base)
	if filename == "" {
		idx.SkippedRows++

		return
	}

	size, sizeOK := rowSize(row)
	if !sizeOK {
		idx.SkippedRows++

		return
	}

	idx.add(&Entry{Filename: filename, Size: size, URL: absURL})
}

func parseBareLink(idx *Index, link *goquery.Selection, base *url.URL) {
	href, _ := link.Attr("href")
	if !usableHref(href) {
		return
	}

	text := strings.TrimSpace(link.Text())

	var size uint64

	// "Filename - 25.3 MiB" anchor text carries the size inline.
	if name, sizeStr, found := strings.Cut(text, " - "); found {
		if parsed, err := parseSizeToken(sizeStr); err == nil {
			size = parsed
			text = strings.TrimSpace(name)
		}
	}

	filename, absURL := resolveHref(href, text, base)
	if filename == "" {
		idx.SkippedRows++

		return
	}

	idx.add(&Entry{Filename: filename, Size: size, URL: absURL})
}

// usableHref filters out sort links, parent-directory links and
// subdirectories, leaving only file entries.
func usableHref(href string) bool {
	if href == "" {
		return false
	}

	return !strings.HasPrefix(href, "?") && !strings.HasPrefix(href, "/") && !strings.HasSuffix(href, "/")
}

// resolveHref derives the canonical filename and absolute download URL from a
// row's href. The href is preferred because hosts percent-encode it
// consistently; the anchor text is the fallback when resolution fails.
func resolveHref(href, anchorText string, base *url.URL) (filename, absURL string) {
	filename, err := url.PathUnescape(href)
	if err != nil {
		filename = href
	}

	filename = strings.TrimSpace(filename)

	ref, err := url.Parse(href)
	if err != nil || (base == nil && !ref.IsAbs()) {
		if anchorText == "" {
			return "", ""
		}

		return anchorText, href
	}

	if ref.IsAbs() {
		if name := path.Base(ref.Path); name != "." && name != "/" {
			filename = name
		} else if anchorText != "" {
			filename = anchorText
		}

		return filename, href
	}

	return filename, base.ResolveReference(ref).String()
}

// rowSize scans the row's cells for a human-readable size. A cell that looks
// like a size but names an unknown unit poisons the row (the listing format
// is out of contract); a row with no size-shaped cell at all is accepted with
// size zero, since some listings omit the column.
func rowSize(row *goquery.Selection) (size uint64, ok bool) {
	sawBadToken := false

	row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		text := strings.TrimSpace(cell.Text())
		if !sizeTokenRE.MatchString(text) {
			return true
		}

		parsed, err := parseSizeToken(text)
		if err != nil {
			sawBadToken = true

			return true
		}

		size = parsed
		ok = true

		return false
	})

	if ok {
		return size, true
	}

	return 0, !sawBadToken
}

// parseSizeToken normalizes cell spacing before delegating to units.ParseBytes,
// accepting both "1.2MiB" and "1.2 MiB".
func parseSizeToken(s string) (uint64, error) {
	m := sizeTokenRE.FindStringSubmatch(s)
	if m == nil {
		return 0, &unitError{token: s}
	}

	return units.ParseBytes(m[1] + " " + m[2])
}

type unitError struct {
	token string
}

func (e *unitError) Error() string {
	return "unrecognized size token " + e.token
}
