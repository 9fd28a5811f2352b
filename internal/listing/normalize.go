package listing

import (
	"net/url"
	"strings"
)

// substitutions pairs characters that appear literally in some listings and
// percent-escaped in others. Both directions are expanded so a desired name
// typed either way still probes the same index entry.
var substitutions = []struct {
	literal string
	escaped string
}{
	{" ", "%20"},
	{" ", "+"},
	{"&", "%26"},
	{"(", "%28"},
	{")", "%29"},
	{"'", "%27"},
	{"+", "%2B"},
	{",", "%2C"},
	{"[", "%5B"},
	{"]", "%5D"},
	{"#", "%23"},
	{"=", "%3D"},
	{"!", "%21"},
	{"@", "%40"},
	{"$", "%24"},
}

// Variants expands a filename into every encoding under which it may be keyed:
// the lowercase original, its percent-decoded and re-encoded forms, and each
// single substitution from the table applied in both directions. The slice is
// insertion-ordered and duplicate-free, so probe order is deterministic for
// identical input. An empty name yields no variants.
func Variants(name string) []string {
	if name == "" {
		return nil
	}

	var out []string

	seen := make(map[string]struct{})
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	lower := strings.ToLower(name)
	add(lower)

	// Malformed escapes never fail the expansion; the raw string is already in.
	decoded, err := url.PathUnescape(name)
	if err != nil {
		decoded = name
	}
	add(strings.ToLower(decoded))
	add(strings.ToLower(percentEncode(decoded)))

	for _, sub := range substitutions {
		add(strings.ReplaceAll(lower, sub.literal, strings.ToLower(sub.escaped)))
		add(strings.ReplaceAll(lower, strings.ToLower(sub.escaped), sub.literal))
	}

	return out
}

// percentEncode escapes every character in the substitution table, which is
// how the listings this tool targets encode their hrefs.
func percentEncode(s string) string {
	var b strings.Builder

	for _, r := range s {
		replaced := false
		for _, sub := range substitutions {
			if sub.escaped != "+" && string(r) == sub.literal {
				b.WriteString(sub.escaped)
				replaced = true

				break
			}
		}

		if !replaced {
			b.WriteRune(r)
		}
	}

	return b.String()
}
