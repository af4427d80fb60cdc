package epubfile

import (
	"sort"
	"strconv"
	"strings"
)

// extractMetadata converts the raw OPF metadata into the public Metadata
// struct. ePub 2 expresses roles and sort keys as opf: attributes on the
// Dublin Core elements; ePub 3 moves them into <meta refines="#id"> elements.
// Both forms are folded into the same struct.
func extractMetadata(pkg *opfPackage) Metadata {
	om := &pkg.Metadata
	refines := buildRefinesMap(om.Metas)

	md := Metadata{
		Version:     pkg.Version,
		Titles:      extractTitles(om.Titles, refines),
		Authors:     extractAuthors(om.Creators, refines),
		Language:    valuesOf(om.Languages),
		Subjects:    valuesOf(om.Subjects),
		Publisher:   firstValue(om.Publishers),
		Date:        firstValue(om.Dates),
		Description: firstValue(om.Descriptions),
		Rights:      firstValue(om.Rights),
		Source:      firstValue(om.Sources),
	}

	for _, id := range om.Identifiers {
		v := strings.TrimSpace(id.Value)
		if v == "" {
			continue
		}
		ident := Identifier{Value: v, Scheme: id.Scheme, ID: id.ID}
		if ident.Scheme == "" && id.ID != "" {
			if s, ok := findRefine(refines, id.ID, "identifier-type"); ok {
				ident.Scheme = s
			}
		}
		md.Identifiers = append(md.Identifiers, ident)
	}

	return md
}

// valuesOf collects the non-empty trimmed values of repeated elements.
func valuesOf(elems []opfDCElement) []string {
	var out []string
	for _, e := range elems {
		if v := strings.TrimSpace(e.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// firstValue returns the first non-empty trimmed value, or "".
func firstValue(elems []opfDCElement) string {
	for _, e := range elems {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

// buildRefinesMap builds a map from element ID (without "#") to the list of
// <meta refines="#id" ...> elements that refine it.
func buildRefinesMap(metas []opfMeta) map[string][]opfMeta {
	m := make(map[string][]opfMeta)
	for _, meta := range metas {
		ref := meta.Refines
		if ref == "" || !strings.HasPrefix(ref, "#") {
			continue
		}
		m[ref[1:]] = append(m[ref[1:]], meta)
	}
	return m
}

// findRefine looks up a single refining property value for the given element ID.
func findRefine(refines map[string][]opfMeta, id, property string) (string, bool) {
	for _, m := range refines[id] {
		if m.Property == property {
			if v := strings.TrimSpace(m.Value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// extractTitles returns the dc:title values, ordered by display-seq when any
// title carries one, otherwise in document order.
func extractTitles(titles []opfDCElement, refines map[string][]opfMeta) []string {
	type titleEntry struct {
		value string
		seq   int
		index int
	}

	entries := make([]titleEntry, 0, len(titles))
	hasSeq := false
	for i, t := range titles {
		v := strings.TrimSpace(t.Value)
		if v == "" {
			continue
		}
		e := titleEntry{value: v, index: i}
		if t.ID != "" {
			if seqStr, ok := findRefine(refines, t.ID, "display-seq"); ok {
				if n, err := strconv.Atoi(seqStr); err == nil {
					e.seq = n
					hasSeq = true
				}
			}
		}
		entries = append(entries, e)
	}

	if hasSeq {
		sort.SliceStable(entries, func(i, j int) bool {
			si, sj := entries[i].seq, entries[j].seq
			// Titles without a display-seq sort after those with one.
			if si == 0 || sj == 0 {
				return sj == 0 && si != 0
			}
			return si < sj
		})
	}

	var result []string
	for _, e := range entries {
		result = append(result, e.value)
	}
	return result
}

// extractAuthors folds dc:creator elements, their ePub 2 opf: attributes,
// and their ePub 3 refines into Author records.
func extractAuthors(creators []opfDCElement, refines map[string][]opfMeta) []Author {
	var authors []Author
	for _, c := range creators {
		name := strings.TrimSpace(c.Value)
		if name == "" {
			continue
		}

		a := Author{Name: name, FileAs: c.FileAs, Role: c.Role}
		if c.ID != "" {
			if a.FileAs == "" {
				if fa, ok := findRefine(refines, c.ID, "file-as"); ok {
					a.FileAs = fa
				}
			}
			if a.Role == "" {
				if r, ok := findRefine(refines, c.ID, "role"); ok {
					a.Role = r
				}
			}
		}
		authors = append(authors, a)
	}
	return authors
}
