package research

import "sort"

// collectDocuments merges the four category maps into one deduplicated
// set and grows the global reference list. A URL surfacing under several
// categories keeps its first document and gains the extra category tags.
// Pure and idempotent: no external calls, and a second pass over the
// same maps yields the same merged order and reference list. Nil or
// empty maps simply contribute nothing.
func collectDocuments(state *ResearchState) []*Document {
	merged := make([]*Document, 0)
	byURL := make(map[string]*Document)

	for _, c := range Categories() {
		for _, d := range rankedDocs(state.DataFor(c)) {
			if existing, ok := byURL[d.URL]; ok {
				tagCategory(existing, c)
				continue
			}
			tagCategory(d, c)
			byURL[d.URL] = d
			merged = append(merged, d)
		}
	}

	known := make(map[string]bool, len(state.References))
	for _, r := range state.References {
		known[r.URL] = true
	}
	for _, d := range merged {
		if known[d.URL] {
			continue
		}
		known[d.URL] = true
		state.References = append(state.References, Reference{URL: d.URL, Title: d.Title})
	}

	return merged
}

// rankedDocs orders one category's map by search rank; URL breaks ties
// so the merge order is stable across runs over the same data.
func rankedDocs(docs map[string]*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.URL == "" {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// tagCategory records that a document surfaced under a category, once.
func tagCategory(d *Document, c Category) {
	for _, existing := range d.Categories {
		if existing == c {
			return
		}
	}
	d.Categories = append(d.Categories, c)
}
