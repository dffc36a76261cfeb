package format

import "strings"

// keywordsOf reads the keywords array from the document, falling back
// to the latest version's own keywords when the top level omits them.
func keywordsOf(contents map[string]any, latest map[string]any) []string {
	raw, _ := contents["keywords"].([]any)
	if len(raw) == 0 && latest != nil {
		raw, _ = latest["keywords"].([]any)
	}

	out := make([]string, 0, len(raw))

	for _, v := range raw {
		s, ok := v.(string)
		if ok && s != "" {
			out = append(out, s)
		}
	}

	return out
}

// normalizeKeywords lowercases keywords and, for scoped packages
// (@scope/name), adds the bare scope name as an extra keyword so a
// search for "scope" surfaces every package published under it.
func normalizeKeywords(name string, keywords []string) []string {
	normalized := make([]string, 0, len(keywords)+1)
	seen := make(map[string]bool, len(keywords)+1)

	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			return
		}

		seen[kw] = true
		normalized = append(normalized, kw)
	}

	for _, kw := range keywords {
		add(kw)
	}

	if strings.HasPrefix(name, "@") {
		if scope, _, found := strings.Cut(name[1:], "/"); found {
			add(scope)
		}
	}

	return normalized
}
