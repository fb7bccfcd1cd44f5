package domain

import (
	"sort"
	"strings"
)

// NormalizeTags trims, lower-cases and de-duplicates tags, keeping first-seen
// order. Separator characters split a tag in two, so every backend stores the
// same tag set whether or not it keeps tags as a joined string.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		for _, part := range strings.FieldsFunc(tag, isTagSeparator) {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; ok {
				continue
			}
			seen[trimmed] = struct{}{}
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func isTagSeparator(r rune) bool {
	return r == ',' || r == ';'
}

// ParseTags splits a comma or semicolon separated tag string.
func ParseTags(raw string) []string {
	return NormalizeTags([]string{raw})
}

// JoinTags renders tags as the comma separated form stored by relational backends.
func JoinTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), ",")
}

// HasTag reports whether the page carries the given tag, ignoring case.
func (p *Page) HasTag(tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	for _, existing := range p.Tags {
		if existing == needle {
			return true
		}
	}
	return false
}

// CollectTags returns the sorted distinct tags across pages.
func CollectTags(pages []Page) []string {
	seen := make(map[string]struct{})
	for _, page := range pages {
		for _, tag := range page.Tags {
			seen[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// SortPageContents orders versions ascending by VersionNumber.
func SortPageContents(contents []PageContent) {
	sort.Slice(contents, func(i, j int) bool {
		return contents[i].VersionNumber < contents[j].VersionNumber
	})
}
