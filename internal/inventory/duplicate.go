package inventory

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// minSubstringLen keeps very short inputs from matching half the catalogue.
const minSubstringLen = 3

// foldName normalises whitespace and applies Unicode case folding.
func foldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// findDuplicate returns the best match for name among items: an exact folded
// match wins, then any item whose name contains name or is contained by it.
func findDuplicate(name string, items []Item) *Item {
	needle := foldName(name)
	if needle == "" {
		return nil
	}
	var partial *Item
	for i := range items {
		hay := foldName(items[i].Name)
		if hay == needle {
			return &items[i]
		}
		if partial == nil && (contains(hay, needle) || contains(needle, hay)) {
			partial = &items[i]
		}
	}
	return partial
}

// contains reports whether sub occurs in s, ignoring subs shorter than
// minSubstringLen.
func contains(s, sub string) bool {
	return utf8.RuneCountInString(sub) >= minSubstringLen && strings.Contains(s, sub)
}
