package rag

import (
	"regexp"
	"strings"
)

var (
	umlautReplacer = strings.NewReplacer(
		"ä", "ae", "ö", "oe", "ü", "ue",
		"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
		"ß", "ss",
	)
	nonWordRun = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

// NormalizeCollectionName maps a user supplied title to a store-safe name.
// German umlauts and ß are transliterated and every run of characters outside
// [A-Za-z0-9_] collapses to a single underscore. Blank titles yield "".
func NormalizeCollectionName(title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}
	return nonWordRun.ReplaceAllString(umlautReplacer.Replace(title), "_")
}
