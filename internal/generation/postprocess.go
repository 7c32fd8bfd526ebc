package generation

import (
	"regexp"
	"strings"
)

// genericLinkPattern matches "[ref] → generic-imorules-link" so the generic
// link can be replaced with a specific one, ported from
// original_source/generation/post_process.py's _GENERIC_LINK_PATTERN.
var genericLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\s*→\s*(?:https?://)?(?:www\.)?imorules\.com[^\n]*`)

// bareGenericURLPattern strips any remaining bare generic-domain link.
var bareGenericURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?imorules\.com/?(?:\s|$)`)

var regTokenPattern = regexp.MustCompile(`(?i)(SOLAS|MARPOL|STCW|COLREG|LSA|FSS|IBC|IGC|ICLL)[\s\-]*(?:Annex\s*)?[IVX\d\-/.]+`)
var regNumberPattern = regexp.MustCompile(`(?i)Reg(?:ulation)?\s*[\d.\-/]+`)
var tableTokenPattern = regexp.MustCompile(`(?i)Table\s*[\d.]+`)

// FixSourceLinks replaces generic imorules.com links in the answer with the
// specific source URL when one can be matched from the retrieved sources, or
// strips the link entirely when no specific URL is available — a missing
// link is better than a fake one (spec.md §4.10 expansion, ported from
// original_source/generation/post_process.py).
func FixSourceLinks(answer string, sources []Source) string {
	urlMap := buildSourceURLMap(sources)

	result := genericLinkPattern.ReplaceAllStringFunc(answer, func(match string) string {
		sub := genericLinkPattern.FindStringSubmatch(match)
		ref := sub[1]
		if url := findURLForRef(ref, urlMap); url != "" {
			return "[" + ref + "] → " + url
		}
		return "[" + ref + "]"
	})
	result = bareGenericURLPattern.ReplaceAllString(result, "")
	return result
}

func buildSourceURLMap(sources []Source) map[string]string {
	urlMap := map[string]string{}
	for _, src := range sources {
		if src.URL == "" || isGenericURL(src.URL) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(src.Breadcrumb))
		if key != "" {
			urlMap[key] = src.URL
		}
		for _, tok := range extractRegTokens(src.Breadcrumb) {
			urlMap[tok] = src.URL
		}
	}
	return urlMap
}

func isGenericURL(url string) bool {
	idx := strings.Index(url, "imorules.com")
	if idx < 0 {
		return false
	}
	return !strings.Contains(url[idx+len("imorules.com"):], "/")
}

func extractRegTokens(breadcrumb string) []string {
	var tokens []string
	for _, m := range regTokenPattern.FindAllString(breadcrumb, -1) {
		tokens = append(tokens, strings.ToLower(strings.TrimSpace(m)))
	}
	for _, m := range regNumberPattern.FindAllString(breadcrumb, -1) {
		tokens = append(tokens, strings.ToLower(strings.TrimSpace(m)))
	}
	for _, m := range tableTokenPattern.FindAllString(breadcrumb, -1) {
		tokens = append(tokens, strings.ToLower(strings.TrimSpace(m)))
	}
	return tokens
}

var breadcrumbChapterSep = regexp.MustCompile(`(?i)\s*>\s*Chapter\s+`)
var breadcrumbRegulationSep = regexp.MustCompile(`(?i)\s*>\s*Regulation\s+`)

// CitationMatchesBreadcrumb reports whether a compact bracketed citation
// (e.g. "[SOLAS II-2/9.2.4]") and a source's long-form breadcrumb (e.g.
// "SOLAS > Chapter II-2 > Regulation 9") refer to the same regulation. The
// two use structurally incompatible formats, so callers must compare the
// regulation-identifier tokens extracted from each rather than the raw
// strings (internal/pipeline's fireUtilityUpdate uses this to resolve C6's
// cited-chunk set from a generated answer's citations). Long-form
// "> Chapter X > Regulation N" segments are first rewritten to "X/N".
func CitationMatchesBreadcrumb(citation, breadcrumb string) bool {
	compact := breadcrumbRegulationSep.ReplaceAllString(breadcrumbChapterSep.ReplaceAllString(breadcrumb, " "), "/")
	for _, ct := range extractRegTokens(citation) {
		for _, st := range extractRegTokens(compact) {
			if ct == "" || st == "" {
				continue
			}
			if strings.Contains(ct, st) || strings.Contains(st, ct) {
				return true
			}
		}
	}
	return false
}

func findURLForRef(ref string, urlMap map[string]string) string {
	refLower := strings.ToLower(strings.TrimSpace(ref))
	if url, ok := urlMap[refLower]; ok {
		return url
	}

	var bestURL string
	bestOverlap := 0
	for key, url := range urlMap {
		if strings.Contains(refLower, key) || strings.Contains(key, refLower) {
			overlap := len(key)
			if len(refLower) < overlap {
				overlap = len(refLower)
			}
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestURL = url
			}
		}
	}
	if bestURL != "" {
		return bestURL
	}

	for _, tok := range extractRegTokens(ref) {
		if url, ok := urlMap[tok]; ok {
			return url
		}
	}
	return ""
}
