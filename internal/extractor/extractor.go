// Package extractor pulls candidate product-image URLs out of fetched HTML.
// Extraction is best-effort over static markup: images injected by scripts
// are out of reach and that is acceptable for the pages this service targets.
package extractor

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultMaxImages caps the extracted list.
	DefaultMaxImages = 12

	// maxURLLength drops absurdly long candidates, usually embedded data
	// misparsed as links.
	maxURLLength = 2048

	// maxJSONLDNodes bounds the recursive JSON-LD walk so pathological
	// documents cannot exhaust the stack.
	maxJSONLDNodes = 4096
)

// Substrings marking non-content images (tracking pixels, chrome, spacers).
var junkSubstrings = []string{
	"1x1", "tracking", "pixel", "spacer.gif", "blank.gif",
	"transparent.gif", "logo.svg", "icon",
}

var tinyDimensionRe = regexp.MustCompile(`(?i)\b\d{1,3}x\d{1,3}\.(gif|png)\b`)

// ExtractImages returns up to max absolute image URLs found in html,
// resolved against pageURL. Candidates are ranked by source class: Open
// Graph and Twitter Card annotations first, then JSON-LD structured data,
// then plain <img> tags in document order. Deduplication keeps the first
// occurrence. The result is deterministic for identical input.
func ExtractImages(html, pageURL string, max int) []string {
	if max <= 0 {
		max = DefaultMaxImages
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var raw []string
	raw = append(raw, metaCandidates(doc)...)
	raw = append(raw, jsonLDCandidates(doc)...)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			raw = append(raw, src)
		}
	})

	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, max)
	for _, candidate := range raw {
		resolved, ok := resolve(base, candidate)
		if !ok || isJunk(resolved) {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		result = append(result, resolved)
		if len(result) == max {
			break
		}
	}
	return result
}

// metaCandidates collects Open Graph and Twitter Card image annotations.
// goquery matches regardless of attribute order, and both `property` and
// `name` spellings occur in the wild for both families.
func metaCandidates(doc *goquery.Document) []string {
	var out []string
	collect := func(sel string) {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if content, ok := s.Attr("content"); ok && content != "" {
				out = append(out, content)
			}
		})
	}
	collect(`meta[property="og:image"], meta[name="og:image"]`)
	collect(`meta[name="twitter:image"], meta[property="twitter:image"]`)
	collect(`meta[name="twitter:image:src"], meta[property="twitter:image:src"]`)
	return out
}

// jsonLDCandidates parses each application/ld+json block and walks it for
// `image` fields. Malformed blocks are skipped; they are common enough on
// real pages that failing the whole extraction would be wrong.
func jsonLDCandidates(doc *goquery.Document) []string {
	var out []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		budget := maxJSONLDNodes
		walkForImages(data, &out, &budget)
	})
	return out
}

// walkForImages recursively searches a decoded JSON value for `image`
// fields, decrementing budget per visited node. Object keys are visited in
// sorted order so extraction stays deterministic.
func walkForImages(v any, out *[]string, budget *int) {
	if *budget <= 0 {
		return
	}
	*budget--

	switch node := v.(type) {
	case map[string]any:
		if img, ok := node["image"]; ok {
			appendImageValue(img, out, budget)
		}
		keys := make([]string, 0, len(node))
		for key := range node {
			if key != "image" {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkForImages(node[key], out, budget)
		}
	case []any:
		for _, child := range node {
			walkForImages(child, out, budget)
		}
	}
}

// appendImageValue handles the schema.org shapes an `image` field takes:
// a bare URL string, a list, or an ImageObject with a `url` sub-field.
func appendImageValue(v any, out *[]string, budget *int) {
	if *budget <= 0 {
		return
	}
	*budget--

	switch img := v.(type) {
	case string:
		if img != "" {
			*out = append(*out, img)
		}
	case []any:
		for _, item := range img {
			appendImageValue(item, out, budget)
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok && u != "" {
			*out = append(*out, u)
		}
	}
}

// resolve turns candidate into an absolute URL against base. This covers
// protocol-relative (//host/path), root-relative (/path) and relative
// forms uniformly.
func resolve(base *url.URL, candidate string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func isJunk(resolved string) bool {
	if len(resolved) > maxURLLength {
		return true
	}
	lower := strings.ToLower(resolved)
	if strings.HasPrefix(lower, "data:") {
		return true
	}
	for _, junk := range junkSubstrings {
		if strings.Contains(lower, junk) {
			return true
		}
	}
	return tinyDimensionRe.MatchString(lower)
}
