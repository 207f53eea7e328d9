// Package text extracts lightweight signals from post text: frequency-ranked
// keywords, keyword overlap, topic labels, mentions and link hosts.
//
// Everything here is cheap, deterministic and regex based. No NLP model is
// involved; a keyword is simply a frequent token that survives filtering.
package text

import (
	"regexp"
	"sort"
	"strings"
)

// OverlapTerms is how many keywords per side overlapScore compares.
const OverlapTerms = 20

// minTokenLen: tokens must be longer than this to count as keywords.
const minTokenLen = 3

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9\s]`)
)

// stopwords mixes English function words with platform noise.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "new": {}, "now": {}, "first": {}, "not": {},
	"out": {}, "one": {}, "more": {}, "their": {}, "there": {}, "about": {},
	"into": {}, "from": {}, "with": {}, "this": {}, "that": {}, "then": {},
	"than": {}, "while": {}, "where": {}, "which": {}, "what": {}, "when": {},
	"will": {}, "your": {}, "just": {}, "have": {}, "been": {}, "were": {},
	"they": {}, "them": {}, "does": {}, "did": {}, "are": {}, "you": {}, "our": {},
	"can": {}, "under": {}, "specific": {}, "shows": {}, "show": {}, "today": {},
	"release": {}, "releasing": {}, "released": {}, "using": {}, "result": {},
	"results": {}, "https": {}, "http": {},
}

// IsStopword reports whether tok is in the stopword set.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Tokens lowercases s, drops URLs and punctuation, and returns the tokens
// that are long enough and not stopwords, in text order.
func Tokens(s string) []string {
	s = strings.ToLower(s)
	s = urlPattern.ReplaceAllString(s, "")
	s = nonAlnumPattern.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if len(f) <= minTokenLen || IsStopword(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ExtractKeywords returns up to maxTerms tokens ordered by descending
// frequency. Ties keep first-seen order.
func ExtractKeywords(s string, maxTerms int) []string {
	if maxTerms <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokens(s) {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxTerms {
		order = order[:maxTerms]
	}
	return order
}

// KeywordSet is ExtractKeywords as a set.
func KeywordSet(s string, maxTerms int) map[string]struct{} {
	kw := ExtractKeywords(s, maxTerms)
	set := make(map[string]struct{}, len(kw))
	for _, k := range kw {
		set[k] = struct{}{}
	}
	return set
}

// OverlapScore counts keywords shared by the top OverlapTerms keywords of
// a and b. It is symmetric.
func OverlapScore(a, b string) int {
	setA := KeywordSet(a, OverlapTerms)
	overlap := 0
	for _, k := range ExtractKeywords(b, OverlapTerms) {
		if _, ok := setA[k]; ok {
			overlap++
		}
	}
	return overlap
}

// Shared returns the tokens of candidate that are present in set, keeping
// candidate's order.
func Shared(candidate []string, set map[string]struct{}) []string {
	var out []string
	for _, tok := range candidate {
		if _, ok := set[tok]; ok {
			out = append(out, tok)
		}
	}
	return out
}
