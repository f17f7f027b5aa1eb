package rag

import (
	"regexp"
	"strings"
)

const (
	// coverageWeight and frequencyWeight combine term coverage and occurrence
	// frequency into the final relevance score.
	coverageWeight  = 0.7
	frequencyWeight = 0.3

	// frequencySaturation is the occurrence count at which the frequency
	// component saturates at 1.0.
	frequencySaturation = 10

	// DedupOverlapThreshold is the word-set overlap ratio above which two
	// results are considered duplicates. The earlier-seen result is kept.
	DedupOverlapThreshold = 0.65
)

// queryStopwords drops connective vocabulary from query term extraction.
var queryStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "with": true, "all": true, "can": true, "what": true,
	"when": true, "where": true, "how": true, "who": true, "which": true,
	"does": true, "about": true, "that": true, "this": true, "from": true,
	"have": true, "has": true,
}

// querySynonyms is a hand-maintained domain synonym table, not a learned
// thesaurus. Expansions are added alongside the base term so the base term
// still counts toward coverage.
var querySynonyms = map[string][]string{
	"board":     {"directors", "governance", "management"},
	"meeting":   {"meetings", "session", "assembly"},
	"vote":      {"voting", "ballot", "election"},
	"member":    {"members", "membership"},
	"officer":   {"officers", "president", "secretary"},
	"amendment": {"amendments", "modification", "revision"},
	"quorum":    {"majority", "attendance"},
	"dues":      {"fees", "assessment"},
	"committee": {"committees", "subcommittee"},
	"notice":    {"notification", "announcement"},
}

var queryToken = regexp.MustCompile(`[a-zA-Z0-9]+`)

// ExtractQueryTerms tokenizes a query into alphanumeric words, drops
// stopwords and tokens of length <= 2, then expands the survivors with the
// domain synonym table. Order is preserved: base terms first in query order,
// each followed by its expansions.
func ExtractQueryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string

	add := func(term string) {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}

	for _, tok := range queryToken.FindAllString(strings.ToLower(query), -1) {
		if len(tok) <= 2 || queryStopwords[tok] {
			continue
		}
		add(tok)
		for _, syn := range querySynonyms[tok] {
			add(strings.ToLower(syn))
		}
	}

	return terms
}

// Score rates text against the query terms. Occurrences are counted by
// substring match, not word match, so "board" also matches inside
// "boarding"; this mirrors the behavior callers depend on. The result is
// coverage-dominated and bounded to [0, 1] by construction.
func Score(text string, terms []string) (float64, []string) {
	if len(terms) == 0 || text == "" {
		return 0, nil
	}

	lower := strings.ToLower(text)
	var matched []string
	total := 0

	for _, term := range terms {
		n := strings.Count(lower, strings.ToLower(term))
		if n > 0 {
			matched = append(matched, term)
			total += n
		}
	}

	coverage := float64(len(matched)) / float64(len(terms))
	frequency := float64(total) / frequencySaturation
	if frequency > 1.0 {
		frequency = 1.0
	}

	return coverageWeight*coverage + frequencyWeight*frequency, matched
}

// wordSetOverlap computes |intersection| / |union| over whitespace-split
// lowercase word sets.
func wordSetOverlap(a, b string) float64 {
	setA := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		setA[w] = true
	}
	setB := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(b)) {
		setB[w] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// dedupeResults removes near-identical spans, keeping the earlier result in
// iteration order whenever a pair overlaps beyond DedupOverlapThreshold.
func dedupeResults(results []*ScoredResult) []*ScoredResult {
	var kept []*ScoredResult

	for _, candidate := range results {
		duplicate := false
		for _, existing := range kept {
			if wordSetOverlap(candidate.Chunk.Content, existing.Chunk.Content) > DedupOverlapThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}

	return kept
}
