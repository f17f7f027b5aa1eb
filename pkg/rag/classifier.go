package rag

import "regexp"

// classifierPattern is a structural-vocabulary pattern with a vote weight.
type classifierPattern struct {
	re     *regexp.Regexp
	weight int
}

// typeVote binds a document type to its pattern list. Declaration order is
// the tie-break order.
type typeVote struct {
	docType  DocumentType
	patterns []classifierPattern
}

// classifierVotes holds the pattern lists used by Classify. Strong structural
// markers carry a higher weight than generic vocabulary.
var classifierVotes = []typeVote{
	{
		docType: DocTypeLegal,
		patterns: []classifierPattern{
			{regexp.MustCompile(`(?i)ARTICLE\s+[IVXLC]+\.?`), 2},
			{regexp.MustCompile(`(?i)\bSection\s+\d+(?:\.\d+)*\.?`), 2},
			{regexp.MustCompile(`(?i)\bWHEREAS\b`), 1},
			{regexp.MustCompile(`(?i)\bherein(?:after)?\b`), 1},
			{regexp.MustCompile(`(?i)\bbylaws?\b`), 1},
			{regexp.MustCompile(`(?i)\bshall\b`), 1},
			{regexp.MustCompile(`(?i)\bpursuant to\b`), 1},
			{regexp.MustCompile(`\([a-z]\)\s`), 1},
		},
	},
	{
		docType: DocTypeTechnical,
		patterns: []classifierPattern{
			{regexp.MustCompile(`(?i)\bStep\s+\d+\s*[:.]`), 2},
			{regexp.MustCompile(`(?i)\bChapter\s+\d+\b`), 2},
			{regexp.MustCompile(`(?im)^\d+(?:\.\d+)+\s+\S`), 2},
			{regexp.MustCompile(`(?i)\bprocedure\b`), 1},
			{regexp.MustCompile(`(?i)\bconfigur(?:e|ation)\b`), 1},
			{regexp.MustCompile(`(?i)\binstall(?:ation)?\b`), 1},
			{regexp.MustCompile(`(?i)\bwarning\s*:`), 1},
			{regexp.MustCompile(`(?i)\bnote\s*:`), 1},
		},
	},
	{
		docType: DocTypeAcademic,
		patterns: []classifierPattern{
			{regexp.MustCompile(`(?im)^Abstract\s*:?\s*$`), 2},
			{regexp.MustCompile(`(?im)^(?:Introduction|Conclusion|Methodology|References|Bibliography)\s*$`), 2},
			{regexp.MustCompile(`(?i)\bet al\.`), 1},
			{regexp.MustCompile(`\[\d+\]`), 1},
			{regexp.MustCompile(`(?i)\bfindings\b`), 1},
			{regexp.MustCompile(`(?i)\bhypothes[ie]s\b`), 1},
			{regexp.MustCompile(`(?i)\bpolicy\b`), 1},
		},
	},
}

// Classify inspects raw text and returns its structural template. The type
// with the highest weighted pattern hit count wins; ties break by declaration
// order, and an all-zero vote returns DocTypeUnstructured. Classify is a pure
// function and never fails.
func Classify(content string) DocumentType {
	if content == "" {
		return DocTypeUnstructured
	}

	best := DocTypeUnstructured
	bestScore := 0

	for _, vote := range classifierVotes {
		score := 0
		for _, p := range vote.patterns {
			score += len(p.re.FindAllStringIndex(content, -1)) * p.weight
		}
		if score > bestScore {
			bestScore = score
			best = vote.docType
		}
	}

	return best
}
