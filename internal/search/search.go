package search

import (
	"sort"
	"strings"

	"github.com/seanblong/siteanswer/internal/textutil"
	"github.com/seanblong/siteanswer/pkg/models"
)

const (
	// maxPerToken caps how much a single repeated token can add to a score.
	maxPerToken = 5
	// titleBonus is added once when any query token appears in the title.
	titleBonus = 2
	// MinTextLen rejects thin sections regardless of score.
	MinTextLen = 80
	// shortQueryTokens is the largest token count treated as a short query.
	shortQueryTokens = 2
)

// Candidate is a chunk scored against one question.
type Candidate struct {
	models.Chunk
	Score         int `json:"score"`
	UniqueMatches int `json:"uniqueMatches"`
}

// Score ranks chunks against the question by descending score. Ties keep
// the input order. It returns nil when the question has no meaningful tokens.
func Score(question string, chunks []models.Chunk) []Candidate {
	q := textutil.Unique(textutil.QueryTokens(question))
	if len(q) == 0 {
		return nil
	}

	out := make([]Candidate, 0, len(chunks))
	for _, c := range chunks {
		text := strings.ToLower(c.Text)
		title := strings.ToLower(c.Title)

		cand := Candidate{Chunk: c}
		titleHit := false
		for _, w := range q {
			n := strings.Count(text, w)
			if n > 0 {
				cand.UniqueMatches++
			}
			cand.Score += min(n, maxPerToken)
			if !titleHit && strings.Contains(title, w) {
				titleHit = true
			}
		}
		if titleHit {
			cand.Score += titleBonus
		}
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the top-ranked chunk if it clears the acceptance threshold.
// Short queries need one matching token and a score of one; longer ones
// need two of each. Sections under MinTextLen characters never match.
func Best(question string, chunks []models.Chunk) (Candidate, bool) {
	ranked := Score(question, chunks)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	top := ranked[0]

	minDistinct, minScore := 2, 2
	if len(textutil.Unique(textutil.QueryTokens(question))) <= shortQueryTokens {
		minDistinct, minScore = 1, 1
	}

	if top.UniqueMatches < minDistinct {
		return Candidate{}, false
	}
	if len(top.Text) < MinTextLen {
		return Candidate{}, false
	}
	if top.Score < minScore {
		return Candidate{}, false
	}
	return top, true
}
