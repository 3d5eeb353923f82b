package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

const (
	lexicalTopScore     = 0.95
	lexicalRankDecay    = 0.1
	dualMatchBoostRatio = 0.5
)

// lexicalRankScore scores the item at 0-based position rank of a text search.
// The curve is strictly decreasing, stays in (0, 0.95] and never reaches 1.
func lexicalRankScore(rank int) domain.SearchScore {
	if rank < 0 {
		rank = 0
	}
	return domain.SearchScore(lexicalTopScore / (1 + lexicalRankDecay*float64(rank)))
}

// fuseScores combines a semantic and a lexical score for an item found by both
// searches. The result is at least the larger input and at most 1.
func fuseScores(a, b domain.SearchScore) domain.SearchScore {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	return domain.ClampScore(float64(hi) + (1-float64(hi))*float64(lo)*dualMatchBoostRatio)
}

type fusionCandidate struct {
	item     *domain.KnowledgeItem
	semantic domain.SearchScore
	lexical  domain.SearchScore
	inSem    bool
	inLex    bool
}

func (c *fusionCandidate) score() domain.SearchScore {
	switch {
	case c.inSem && c.inLex:
		return fuseScores(c.semantic, c.lexical)
	case c.inSem:
		return c.semantic
	default:
		return c.lexical
	}
}

// combineSearchResults merges text and vector hits into one list with unique
// ids, sorted by descending score and then ascending id.
func combineSearchResults(textResults []*domain.KnowledgeItem, semanticResults []domain.ScoredItem) []domain.ScoredItem {
	candidates := make(map[string]*fusionCandidate, len(textResults)+len(semanticResults))

	for _, r := range semanticResults {
		if r.Item == nil {
			continue
		}
		cand, ok := candidates[r.Item.ID]
		if !ok {
			cand = &fusionCandidate{item: r.Item}
			candidates[r.Item.ID] = cand
		}
		if !cand.inSem || r.Score > cand.semantic {
			cand.semantic = r.Score
		}
		cand.inSem = true
	}

	for rank, item := range textResults {
		if item == nil {
			continue
		}
		cand, ok := candidates[item.ID]
		if !ok {
			cand = &fusionCandidate{item: item}
			candidates[item.ID] = cand
		}
		if cand.inLex {
			continue
		}
		cand.lexical = lexicalRankScore(rank)
		cand.inLex = true
	}

	out := make([]domain.ScoredItem, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, domain.ScoredItem{Item: cand.item, Score: cand.score()})
	}
	sortScoredItems(out)
	return out
}

// textResultsToScored scores a text-only result list by rank.
func textResultsToScored(textResults []*domain.KnowledgeItem) []domain.ScoredItem {
	return combineSearchResults(textResults, nil)
}

func sortScoredItems(items []domain.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}

func truncateScored(items []domain.ScoredItem, limit int) []domain.ScoredItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func normalizeSearchMode(mode SearchMode) SearchMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(SearchModeSemantic):
		return SearchModeSemantic
	case string(SearchModeText), "lexical":
		return SearchModeText
	default:
		return SearchModeHybrid
	}
}

// makeSnippet collapses whitespace and truncates to maxRunes, marking the cut with "...".
func makeSnippet(content string, maxRunes int) string {
	if content == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(content), " ")
	runes := []rune(clean)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return clean
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
