package rag

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// tokenSet lowercases text and splits it into a set of word-boundary tokens.
func tokenSet(text string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes the Jaccard similarity of two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// mmrSelect greedily picks up to topK rows balancing similarity against
// redundancy with the rows already picked:
//
//	score = lambda*sim - (1-lambda)*mean(jaccard overlap with picked)
//
// Pure top-k similarity would return near-duplicate chunks; the overlap
// penalty spreads the selection across distinct content. Ties break toward
// the earlier candidate index.
func mmrSelect(candidates []DocRow, topK int, lambda float64) []DocRow {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	tokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenSet(c.Content)
	}

	picked := make([]DocRow, 0, topK)
	pickedTokens := make([]map[string]struct{}, 0, topK)
	used := make([]bool, len(candidates))

	for len(picked) < topK {
		best := -1
		bestScore := 0.0
		for i, c := range candidates {
			if used[i] {
				continue
			}
			penalty := 0.0
			if len(pickedTokens) > 0 {
				sum := 0.0
				for _, pt := range pickedTokens {
					sum += jaccard(tokens[i], pt)
				}
				penalty = sum / float64(len(pickedTokens))
			}
			score := lambda*c.Sim - (1-lambda)*penalty
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		picked = append(picked, candidates[best])
		pickedTokens = append(pickedTokens, tokens[best])
	}

	return picked
}
