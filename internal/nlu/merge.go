package nlu

import (
	"sort"

	"github.com/storewaladotcom/snips-nlu/internal/result"
)

// mergedIntent is one entry of the merged ranked list, remembering which
// parser produced the winning probability so its slots can be fetched.
type mergedIntent struct {
	intent      result.IntentClassification
	parserIndex int
}

// mergeIntentLists combines the ranked intent lists of the configured
// parsers, listed in priority order, into one ranked list. For each distinct
// intent name (the no-intent sentinel included) the maximum probability seen
// across parsers wins; ties go to the first-listed parser. When allowed is
// non-nil, only the listed intents and the no-intent sentinel are
// considered.
func mergeIntentLists(lists [][]result.IntentClassification, allowed map[string]bool) []mergedIntent {
	var merged []mergedIntent
	byName := map[string]int{}

	for parserIndex, list := range lists {
		for _, candidate := range list {
			if allowed != nil && !candidate.IsNone() && !allowed[candidate.IntentName] {
				continue
			}
			pos, seen := byName[candidate.IntentName]
			if !seen {
				byName[candidate.IntentName] = len(merged)
				merged = append(merged, mergedIntent{intent: candidate, parserIndex: parserIndex})
				continue
			}
			if candidate.Probability > merged[pos].intent.Probability {
				merged[pos].intent.Probability = candidate.Probability
				merged[pos].parserIndex = parserIndex
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].intent.Probability != merged[j].intent.Probability {
			return merged[i].intent.Probability > merged[j].intent.Probability
		}
		return merged[i].parserIndex < merged[j].parserIndex
	})
	return merged
}
