package ranker

import "strings"

// DefaultSimilarityFloor is the score below which fuzzy candidates are
// discarded. A tuning default, not a contract.
const DefaultSimilarityFloor = 0.08

// similarity scores two short strings in [0,1] via Jaccard overlap of their
// padded trigram sets. Tolerant of typos and word variants; 1.0 only for
// texts with identical trigram sets.
func similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == 0 && len(tb) == 0 {
			return 1
		}
		return 0
	}

	intersection := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

// trigrams builds the set of rune trigrams of the normalized text, padding
// each end so short strings and word boundaries still contribute.
func trigrams(s string) map[string]struct{} {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if s == "" {
		return nil
	}

	runes := []rune("  " + s + " ")
	set := make(map[string]struct{}, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}
