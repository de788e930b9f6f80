package bm25

import "math"

// GetMinSpan computes the smallest window of body positions that covers at
// least one occurrence of every term in termPositions. Returns +Inf if any
// term has no positions (callers should skip the bonus in that case).
//
// Grounded on the original implementation's sliding-window approach over
// sorted (position, term) pairs (search/phrase.py's get_min_span).
func GetMinSpan(termPositions map[string][]uint32) float64 {
	if len(termPositions) == 0 {
		return math.Inf(1)
	}

	type occurrence struct {
		pos  uint32
		term string
	}
	var all []occurrence
	for term, positions := range termPositions {
		if len(positions) == 0 {
			return math.Inf(1)
		}
		for _, p := range positions {
			all = append(all, occurrence{pos: p, term: term})
		}
	}

	// sort by position
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && all[j-1].pos > all[j].pos {
			all[j-1], all[j] = all[j], all[j-1]
			j--
		}
	}

	needed := len(termPositions)
	counts := map[string]int{}
	distinct := 0
	best := math.Inf(1)
	left := 0

	for right := 0; right < len(all); right++ {
		t := all[right].term
		if counts[t] == 0 {
			distinct++
		}
		counts[t]++

		for distinct == needed {
			span := float64(all[right].pos-all[left].pos) + 1
			if span < best {
				best = span
			}
			lt := all[left].term
			counts[lt]--
			if counts[lt] == 0 {
				distinct--
			}
			left++
		}
	}

	return best
}

// PhraseBonus returns the [1.0, 1.5] proximity multiplier for a minimum
// span over qlen query tokens, per spec §4.3.
func PhraseBonus(span float64, queryLength int) float64 {
	if queryLength <= 0 || math.IsInf(span, 1) {
		return 1.0
	}
	qlen := float64(queryLength)
	if span <= qlen {
		return 1.5
	}
	scatter := span / qlen
	if scatter >= 3.0 {
		return 1.0
	}
	bonus := 1.5 - (scatter-1.0)*(1.5-1.0)/2.0
	if bonus < 1.0 {
		return 1.0
	}
	return bonus
}
