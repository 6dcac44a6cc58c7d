package steamgifts

import "strings"

// forbiddenWords are space-prefixed fragments whose presence on a giveaway
// page suggests a trap ("do not enter or you will get a ban", fake bot-catch
// giveaways, and friends). Occurrences are summed, not deduplicated.
var forbiddenWords = []string{" ban", " fake", " bot", " not enter", " don't enter", " do not enter"}

// goodWords are innocent lookalikes that match inside a forbidden fragment
// (" bank" contains " ban"). They discount false positives and are only
// counted once at least one forbidden hit exists.
var goodWords = []string{" bank", " banan", " both", " band", " banner", " bang"}

// SafetyResult is the verdict of a trap-detection scan over page text.
type SafetyResult struct {
	IsSafe    bool     `json:"is_safe"`
	Score     int      `json:"safety_score"`
	BadCount  int      `json:"bad_count"`
	GoodCount int      `json:"good_count"`
	NetBad    int      `json:"net_bad"`
	Matches   []string `json:"details"`
}

// CheckPageSafety scans raw giveaway page text for trap indicators and
// returns a verdict with a 0-100 confidence score.
//
// The scoring is deliberately borderline-tolerant: one or two net hits still
// classify as safe (score 50) to avoid over-blocking on incidental word
// matches. Three or more net hits classify as unsafe with the score dropping
// 20 points per hit. This is a heuristic, not a guarantee.
func CheckPageSafety(pageText string) SafetyResult {
	text := strings.ToLower(pageText)

	res := SafetyResult{}
	for _, w := range forbiddenWords {
		n := strings.Count(text, w)
		if n > 0 {
			res.BadCount += n
			res.Matches = append(res.Matches, strings.TrimSpace(w))
		}
	}

	if res.BadCount > 0 {
		for _, w := range goodWords {
			res.GoodCount += strings.Count(text, w)
		}
	}

	res.NetBad = res.BadCount - res.GoodCount
	if res.NetBad < 0 {
		res.NetBad = 0
	}

	switch {
	case res.NetBad == 0:
		res.Score = 100
		res.IsSafe = true
	case res.NetBad <= 2:
		res.Score = 50
		res.IsSafe = true // borderline, but allow
	default:
		res.Score = 100 - res.NetBad*20
		if res.Score < 0 {
			res.Score = 0
		}
		res.IsSafe = false
	}

	return res
}
