package analysis

import (
	"math"
	"regexp"
	"strconv"
)

// percentPattern matches explicit percentage moves like "7%" or "3.5 percent".
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`)

// highImpactWords signal events that historically move prices hard.
var highImpactWords = []string{
	"earnings", "guidance", "merger", "acquisition", "bankruptcy",
	"fda", "approval", "recall", "investigation", "sec",
	"dividend", "buyback", "split", "ipo", "downgrade", "upgrade",
}

// EstimatePriceImpact scores how strongly the article's event is likely
// to move the mentioned stock, in [-1, 1]. The sign follows sentiment;
// the magnitude combines explicit percentage figures with event words.
func EstimatePriceImpact(sent Sentiment, text string) float64 {
	tokens := tokenize(text)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	magnitude := math.Abs(sent.Score) * 0.5

	for _, w := range highImpactWords {
		if _, ok := tokenSet[w]; ok {
			magnitude += 0.1
		}
	}

	// The largest explicit percentage in the text dominates
	var maxPct float64
	for _, m := range percentPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > maxPct {
			maxPct = v
		}
	}
	if maxPct > 0 {
		magnitude += math.Min(maxPct/20.0, 0.4)
	}

	if magnitude > 1 {
		magnitude = 1
	}
	if sent.Score < 0 {
		return -magnitude
	}
	return magnitude
}
