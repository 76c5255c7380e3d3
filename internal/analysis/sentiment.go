package analysis

import (
	"math"
	"strings"
	"unicode"
)

// Word lists for financial sentiment scoring. Weights are in [0.5, 2.0]
// and scale a word's contribution to the document score.
var positiveLexicon = map[string]float64{
	"gain": 1.0, "gains": 1.0, "surge": 1.5, "surges": 1.5, "surged": 1.5,
	"rally": 1.3, "rallies": 1.3, "rallied": 1.3, "jump": 1.2, "jumps": 1.2,
	"jumped": 1.2, "rise": 0.8, "rises": 0.8, "rose": 0.8, "climb": 0.9,
	"climbs": 0.9, "climbed": 0.9, "beat": 1.2, "beats": 1.2, "upgrade": 1.4,
	"upgraded": 1.4, "outperform": 1.3, "strong": 0.9, "growth": 0.8,
	"record": 1.0, "profit": 0.9, "profits": 0.9, "bullish": 1.5,
	"soar": 1.8, "soars": 1.8, "soared": 1.8, "boost": 1.0, "boosts": 1.0,
	"upbeat": 1.1, "optimistic": 1.0, "exceed": 1.2, "exceeds": 1.2,
	"exceeded": 1.2, "recovery": 0.9, "rebound": 1.1, "rebounds": 1.1,
	"dividend": 0.6, "buyback": 0.8, "breakthrough": 1.3, "momentum": 0.7,
}

var negativeLexicon = map[string]float64{
	"loss": 1.0, "losses": 1.0, "plunge": 1.6, "plunges": 1.6, "plunged": 1.6,
	"drop": 1.0, "drops": 1.0, "dropped": 1.0, "fall": 0.9, "falls": 0.9,
	"fell": 0.9, "slump": 1.3, "slumps": 1.3, "slumped": 1.3, "decline": 0.9,
	"declines": 0.9, "declined": 0.9, "miss": 1.2, "misses": 1.2, "missed": 1.2,
	"downgrade": 1.4, "downgraded": 1.4, "underperform": 1.3, "weak": 0.9,
	"bearish": 1.5, "crash": 1.9, "crashes": 1.9, "crashed": 1.9,
	"sink": 1.3, "sinks": 1.3, "sank": 1.3, "tumble": 1.4, "tumbles": 1.4,
	"tumbled": 1.4, "warn": 1.0, "warns": 1.0, "warning": 1.0,
	"layoff": 1.2, "layoffs": 1.2, "bankruptcy": 2.0, "default": 1.5,
	"fraud": 1.8, "lawsuit": 1.1, "recession": 1.4, "selloff": 1.3,
	"pessimistic": 1.0, "cut": 0.7, "cuts": 0.7, "slash": 1.2, "slashed": 1.2,
	"concern": 0.6, "concerns": 0.6, "risk": 0.5, "risks": 0.5,
}

// Negation words flip the polarity of the following sentiment word.
var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "barely": {}, "hardly": {},
}

// Intensifiers scale the following sentiment word.
var intensifiers = map[string]float64{
	"very": 1.5, "sharply": 1.6, "significantly": 1.5, "slightly": 0.5,
	"marginally": 0.5, "massively": 1.8, "strongly": 1.4,
}

// Sentiment holds a scored document.
type Sentiment struct {
	Label      string  // "positive", "negative", or "neutral"
	Score      float64 // in [-1, 1]
	Confidence float64 // in [0, 1]
	Hits       int     // number of lexicon words matched
}

// SentimentAnalyzer scores financial text with a weighted lexicon.
type SentimentAnalyzer struct{}

func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{}
}

// Analyze scores the given text and returns a Sentiment. The score is
// the tanh-squashed signed sum of matched word weights, normalized by
// document length so long articles do not saturate.
func (a *SentimentAnalyzer) Analyze(text string) Sentiment {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Sentiment{Label: "neutral", Score: 0, Confidence: 0}
	}

	var sum float64
	var hits int
	for i, tok := range tokens {
		var weight float64
		var sign float64
		if w, ok := positiveLexicon[tok]; ok {
			weight, sign = w, 1
		} else if w, ok := negativeLexicon[tok]; ok {
			weight, sign = w, -1
		} else {
			continue
		}
		hits++

		// Look back up to two tokens for negation and intensity
		for back := 1; back <= 2 && i-back >= 0; back++ {
			prev := tokens[i-back]
			if _, ok := negations[prev]; ok {
				sign = -sign
				break
			}
			if mult, ok := intensifiers[prev]; ok {
				weight *= mult
			}
		}
		sum += sign * weight
	}

	if hits == 0 {
		return Sentiment{Label: "neutral", Score: 0, Confidence: 0.1}
	}

	// Normalize by hits so a single strong word in a short headline
	// and many words in a long article land on the same scale.
	score := math.Tanh(sum / math.Sqrt(float64(hits)) / 2.0)

	label := "neutral"
	switch {
	case score > 0.15:
		label = "positive"
	case score < -0.15:
		label = "negative"
	}

	confidence := math.Min(1.0, 0.3+0.1*float64(hits))
	return Sentiment{Label: label, Score: score, Confidence: confidence, Hits: hits}
}

// tokenize lowercases and splits text on non-letter boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
