package analysis

import (
	"testing"
)

func TestAnalyzePositive(t *testing.T) {
	a := NewSentimentAnalyzer()
	s := a.Analyze("Apple shares surge after earnings beat, analysts upbeat on strong growth")
	if s.Label != "positive" {
		t.Errorf("label = %q, want positive (score %.3f)", s.Label, s.Score)
	}
	if s.Score <= 0 {
		t.Errorf("score = %.3f, want > 0", s.Score)
	}
	if s.Hits < 4 {
		t.Errorf("hits = %d, want >= 4", s.Hits)
	}
}

func TestAnalyzeNegative(t *testing.T) {
	a := NewSentimentAnalyzer()
	s := a.Analyze("Shares plunged after the company warned of losses and announced layoffs")
	if s.Label != "negative" {
		t.Errorf("label = %q, want negative (score %.3f)", s.Label, s.Score)
	}
	if s.Score >= 0 {
		t.Errorf("score = %.3f, want < 0", s.Score)
	}
}

func TestAnalyzeNeutral(t *testing.T) {
	a := NewSentimentAnalyzer()
	s := a.Analyze("The company held its annual shareholder meeting in Delaware on Tuesday")
	if s.Label != "neutral" {
		t.Errorf("label = %q, want neutral (score %.3f)", s.Label, s.Score)
	}
}

func TestAnalyzeNegationFlips(t *testing.T) {
	a := NewSentimentAnalyzer()
	pos := a.Analyze("profits rose this quarter")
	neg := a.Analyze("profits did not rise this quarter")
	if neg.Score >= pos.Score {
		t.Errorf("negated score %.3f should be below plain score %.3f", neg.Score, pos.Score)
	}
}

func TestAnalyzeIntensifier(t *testing.T) {
	a := NewSentimentAnalyzer()
	plain := a.Analyze("the stock dropped on Monday")
	intense := a.Analyze("the stock sharply dropped on Monday")
	if intense.Score >= plain.Score {
		t.Errorf("intensified drop %.3f should be more negative than plain %.3f", intense.Score, plain.Score)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := NewSentimentAnalyzer()
	s := a.Analyze("")
	if s.Label != "neutral" || s.Score != 0 {
		t.Errorf("empty text: got %+v", s)
	}
}

func TestAnalyzeScoreBounds(t *testing.T) {
	a := NewSentimentAnalyzer()
	s := a.Analyze("surge surge surge rally rally soar soared record profits bullish breakthrough")
	if s.Score > 1 || s.Score < -1 {
		t.Errorf("score %.3f out of [-1, 1]", s.Score)
	}
}

func TestExtractByName(t *testing.T) {
	e := NewTickerExtractor()
	matches := e.Extract(
		"Apple Surges After Earnings Beat",
		"Shares of Apple Inc rose sharply after the company reported strong results. Apple said revenue grew twelve percent.",
	)
	if len(matches) == 0 {
		t.Fatalf("no matches")
	}
	if matches[0].Symbol != "AAPL" {
		t.Errorf("top match = %q, want AAPL", matches[0].Symbol)
	}
	if !matches[0].InTitle {
		t.Errorf("expected title match")
	}
	if matches[0].Mentions < 2 {
		t.Errorf("mentions = %d, want >= 2", matches[0].Mentions)
	}
}

func TestExtractCashTag(t *testing.T) {
	e := NewTickerExtractor()
	matches := e.Extract("Traders pile into $NVDA calls", "Options volume in $NVDA hit a record.")
	if len(matches) == 0 || matches[0].Symbol != "NVDA" {
		t.Fatalf("matches = %+v, want NVDA first", matches)
	}
	if matches[0].Confidence < 0.8 {
		t.Errorf("explicit tag confidence = %.2f, want >= 0.8", matches[0].Confidence)
	}
}

func TestExtractExchangePrefix(t *testing.T) {
	e := NewTickerExtractor()
	matches := e.Extract("Boeing wins order", "Boeing (NYSE: BA) secured a major order on Thursday.")
	var found bool
	for _, m := range matches {
		if m.Symbol == "BA" {
			found = true
		}
	}
	if !found {
		t.Errorf("BA not found in %+v", matches)
	}
}

func TestExtractWordBoundary(t *testing.T) {
	e := NewTickerExtractor()
	matches := e.Extract("Consumers cannot afford new cars", "Many households cannot afford a new vehicle this year.")
	for _, m := range matches {
		if m.Symbol == "F" {
			t.Errorf("matched F inside 'afford': %+v", m)
		}
	}
}

func TestExtractOrderByConfidence(t *testing.T) {
	e := NewTickerExtractor()
	matches := e.Extract(
		"Tesla deliveries top estimates",
		"Tesla reported record deliveries. Rival Ford also posted numbers, and Ford Motor shares moved.",
	)
	if len(matches) < 2 {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Symbol != "TSLA" {
		t.Errorf("top = %q, want TSLA (title mention)", matches[0].Symbol)
	}
}

func TestExtractAddCompany(t *testing.T) {
	e := NewTickerExtractor()
	e.AddCompany("SMSN", "samsung electronics", "samsung")
	matches := e.Extract("Samsung unveils new chip", "Samsung Electronics announced a new memory chip.")
	if len(matches) == 0 || matches[0].Symbol != "SMSN" {
		t.Errorf("matches = %+v, want SMSN", matches)
	}
}

func TestEstimatePriceImpactSign(t *testing.T) {
	a := NewSentimentAnalyzer()

	posText := "Shares surged 8% after the company raised guidance and beat earnings estimates"
	pos := EstimatePriceImpact(a.Analyze(posText), posText)
	if pos <= 0 {
		t.Errorf("positive article impact = %.3f, want > 0", pos)
	}

	negText := "The stock plunged 12% after a downgrade and an SEC investigation was disclosed"
	neg := EstimatePriceImpact(a.Analyze(negText), negText)
	if neg >= 0 {
		t.Errorf("negative article impact = %.3f, want < 0", neg)
	}

	if pos > 1 || neg < -1 {
		t.Errorf("impact out of bounds: pos=%.3f neg=%.3f", pos, neg)
	}
}

func TestEstimatePriceImpactMagnitude(t *testing.T) {
	a := NewSentimentAnalyzer()
	mild := "Shares rose after the report"
	wild := "Shares surged 15% after earnings beat and guidance was raised"
	mi := EstimatePriceImpact(a.Analyze(mild), mild)
	wi := EstimatePriceImpact(a.Analyze(wild), wild)
	if wi <= mi {
		t.Errorf("big move impact %.3f should exceed mild %.3f", wi, mi)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a := NewSentimentAnalyzer()
	text := "Shares of the company surged after earnings beat estimates, with analysts upbeat on strong growth and record profits despite lingering concerns about risks"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Analyze(text)
	}
}
