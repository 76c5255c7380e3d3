package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/marketpulse/marketpulse/internal/types"
)

// knownCompanies maps ticker symbols to the company names and aliases
// used for text matching. The default table covers large caps that
// dominate financial news flow; callers can extend it via AddCompany.
var knownCompanies = map[string][]string{
	"AAPL":  {"apple", "apple inc"},
	"MSFT":  {"microsoft", "microsoft corp"},
	"GOOGL": {"google", "alphabet"},
	"AMZN":  {"amazon", "amazon.com"},
	"META":  {"meta", "meta platforms", "facebook"},
	"NVDA":  {"nvidia", "nvidia corp"},
	"TSLA":  {"tesla", "tesla inc"},
	"JPM":   {"jpmorgan", "jp morgan", "jpmorgan chase"},
	"GS":    {"goldman sachs", "goldman"},
	"BAC":   {"bank of america"},
	"WMT":   {"walmart"},
	"XOM":   {"exxon", "exxon mobil", "exxonmobil"},
	"CVX":   {"chevron"},
	"PFE":   {"pfizer"},
	"JNJ":   {"johnson & johnson", "johnson and johnson"},
	"V":     {"visa inc"},
	"MA":    {"mastercard"},
	"DIS":   {"disney", "walt disney"},
	"NFLX":  {"netflix"},
	"INTC":  {"intel", "intel corp"},
	"AMD":   {"advanced micro devices"},
	"BA":    {"boeing"},
	"GE":    {"general electric"},
	"F":     {"ford motor"},
	"GM":    {"general motors"},
	"KO":    {"coca-cola", "coca cola"},
	"PEP":   {"pepsico", "pepsi"},
	"ORCL":  {"oracle corp", "oracle"},
	"CRM":   {"salesforce"},
	"UBER":  {"uber technologies", "uber"},
}

// cashTagPattern matches explicit symbol mentions like $AAPL or (NASDAQ: AAPL).
var cashTagPattern = regexp.MustCompile(`(?:\$|\b(?:NYSE|NASDAQ|AMEX):\s*)([A-Z]{1,5})\b`)

// TickerExtractor finds stock mentions in article text.
type TickerExtractor struct {
	companies map[string][]string
}

func NewTickerExtractor() *TickerExtractor {
	companies := make(map[string][]string, len(knownCompanies))
	for sym, names := range knownCompanies {
		companies[sym] = names
	}
	return &TickerExtractor{companies: companies}
}

// AddCompany registers an extra symbol with its name aliases.
func (e *TickerExtractor) AddCompany(symbol string, aliases ...string) {
	sym := strings.ToUpper(symbol)
	for _, a := range aliases {
		e.companies[sym] = append(e.companies[sym], strings.ToLower(a))
	}
}

// Extract returns tickers mentioned in the text, ordered by confidence
// descending, then mention count. Cash tags and exchange prefixes score
// highest; name matches in the title outrank body-only matches.
func (e *TickerExtractor) Extract(title, body string) []types.TickerMatch {
	type hit struct {
		mentions int
		inTitle  bool
		explicit bool
		name     string
	}
	hits := make(map[string]*hit)
	record := func(sym string, inTitle, explicit bool, name string) {
		h, ok := hits[sym]
		if !ok {
			h = &hit{name: name}
			hits[sym] = h
		}
		h.mentions++
		h.inTitle = h.inTitle || inTitle
		h.explicit = h.explicit || explicit
		if h.name == "" {
			h.name = name
		}
	}

	// Explicit cash tags
	for _, zone := range []struct {
		text    string
		inTitle bool
	}{{title, true}, {body, false}} {
		for _, m := range cashTagPattern.FindAllStringSubmatch(zone.text, -1) {
			sym := m[1]
			if _, known := e.companies[sym]; known || len(sym) >= 2 {
				record(sym, zone.inTitle, true, "")
			}
		}
	}

	// Company name matches
	lowerTitle := strings.ToLower(title)
	lowerBody := strings.ToLower(body)
	for sym, names := range e.companies {
		for _, name := range names {
			if n := countWordMatches(lowerTitle, name); n > 0 {
				for i := 0; i < n; i++ {
					record(sym, true, false, name)
				}
			}
			if n := countWordMatches(lowerBody, name); n > 0 {
				for i := 0; i < n; i++ {
					record(sym, false, false, name)
				}
			}
		}
	}

	matches := make([]types.TickerMatch, 0, len(hits))
	for sym, h := range hits {
		conf := 0.4
		if h.explicit {
			conf += 0.4
		}
		if h.inTitle {
			conf += 0.15
		}
		if h.mentions >= 3 {
			conf += 0.05
		}
		if conf > 1.0 {
			conf = 1.0
		}
		matches = append(matches, types.TickerMatch{
			Symbol:     sym,
			Name:       h.name,
			Confidence: conf,
			Mentions:   h.mentions,
			InTitle:    h.inTitle,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].Mentions != matches[j].Mentions {
			return matches[i].Mentions > matches[j].Mentions
		}
		return matches[i].Symbol < matches[j].Symbol
	})
	return matches
}

// countWordMatches counts occurrences of needle in haystack at word
// boundaries. A plain strings.Count would match "ford" inside "afford".
func countWordMatches(haystack, needle string) int {
	count := 0
	offset := 0
	for {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return count
		}
		abs := offset + idx
		end := abs + len(needle)
		beforeOK := abs == 0 || !isWordChar(haystack[abs-1])
		afterOK := end >= len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			count++
		}
		offset = end
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
