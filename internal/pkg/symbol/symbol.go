// Package symbol translates between the display symbols the dashboard uses
// (BTCUSD) and the market symbols the venue trades (BTCUSDT).
package symbol

import "strings"

// Pair binds one display symbol to its venue market.
type Pair struct {
	Display string
	Venue   string
	Base    string
	Quote   string
}

// Normalize strips anything that is not a letter or digit and uppercases.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// quoteAliases maps the display quote currency onto venue quote assets, in
// preference order. Dashboards quote in USD; most venues trade stablecoins.
var quoteAliases = map[string][]string{
	"USD": {"USDT", "USDC", "USD"},
}

// DisplayFromAssets builds a display symbol from venue base/quote assets.
// Stablecoin quotes collapse to USD (BTC+USDT -> BTCUSD).
func DisplayFromAssets(base, quote string) string {
	base = Normalize(base)
	quote = Normalize(quote)
	if base == "" || quote == "" {
		return ""
	}
	switch quote {
	case "USDT", "USDC", "BUSD", "TUSD":
		quote = "USD"
	}
	return base + quote
}

// SplitDisplay breaks a display symbol into base and quote. Only the USD
// quote is recognized; anything else returns ok=false.
func SplitDisplay(display string) (base, quote string, ok bool) {
	s := Normalize(display)
	if strings.HasSuffix(s, "USD") && len(s) > 3 {
		return s[:len(s)-3], "USD", true
	}
	return "", "", false
}

// VenueCandidates lists the venue symbols a display symbol may trade under,
// in preference order. Used to probe the catalog.
func VenueCandidates(display string) []string {
	base, quote, ok := SplitDisplay(display)
	if !ok {
		return nil
	}
	aliases, found := quoteAliases[quote]
	if !found {
		return []string{base + quote}
	}
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, base+alias)
	}
	return out
}
