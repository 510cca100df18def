package venue

import "strings"

// quoteAssets are the quote currencies recognized when splitting a
// delimiter-less wire symbol back into canonical BASE/QUOTE form. Longer
// suffixes are listed first so "BTCUSDT" splits as BTC/USDT, not BTC/USD+T.
var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "USD", "BTC", "ETH", "EUR"}

// ToWire converts a canonical BASE/QUOTE symbol to the delimiter-less form
// most CEX wire protocols use ("BTC/USDT" -> "BTCUSDT").
func ToWire(canonical string) string {
	return strings.ReplaceAll(canonical, "/", "")
}

// ToCanonical converts a delimiter-less wire symbol back to BASE/QUOTE by
// matching a known quote-asset suffix. It returns ok=false when no suffix
// matches, in which case the message should be dropped rather than guessed
// at.
func ToCanonical(wire string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(wire))
	if sym == "" {
		return "", false
	}
	for _, quote := range quoteAssets {
		if base, found := strings.CutSuffix(sym, quote); found && base != "" {
			return base + "/" + quote, true
		}
	}
	return "", false
}
