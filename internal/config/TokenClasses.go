/*
The correlation heuristic classifies token pairs from these static sets.

Symbols are matched after upper-casing, so entries here must be upper-case.
The sets follow the symbols the major subgraph deployments actually emit;
wrapped variants are listed alongside their canonical form because subgraphs
disagree about which one appears.

A token in neither set is treated as exotic. That is the safe default: an
unknown symbol gets the lowest co-movement assumption, not a flattering one.
*/

package config

var (
	// StableTokens are USD-pegged (or equivalent) assets. A pair of these is
	// assumed to move together almost perfectly.
	StableTokens = map[string]bool{
		"USDC":   true,
		"USDC.E": true,
		"USDT":   true,
		"DAI":    true,
		"BUSD":   true,
		"TUSD":   true,
		"FRAX":   true,
		"LUSD":   true,
		"GUSD":   true,
		"USDP":   true,
		"SUSD":   true,
		"USDD":   true,
		"PYUSD":  true,
		"FDUSD":  true,
	}

	// MajorTokens are large, liquid assets whose prices broadly track the
	// overall market. The stable set is implicitly part of this class; it is
	// not repeated here.
	MajorTokens = map[string]bool{
		"WETH":   true,
		"ETH":    true,
		"WBTC":   true,
		"BTC":    true,
		"CBBTC":  true,
		"WSTETH": true,
		"STETH":  true,
		"RETH":   true,
		"CBETH":  true,
		"WMATIC": true,
		"MATIC":  true,
		"WBNB":   true,
		"BNB":    true,
		"WAVAX":  true,
		"AVAX":   true,
		"ARB":    true,
		"OP":     true,
		"LINK":   true,
		"UNI":    true,
		"AAVE":   true,
		"MKR":    true,
		"LDO":    true,
	}
)

// IsStableSymbol reports whether an upper-cased symbol is in the stable set.
func IsStableSymbol(symbol string) bool {
	return StableTokens[symbol]
}

// IsMajorSymbol reports whether an upper-cased symbol is stable or major.
func IsMajorSymbol(symbol string) bool {
	return StableTokens[symbol] || MajorTokens[symbol]
}
