/*

This file contains the free-text intent adapter for the agent-tool boundary.
It maps a user message to a typed strategy tier, an investment amount, and an
optional token symbol before anything calls into the core interfaces. The
matching is deliberately shallow keyword and pattern work; fields it cannot
establish stay unset rather than guessed, and nothing in here leaks into the
scoring or cache packages.

*/

package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dexlens/poolscout/internal/logger"
	"github.com/dexlens/poolscout/internal/types"
)

var intentLogger = logger.GetForComponent("intent")

// Intent is the typed result of parsing one message. Strategy is empty and
// AmountUSD nil when the message carried no recognizable signal for them;
// Confidence is the fraction of the two primary signals (strategy, amount)
// that were found.
type Intent struct {
	Strategy   types.StrategyTier `json:"strategy,omitempty"`
	AmountUSD  *float64           `json:"amountUSD,omitempty"`
	Token      string             `json:"token,omitempty"`
	Confidence float64            `json:"confidence"`
}

// tierKeywords maps phrases to tiers. Matching is case-insensitive; when
// phrases for several tiers appear, the one occurring earliest in the
// message wins.
var tierKeywords = map[types.StrategyTier][]string{
	types.TierLow:    {"conservative", "low risk", "low-risk", "safe", "stable", "cautious", "capital preservation"},
	types.TierMedium: {"balanced", "moderate", "medium"},
	types.TierHigh:   {"aggressive", "high risk", "high-risk", "risky", "degen", "yolo", "high yield"},
}

// amountPattern captures money mentions: an optional dollar sign, digits
// with optional thousands separators, an optional k/m magnitude suffix, and
// an optional trailing word that may name a currency. Validation of what
// actually counts as money happens in code.
var amountPattern = regexp.MustCompile(`(?i)(\$)?\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([km])(?:\b|$))?(?:\s+([a-z]{2,7})\b)?`)

// currencyWords are the trailing words accepted as a money marker. Stable
// and major symbols double as the parsed token; fiat words only mark the
// number as money.
var currencyWords = map[string]string{
	"usd":     "",
	"dollars": "",
	"bucks":   "",
	"usdc":    "USDC",
	"usdt":    "USDT",
	"dai":     "DAI",
	"eth":     "ETH",
	"weth":    "WETH",
	"wbtc":    "WBTC",
}

// Parse extracts a typed intent from a free-text message. It never errors:
// an unparseable message comes back with zero confidence and all fields
// unset.
func Parse(message string) Intent {
	result := Intent{}
	signals := 0

	if tier, found := matchStrategy(message); found {
		result.Strategy = tier
		signals++
	}

	if amount, token, found := matchAmount(message); found {
		result.AmountUSD = types.FloatPtr(amount)
		result.Token = token
		signals++
	}

	result.Confidence = float64(signals) / 2

	intentLogger.Debug().
		Str("strategy", string(result.Strategy)).
		Str("token", result.Token).
		Float64("confidence", result.Confidence).
		Msg("Parsed message intent")

	return result
}

// matchStrategy scans for tier keywords and returns the tier whose keyword
// appears first in the message.
func matchStrategy(message string) (types.StrategyTier, bool) {
	lowered := strings.ToLower(message)

	best := types.StrategyTier("")
	bestIndex := len(lowered) + 1
	for _, tier := range types.AllStrategyTiers() {
		for _, keyword := range tierKeywords[tier] {
			index := strings.Index(lowered, keyword)
			if index >= 0 && index < bestIndex {
				best = tier
				bestIndex = index
			}
		}
	}

	return best, best != ""
}

// matchAmount finds the first number in the message that reads as money: a
// dollar sign, a k/m suffix, or a currency word must accompany it. A bare
// number ("3 pools") is not money.
func matchAmount(message string) (float64, string, bool) {
	for _, match := range amountPattern.FindAllStringSubmatch(message, -1) {
		hasDollar := match[1] != ""
		suffix := strings.ToLower(match[3])
		trailingWord := strings.ToLower(match[4])

		token, isCurrency := currencyWords[trailingWord]
		if !hasDollar && suffix == "" && !isCurrency {
			continue
		}

		raw := strings.ReplaceAll(match[2], ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}

		switch suffix {
		case "k":
			amount *= 1_000
		case "m":
			amount *= 1_000_000
		}

		if amount <= 0 {
			continue
		}

		return amount, token, true
	}

	return 0, "", false
}
