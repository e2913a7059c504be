/*

This is a custom type for tokens as reported inside the subgraph pool
objects, with the helpers the correlation heuristic relies on.

*/

package types

import "strings"

type Token struct {
	ID     string `json:"id"`     // token contract address
	Symbol string `json:"symbol"` // e.g. "USDC"
	Name   string `json:"name"`   // e.g. "USD Coin"
}

// NormalizedSymbol upper-cases and trims the symbol for classification
// lookups. Subgraphs are inconsistent about casing across deployments.
func (t Token) NormalizedSymbol() string {
	return strings.ToUpper(strings.TrimSpace(t.Symbol))
}
