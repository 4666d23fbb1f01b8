package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta is what the quote path needs to know about a priced token.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals"`
}

// Label is the symbol, or the abbreviated address for tokens without one.
func (m TokenMeta) Label() string {
	if m.Symbol != "" {
		return m.Symbol
	}
	hex := m.Address.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}
