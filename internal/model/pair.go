package model

// Pair describes a constant-product pair and its current reserves.
type Pair struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	TotalSupply string `json:"total_supply"`
}
