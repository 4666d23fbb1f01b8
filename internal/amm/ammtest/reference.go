// Package ammtest deploys a fixed set of tokens and constant-product pools
// onto an in-memory exchange. Tests across the module share it.
package ammtest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpFarm/internal/amm"
	"lpFarm/internal/token"
)

var (
	WETH   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	WBTC   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	ESW    = common.HexToAddress("0x3000000000000000000000000000000000000003")
	UNI    = common.HexToAddress("0x4000000000000000000000000000000000000004")
	USDT   = common.HexToAddress("0x5000000000000000000000000000000000000005")
	WMATIC = common.HexToAddress("0x6000000000000000000000000000000000000006")
	DAI    = common.HexToAddress("0x7000000000000000000000000000000000000007")
	USDC   = common.HexToAddress("0x8000000000000000000000000000000000000008")

	Deployer = common.HexToAddress("0xd00000000000000000000000000000000000000d")
)

type tokenDef struct {
	address  common.Address
	symbol   string
	decimals uint8
}

var tokenDefs = []tokenDef{
	{WETH, "WETH", 18},
	{WBTC, "WBTC", 8},
	{ESW, "ESW", 18},
	{UNI, "UNI", 18},
	{USDT, "USDT", 6},
	{WMATIC, "WMATIC", 18},
	{DAI, "DAI", 18},
	{USDC, "USDC", 6},
}

type poolDef struct {
	name             string
	tokenA, tokenB   common.Address
	amountA, amountB string
}

var poolDefs = []poolDef{
	{"wbtc-weth", WBTC, WETH, "10000000000", "10000000000000000000000"},
	{"wbtc-uni", WBTC, UNI, "4000000000", "100000000000000000000000"},
	{"esw-weth", ESW, WETH, "100000000000000000000000000", "10000000000000000000000"},
	{"weth-usdt", WETH, USDT, "10000000000000000000000", "20000000000000"},
	{"wmatic-esw", WMATIC, ESW, "10000000000000000000000", "250000000000000000000000"},
	{"dai-usdc", DAI, USDC, "100000000000000000000000", "100000000000"},
}

// Reference is the deployed fixture.
type Reference struct {
	Tokens   *token.Registry
	Exchange *amm.Exchange
	Pairs    map[string]common.Address
	// Routes are the price paths into USDT. DAI and USDC have none.
	Routes [][]common.Address
}

// NewReference deploys every token and pool with a zero swap fee. The deployer
// keeps the minted LP tokens.
func NewReference(logger *zap.Logger) (*Reference, error) {
	tokens := token.NewRegistry()
	for _, def := range tokenDefs {
		tokens.Add(token.NewLedger(def.address, def.symbol, def.decimals))
	}
	exchange, err := amm.NewExchange(tokens, 0, logger)
	if err != nil {
		return nil, err
	}

	ref := &Reference{
		Tokens:   tokens,
		Exchange: exchange,
		Pairs:    make(map[string]common.Address, len(poolDefs)),
		Routes: [][]common.Address{
			{USDT},
			{WETH, USDT},
			{WBTC, WETH, USDT},
			{ESW, WETH, USDT},
			{UNI, WBTC, WETH, USDT},
			{WMATIC, ESW, WETH, USDT},
		},
	}
	for _, def := range poolDefs {
		amountA, err := uint256.FromDecimal(def.amountA)
		if err != nil {
			return nil, fmt.Errorf("%s amount: %w", def.name, err)
		}
		amountB, err := uint256.FromDecimal(def.amountB)
		if err != nil {
			return nil, fmt.Errorf("%s amount: %w", def.name, err)
		}
		if err := ref.Mint(def.tokenA, Deployer, amountA); err != nil {
			return nil, err
		}
		if err := ref.Mint(def.tokenB, Deployer, amountB); err != nil {
			return nil, err
		}
		pair, err := exchange.CreatePair(def.tokenA, def.tokenB)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", def.name, err)
		}
		if _, err := exchange.AddLiquidity(Deployer, def.tokenA, def.tokenB, amountA, amountB); err != nil {
			return nil, fmt.Errorf("seed %s: %w", def.name, err)
		}
		ref.Pairs[def.name] = pair
	}
	return ref, nil
}

// Mint credits amount of tok to owner.
func (r *Reference) Mint(tok, owner common.Address, amount *uint256.Int) error {
	ledger, err := r.Tokens.Get(tok)
	if err != nil {
		return err
	}
	return ledger.Mint(owner, amount)
}

// Ledger returns the ledger of tok, panicking on unknown addresses.
func (r *Reference) Ledger(tok common.Address) *token.Ledger {
	ledger, err := r.Tokens.Get(tok)
	if err != nil {
		panic(err)
	}
	return ledger
}

// Amount parses a decimal string, panicking on malformed input.
func Amount(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("amount %q: %v", s, err))
	}
	return v
}
