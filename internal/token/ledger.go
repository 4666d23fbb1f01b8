package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger is an in-memory ERC20 balance sheet.
type Ledger struct {
	address  common.Address
	symbol   string
	decimals uint8

	mu         sync.RWMutex
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

func NewLedger(address common.Address, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.Clone()
}

func (l *Ledger) BalanceOf(owner common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(owner).Clone()
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner, spender}] = amount.Clone()
	return nil
}

func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(from, to, amount)
}

func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{from, spender}
	allowed, ok := l.allowances[key]
	if !ok || allowed.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientAllowance)
	}
	if err := l.moveLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = new(uint256.Int).Sub(allowed, amount)
	return nil
}

// Mint credits amount to owner and grows the supply.
func (l *Ledger) Mint(owner common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%s: %w", l.symbol, ErrOverflow)
	}
	l.supply = supply
	l.balances[owner] = new(uint256.Int).Add(l.balanceLocked(owner), amount)
	return nil
}

// Burn debits amount from owner and shrinks the supply.
func (l *Ledger) Burn(owner common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(owner)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientBalance)
	}
	l.balances[owner] = new(uint256.Int).Sub(bal, amount)
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	return nil
}

// Checkpoint captures the ledger and returns a function that restores it.
func (l *Ledger) Checkpoint() func() {
	l.mu.RLock()
	supply := l.supply.Clone()
	balances := make(map[common.Address]*uint256.Int, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v.Clone()
	}
	allowances := make(map[allowanceKey]*uint256.Int, len(l.allowances))
	for k, v := range l.allowances {
		allowances[k] = v.Clone()
	}
	l.mu.RUnlock()

	return func() {
		l.mu.Lock()
		l.supply = supply
		l.balances = balances
		l.allowances = allowances
		l.mu.Unlock()
	}
}

func (l *Ledger) balanceLocked(owner common.Address) *uint256.Int {
	if v, ok := l.balances[owner]; ok {
		return v
	}
	return new(uint256.Int)
}

func (l *Ledger) moveLocked(from, to common.Address, amount *uint256.Int) error {
	bal := l.balanceLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientBalance)
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	l.balances[to] = new(uint256.Int).Add(l.balanceLocked(to), amount)
	return nil
}
