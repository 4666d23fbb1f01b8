package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry indexes ledgers by address.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]*Ledger
}

func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[common.Address]*Ledger)}
}

// Add registers a ledger, replacing any ledger at the same address.
func (r *Registry) Add(ledger *Ledger) {
	r.mu.Lock()
	r.ledgers[ledger.Address()] = ledger
	r.mu.Unlock()
}

func (r *Registry) Get(address common.Address) (*Ledger, error) {
	r.mu.RLock()
	ledger, ok := r.ledgers[address]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, address.Hex())
	}
	return ledger, nil
}

// Token is Get narrowed to the Token interface.
func (r *Registry) Token(address common.Address) (Token, error) {
	ledger, err := r.Get(address)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// Checkpoint captures membership and every ledger's balances.
func (r *Registry) Checkpoint() func() {
	r.mu.RLock()
	ledgers := make(map[common.Address]*Ledger, len(r.ledgers))
	restores := make([]func(), 0, len(r.ledgers))
	for k, v := range r.ledgers {
		ledgers[k] = v
		restores = append(restores, v.Checkpoint())
	}
	r.mu.RUnlock()

	return func() {
		for _, restore := range restores {
			restore()
		}
		r.mu.Lock()
		r.ledgers = ledgers
		r.mu.Unlock()
	}
}
