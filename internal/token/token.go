package token

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrUnknownToken          = errors.New("unknown token")
	ErrOverflow              = errors.New("balance overflow")
)

// Token is the fungible-token surface the engine consumes. The caller of each
// mutating method is passed explicitly instead of being implied by a transaction.
type Token interface {
	Address() common.Address
	Symbol() string
	Decimals() uint8
	TotalSupply() *uint256.Int
	BalanceOf(owner common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Approve(owner, spender common.Address, amount *uint256.Int) error
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// CanPull reports whether spender may move amount out of from without the transfer failing.
func CanPull(tok Token, spender, from common.Address, amount *uint256.Int) error {
	if tok.BalanceOf(from).Lt(amount) {
		return ErrInsufficientBalance
	}
	if tok.Allowance(from, spender).Lt(amount) {
		return ErrInsufficientAllowance
	}
	return nil
}

// Unit returns 10^decimals.
func Unit(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
