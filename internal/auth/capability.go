package auth

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a call presents a capability other than the one a component was built with.
var ErrUnauthorized = errors.New("caller is not the owner")

// Capability is an admin credential. Components compare capabilities by identity,
// so only the holder of the original pointer can perform owner-gated calls.
type Capability struct {
	id      uuid.UUID
	account common.Address
}

// NewCapability mints a credential bound to the account that funds owner operations.
func NewCapability(account common.Address) *Capability {
	return &Capability{id: uuid.New(), account: account}
}

// ID returns a stable identifier suitable for logs.
func (c *Capability) ID() string {
	if c == nil {
		return ""
	}
	return c.id.String()
}

// Account is the address owner operations pull funds from.
func (c *Capability) Account() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.account
}

func (c *Capability) String() string {
	return c.ID()
}

// Check verifies that presented is the capability held by the component.
func Check(held, presented *Capability) error {
	if held == nil || presented == nil || held != presented {
		return ErrUnauthorized
	}
	return nil
}
