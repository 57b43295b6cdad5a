package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"fusdpool/crypto"
)

var (
	// ErrInsufficientBalance indicates the sender cannot cover the transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrUnknownToken indicates the token symbol has not been registered.
	ErrUnknownToken = errors.New("bank: token not registered")
	// ErrInvalidAmount indicates a nil or zero transfer amount.
	ErrInvalidAmount = errors.New("bank: amount must be positive")
	// ErrBalanceOverflow indicates the credit would overflow the recipient.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
)

// BalanceState captures the state manager capabilities required by the bank.
type BalanceState interface {
	Balance(addr []byte, symbol string) (*uint256.Int, error)
	SetBalance(addr []byte, symbol string, amount *uint256.Int) error
	TokenExists(symbol string) bool
}

// Bank moves fungible token balances between accounts. It is the token
// transfer collaborator used by the liquidity pool for the native asset.
type Bank struct {
	state BalanceState
}

// New constructs a bank backed by the supplied state.
func New(state BalanceState) *Bank {
	return &Bank{state: state}
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (b *Bank) withState(symbol string) (string, error) {
	if b == nil || b.state == nil {
		return "", fmt.Errorf("bank: state not configured")
	}
	normalized := normaliseSymbol(symbol)
	if normalized == "" || !b.state.TokenExists(normalized) {
		return "", fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
	}
	return normalized, nil
}

// Balance returns the holder's balance of the given token.
func (b *Bank) Balance(holder crypto.Address, symbol string) (*uint256.Int, error) {
	normalized, err := b.withState(symbol)
	if err != nil {
		return nil, err
	}
	return b.state.Balance(holder.Bytes(), normalized)
}

// Transfer debits amount from the sender and credits the recipient. Nothing is
// written when the sender balance is too low.
func (b *Bank) Transfer(from, to crypto.Address, symbol string, amount *uint256.Int) error {
	normalized, err := b.withState(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	fromBal, err := b.state.Balance(from.Bytes(), normalized)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientBalance, fromBal.Dec(), amount.Dec(), normalized)
	}
	if from.Equal(to) {
		return nil
	}
	toBal, err := b.state.Balance(to.Bytes(), normalized)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := b.state.SetBalance(from.Bytes(), normalized, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return b.state.SetBalance(to.Bytes(), normalized, credited)
}

// Mint credits freshly issued tokens to the recipient.
func (b *Bank) Mint(to crypto.Address, symbol string, amount *uint256.Int) error {
	normalized, err := b.withState(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	balance, err := b.state.Balance(to.Bytes(), normalized)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	return b.state.SetBalance(to.Bytes(), normalized, credited)
}
