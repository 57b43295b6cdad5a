package liquidity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"fusdpool/crypto"
)

var (
	// ErrInvalidAmount rejects zero or missing deposit and withdrawal amounts.
	ErrInvalidAmount = errors.New("liquidity: amount must be positive")
	// ErrInsufficientFunds reports that a token movement could not be covered.
	ErrInsufficientFunds = errors.New("liquidity: insufficient funds")
	// ErrLimitExceeded reports a withdrawal debit above the caller's ceiling.
	ErrLimitExceeded = errors.New("liquidity: withdrawal limit exceeded")
	// ErrClockRegression reports an epoch earlier than an account's last accrual.
	ErrClockRegression = errors.New("liquidity: epoch clock regressed")
	ErrInvalidRate     = errors.New("liquidity: invalid rate")
	// ErrAmountOverflow reports a balance or quantity wider than 128 bits.
	ErrAmountOverflow    = errors.New("liquidity: amount overflow")
	ErrNilState          = errors.New("liquidity: state not configured")
	ErrNilBank           = errors.New("liquidity: token transfer not configured")
	ErrNilClock          = errors.New("liquidity: epoch clock not configured")
	ErrOracleUnavailable = errors.New("liquidity: price oracle unavailable")
	ErrInvalidCursor     = errors.New("liquidity: invalid cursor")
	// ErrInvalidAddress rejects a missing transfer endpoint.
	ErrInvalidAddress = errors.New("liquidity: transfer endpoints required")
)

// LimitError carries the rejected debit and the ceiling it was checked against.
type LimitError struct {
	Debit   *uint256.Int
	Ceiling *uint256.Int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: debit %s exceeds ceiling %s", ErrLimitExceeded, e.Debit.Dec(), e.Ceiling.Dec())
}

// Is lets errors.Is(err, ErrLimitExceeded) match.
func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// ClockRegressionError names the account whose accrual epoch is ahead of the
// clock.
type ClockRegressionError struct {
	Account crypto.Address
	Last    uint64
	Current uint64
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("%s: account %s last accrued at epoch %d, clock reports %d", ErrClockRegression, e.Account, e.Last, e.Current)
}

// Is lets errors.Is(err, ErrClockRegression) match.
func (e *ClockRegressionError) Is(target error) bool { return target == ErrClockRegression }
