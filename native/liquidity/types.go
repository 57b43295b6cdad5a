package liquidity

import (
	"github.com/holiman/uint256"

	"fusdpool/crypto"
)

// AccountEntry is one holder's fUSD position.
type AccountEntry struct {
	Owner            crypto.Address
	Balance          *uint256.Int
	LastAccrualEpoch uint64
}

// RewardConfig drives the instant deposit bonus and the per-epoch accrual.
// EpochMin and EpochMax of zero mean "no floor" and "no ceiling".
type RewardConfig struct {
	Instant  Rate
	Epoch    Rate
	EpochMin uint256.Int
	EpochMax uint256.Int
}

// FeeConfig is the withdrawal fee applied on top of the redeemed amount.
type FeeConfig struct {
	Fee Rate
}

// LimitConfig bounds a single withdrawal debit relative to the caller balance.
type LimitConfig struct {
	Limit Rate
}

// PoolTotals aggregates the pool books. StableOutstanding always equals the
// sum of every ledger balance.
type PoolTotals struct {
	NativeLocked      *uint256.Int
	StableOutstanding *uint256.Int
	FeesCollected     *uint256.Int
	RewardsMinted     *uint256.Int
}

// DepositQuote previews a deposit.
type DepositQuote struct {
	Native *uint256.Int
	Credit *uint256.Int
	Bonus  *uint256.Int
}

// Total is the fUSD the caller would be credited.
func (q DepositQuote) Total() *uint256.Int {
	return new(uint256.Int).Add(q.Credit, q.Bonus)
}

// WithdrawQuote previews a withdrawal against the caller's balance projected
// to the current epoch.
type WithdrawQuote struct {
	Amount  *uint256.Int
	Fee     *uint256.Int
	Ceiling *uint256.Int
	Debit   *uint256.Int
	Native  *uint256.Int
	Balance *uint256.Int
}

// WithinLimit reports whether the debit passes the inclusive ceiling check.
func (q WithdrawQuote) WithinLimit() bool {
	return !q.Debit.Gt(q.Ceiling)
}

const (
	ReceiptDeposit  = "deposit"
	ReceiptWithdraw = "withdraw"
	ReceiptTransfer = "transfer"
)

// Receipt describes a committed deposit, withdrawal or transfer.
type Receipt struct {
	ID           string
	Kind         string
	Account      crypto.Address
	Counterparty crypto.Address
	Native       *uint256.Int
	Stable       *uint256.Int
	Bonus        *uint256.Int
	Fee          *uint256.Int
	Balance      *uint256.Int
	Epoch        uint64
}

// BatchResult summarises one accrual pass or page.
type BatchResult struct {
	Epoch      uint64
	Processed  int
	Accrued    int
	Minted     *uint256.Int
	NextCursor string
}

// Done reports whether the walk reached the end of the ledger.
func (b BatchResult) Done() bool { return b.NextCursor == "" }
