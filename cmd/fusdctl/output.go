package main

import (
	"github.com/holiman/uint256"

	"fusdpool/native/liquidity"
)

func amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

type paramsOutput struct {
	InstantReward string `json:"instant_reward" yaml:"instant_reward"`
	EpochReward   string `json:"epoch_reward" yaml:"epoch_reward"`
	EpochMin      string `json:"epoch_min" yaml:"epoch_min"`
	EpochMax      string `json:"epoch_max" yaml:"epoch_max"`
	Fee           string `json:"fee" yaml:"fee"`
	Limit         string `json:"limit" yaml:"limit"`
}

func newParamsOutput(reward liquidity.RewardConfig, fee liquidity.FeeConfig, limit liquidity.LimitConfig) paramsOutput {
	return paramsOutput{
		InstantReward: reward.Instant.String(),
		EpochReward:   reward.Epoch.String(),
		EpochMin:      reward.EpochMin.Dec(),
		EpochMax:      reward.EpochMax.Dec(),
		Fee:           fee.Fee.String(),
		Limit:         limit.Limit.String(),
	}
}

type balanceOutput struct {
	Account string `json:"account" yaml:"account"`
	Native  string `json:"native" yaml:"native"`
}

type totalsOutput struct {
	NativeLocked      string `json:"native_locked" yaml:"native_locked"`
	StableOutstanding string `json:"stable_outstanding" yaml:"stable_outstanding"`
	FeesCollected     string `json:"fees_collected" yaml:"fees_collected"`
	RewardsMinted     string `json:"rewards_minted" yaml:"rewards_minted"`
}

func newTotalsOutput(t *liquidity.PoolTotals) totalsOutput {
	return totalsOutput{
		NativeLocked:      amount(t.NativeLocked),
		StableOutstanding: amount(t.StableOutstanding),
		FeesCollected:     amount(t.FeesCollected),
		RewardsMinted:     amount(t.RewardsMinted),
	}
}

type accountOutput struct {
	Address          string `json:"address" yaml:"address"`
	Balance          string `json:"balance" yaml:"balance"`
	LastAccrualEpoch uint64 `json:"last_accrual_epoch" yaml:"last_accrual_epoch"`
}

func newAccountOutput(entry *liquidity.AccountEntry) accountOutput {
	return accountOutput{
		Address:          entry.Owner.String(),
		Balance:          amount(entry.Balance),
		LastAccrualEpoch: entry.LastAccrualEpoch,
	}
}

type accountPageOutput struct {
	Accounts   []accountOutput `json:"accounts" yaml:"accounts"`
	NextCursor string          `json:"next_cursor,omitempty" yaml:"next_cursor,omitempty"`
}

type depositQuoteOutput struct {
	Native string `json:"native" yaml:"native"`
	Credit string `json:"credit" yaml:"credit"`
	Bonus  string `json:"bonus" yaml:"bonus"`
	Total  string `json:"total" yaml:"total"`
}

func newDepositQuoteOutput(q liquidity.DepositQuote) depositQuoteOutput {
	out := depositQuoteOutput{Native: amount(q.Native), Credit: amount(q.Credit), Bonus: amount(q.Bonus), Total: "0"}
	if q.Credit != nil && q.Bonus != nil {
		out.Total = q.Total().Dec()
	}
	return out
}

type withdrawQuoteOutput struct {
	Amount      string `json:"amount" yaml:"amount"`
	Fee         string `json:"fee" yaml:"fee"`
	Debit       string `json:"debit" yaml:"debit"`
	Ceiling     string `json:"ceiling" yaml:"ceiling"`
	Native      string `json:"native" yaml:"native"`
	Balance     string `json:"balance" yaml:"balance"`
	WithinLimit bool   `json:"within_limit" yaml:"within_limit"`
}

func newWithdrawQuoteOutput(q liquidity.WithdrawQuote) withdrawQuoteOutput {
	return withdrawQuoteOutput{
		Amount:      amount(q.Amount),
		Fee:         amount(q.Fee),
		Debit:       amount(q.Debit),
		Ceiling:     amount(q.Ceiling),
		Native:      amount(q.Native),
		Balance:     amount(q.Balance),
		WithinLimit: q.Debit != nil && q.Ceiling != nil && q.WithinLimit(),
	}
}

type receiptOutput struct {
	ID           string `json:"id" yaml:"id"`
	Kind         string `json:"kind" yaml:"kind"`
	Account      string `json:"account" yaml:"account"`
	Counterparty string `json:"counterparty,omitempty" yaml:"counterparty,omitempty"`
	Native       string `json:"native" yaml:"native"`
	Stable       string `json:"stable" yaml:"stable"`
	Bonus        string `json:"bonus" yaml:"bonus"`
	Fee          string `json:"fee" yaml:"fee"`
	Balance      string `json:"balance" yaml:"balance"`
	Epoch        uint64 `json:"epoch" yaml:"epoch"`
}

func newReceiptOutput(r *liquidity.Receipt) receiptOutput {
	out := receiptOutput{
		ID:      r.ID,
		Kind:    r.Kind,
		Account: r.Account.String(),
		Native:  amount(r.Native),
		Stable:  amount(r.Stable),
		Bonus:   amount(r.Bonus),
		Fee:     amount(r.Fee),
		Balance: amount(r.Balance),
		Epoch:   r.Epoch,
	}
	if !r.Counterparty.IsZero() {
		out.Counterparty = r.Counterparty.String()
	}
	return out
}

type batchOutput struct {
	Epoch      uint64 `json:"epoch" yaml:"epoch"`
	Processed  int    `json:"processed" yaml:"processed"`
	Accrued    int    `json:"accrued" yaml:"accrued"`
	Minted     string `json:"minted" yaml:"minted"`
	NextCursor string `json:"next_cursor,omitempty" yaml:"next_cursor,omitempty"`
	Done       bool   `json:"done" yaml:"done"`
}

func newBatchOutput(b liquidity.BatchResult) batchOutput {
	return batchOutput{
		Epoch:      b.Epoch,
		Processed:  b.Processed,
		Accrued:    b.Accrued,
		Minted:     amount(b.Minted),
		NextCursor: b.NextCursor,
		Done:       b.Done(),
	}
}
