package server

import (
	"github.com/holiman/uint256"

	"fusdpool/native/liquidity"
)

// Amounts travel as base-10 strings so 128-bit values survive JSON clients.

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

type paramsView struct {
	InstantReward string `json:"instantReward"`
	EpochReward   string `json:"epochReward"`
	EpochMin      string `json:"epochMin"`
	EpochMax      string `json:"epochMax"`
	Fee           string `json:"fee"`
	Limit         string `json:"limit"`
}

func newParamsView(reward liquidity.RewardConfig, fee liquidity.FeeConfig, limit liquidity.LimitConfig) paramsView {
	return paramsView{
		InstantReward: reward.Instant.String(),
		EpochReward:   reward.Epoch.String(),
		EpochMin:      reward.EpochMin.Dec(),
		EpochMax:      reward.EpochMax.Dec(),
		Fee:           fee.Fee.String(),
		Limit:         limit.Limit.String(),
	}
}

type totalsView struct {
	NativeLocked      string `json:"nativeLocked"`
	StableOutstanding string `json:"stableOutstanding"`
	FeesCollected     string `json:"feesCollected"`
	RewardsMinted     string `json:"rewardsMinted"`
}

func newTotalsView(t *liquidity.PoolTotals) totalsView {
	if t == nil {
		t = &liquidity.PoolTotals{}
	}
	return totalsView{
		NativeLocked:      dec(t.NativeLocked),
		StableOutstanding: dec(t.StableOutstanding),
		FeesCollected:     dec(t.FeesCollected),
		RewardsMinted:     dec(t.RewardsMinted),
	}
}

type accountView struct {
	Address          string `json:"address"`
	Balance          string `json:"balance"`
	LastAccrualEpoch uint64 `json:"lastAccrualEpoch"`
}

func newAccountView(entry *liquidity.AccountEntry) accountView {
	return accountView{
		Address:          entry.Owner.String(),
		Balance:          dec(entry.Balance),
		LastAccrualEpoch: entry.LastAccrualEpoch,
	}
}

type accountPageView struct {
	Accounts   []accountView `json:"accounts"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type depositQuoteView struct {
	Native string `json:"native"`
	Credit string `json:"credit"`
	Bonus  string `json:"bonus"`
	Total  string `json:"total"`
}

func newDepositQuoteView(q liquidity.DepositQuote) depositQuoteView {
	total := "0"
	if q.Credit != nil && q.Bonus != nil {
		total = q.Total().Dec()
	}
	return depositQuoteView{Native: dec(q.Native), Credit: dec(q.Credit), Bonus: dec(q.Bonus), Total: total}
}

type withdrawQuoteView struct {
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	Debit       string `json:"debit"`
	Ceiling     string `json:"ceiling"`
	Native      string `json:"native"`
	Balance     string `json:"balance"`
	WithinLimit bool   `json:"withinLimit"`
}

func newWithdrawQuoteView(q liquidity.WithdrawQuote) withdrawQuoteView {
	within := q.Debit != nil && q.Ceiling != nil && q.WithinLimit()
	return withdrawQuoteView{
		Amount:      dec(q.Amount),
		Fee:         dec(q.Fee),
		Debit:       dec(q.Debit),
		Ceiling:     dec(q.Ceiling),
		Native:      dec(q.Native),
		Balance:     dec(q.Balance),
		WithinLimit: within,
	}
}

type receiptView struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Account      string `json:"account"`
	Counterparty string `json:"counterparty,omitempty"`
	Native       string `json:"native"`
	Stable       string `json:"stable"`
	Bonus        string `json:"bonus"`
	Fee          string `json:"fee"`
	Balance      string `json:"balance"`
	Epoch        uint64 `json:"epoch"`
}

func newReceiptView(r *liquidity.Receipt) receiptView {
	view := receiptView{
		ID:      r.ID,
		Kind:    r.Kind,
		Account: r.Account.String(),
		Native:  dec(r.Native),
		Stable:  dec(r.Stable),
		Bonus:   dec(r.Bonus),
		Fee:     dec(r.Fee),
		Balance: dec(r.Balance),
		Epoch:   r.Epoch,
	}
	if !r.Counterparty.IsZero() {
		view.Counterparty = r.Counterparty.String()
	}
	return view
}

type batchView struct {
	Epoch      uint64 `json:"epoch"`
	Processed  int    `json:"processed"`
	Accrued    int    `json:"accrued"`
	Minted     string `json:"minted"`
	NextCursor string `json:"nextCursor,omitempty"`
	Done       bool   `json:"done"`
}

func newBatchView(b liquidity.BatchResult) batchView {
	return batchView{
		Epoch:      b.Epoch,
		Processed:  b.Processed,
		Accrued:    b.Accrued,
		Minted:     dec(b.Minted),
		NextCursor: b.NextCursor,
		Done:       b.Done(),
	}
}
