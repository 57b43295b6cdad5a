package events

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"fusdpool/core/types"
	"fusdpool/crypto"
)

const (
	// TypeLiquidityDeposit is emitted when native collateral is exchanged for fUSD.
	TypeLiquidityDeposit = "liquidity.deposit"
	// TypeLiquidityWithdraw is emitted when fUSD is redeemed for the native asset.
	TypeLiquidityWithdraw = "liquidity.withdraw"
	// TypeLiquidityReward is emitted for every account whose balance accrued.
	TypeLiquidityReward = "liquidity.reward"
	// TypeLiquidityTransfer is emitted when fUSD moves between holders.
	TypeLiquidityTransfer = "liquidity.transfer"
	// TypeLiquidityParams is emitted when a pool parameter set is replaced.
	TypeLiquidityParams = "liquidity.params"
)

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

type LiquidityDeposit struct {
	ReceiptID string
	Account   crypto.Address
	Native    *uint256.Int
	Credit    *uint256.Int
	Bonus     *uint256.Int
	Epoch     uint64
}

func (LiquidityDeposit) EventType() string { return TypeLiquidityDeposit }

func (e LiquidityDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityDeposit,
		Attributes: map[string]string{
			"receiptId": e.ReceiptID,
			"account":   e.Account.String(),
			"native":    amountString(e.Native),
			"credit":    amountString(e.Credit),
			"bonus":     amountString(e.Bonus),
			"epoch":     strconv.FormatUint(e.Epoch, 10),
		},
	}
}

type LiquidityWithdraw struct {
	ReceiptID string
	Account   crypto.Address
	Amount    *uint256.Int
	Fee       *uint256.Int
	Native    *uint256.Int
	Epoch     uint64
}

func (LiquidityWithdraw) EventType() string { return TypeLiquidityWithdraw }

func (e LiquidityWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityWithdraw,
		Attributes: map[string]string{
			"receiptId": e.ReceiptID,
			"account":   e.Account.String(),
			"amount":    amountString(e.Amount),
			"fee":       amountString(e.Fee),
			"native":    amountString(e.Native),
			"epoch":     strconv.FormatUint(e.Epoch, 10),
		},
	}
}

type LiquidityReward struct {
	Account   crypto.Address
	Reward    *uint256.Int
	Balance   *uint256.Int
	FromEpoch uint64
	ToEpoch   uint64
}

func (LiquidityReward) EventType() string { return TypeLiquidityReward }

func (e LiquidityReward) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityReward,
		Attributes: map[string]string{
			"account":   e.Account.String(),
			"reward":    amountString(e.Reward),
			"balance":   amountString(e.Balance),
			"fromEpoch": strconv.FormatUint(e.FromEpoch, 10),
			"toEpoch":   strconv.FormatUint(e.ToEpoch, 10),
		},
	}
}

type LiquidityTransfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *uint256.Int
}

func (LiquidityTransfer) EventType() string { return TypeLiquidityTransfer }

func (e LiquidityTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityTransfer,
		Attributes: map[string]string{
			"from":   e.From.String(),
			"to":     e.To.String(),
			"amount": amountString(e.Amount),
		},
	}
}

// LiquidityParams carries the replaced parameter set as flat key/value pairs.
type LiquidityParams struct {
	Kind   string
	Values map[string]string
}

func (LiquidityParams) EventType() string { return TypeLiquidityParams }

func (e LiquidityParams) Event() *types.Event {
	attrs := map[string]string{"kind": strings.TrimSpace(e.Kind)}
	for k, v := range e.Values {
		attrs[k] = v
	}
	return &types.Event{Type: TypeLiquidityParams, Attributes: attrs}
}
