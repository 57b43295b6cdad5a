package liquidity

import (
	"github.com/holiman/uint256"
)

var maxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), maxRateBits), uint256.NewInt(1))

// AccrueEpochs returns the balance after elapsed epochs of compounding and the
// total reward added. Every step computes floor(balance*num/den) on the
// current balance, clamps it to [EpochMin, EpochMax] where those are set and
// adds the clamped reward before the next step.
//
// Steps whose raw reward is unchanged add the same clamped amount, so runs of
// them are applied in one multiplication; the result is identical to stepping
// one epoch at a time.
func AccrueEpochs(balance *uint256.Int, elapsed uint64, cfg RewardConfig) (*uint256.Int, *uint256.Int, error) {
	out := new(uint256.Int)
	if balance != nil {
		out.Set(balance)
	}
	if err := checkWidth(out); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	start := new(uint256.Int).Set(out)
	num := &cfg.Epoch.Numerator
	den := &cfg.Epoch.Denominator
	remaining := elapsed
	for remaining > 0 {
		raw := cfg.Epoch.Apply(out)
		reward := cfg.clamp(raw)
		if reward.IsZero() {
			break
		}
		var steps uint64
		switch {
		case !cfg.EpochMax.IsZero() && !raw.Lt(&cfg.EpochMax):
			// raw never decreases as the balance grows, so the ceiling holds
			// for every remaining step.
			steps = remaining
		case num.IsZero():
			steps = remaining
		default:
			steps = stepsUntilNextRaw(out, raw, reward, num, den, remaining)
		}
		added, overflow := new(uint256.Int).MulOverflow(reward, uint256.NewInt(steps))
		if overflow {
			return nil, nil, ErrAmountOverflow
		}
		if _, overflow := out.AddOverflow(out, added); overflow || out.Gt(maxBalance) {
			return nil, nil, ErrAmountOverflow
		}
		remaining -= steps
	}
	return out, new(uint256.Int).Sub(out, start), nil
}

// stepsUntilNextRaw counts the steps, capped at limit, that start below the
// smallest balance whose raw reward exceeds raw. It is always at least one.
func stepsUntilNextRaw(balance, raw, reward, num, den *uint256.Int, limit uint64) uint64 {
	// threshold = ceil((raw+1)*den/num)
	next := new(uint256.Int).AddUint64(raw, 1)
	product, overflow := new(uint256.Int).MulOverflow(next, den)
	if overflow {
		return limit
	}
	threshold := ceilDiv(product, num)
	if !threshold.Gt(balance) {
		return 1
	}
	gap := new(uint256.Int).Sub(threshold, balance)
	steps := ceilDiv(gap, reward)
	if !steps.IsUint64() || steps.Uint64() > limit {
		return limit
	}
	if steps.IsZero() {
		return 1
	}
	return steps.Uint64()
}

func ceilDiv(x, y *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(x, y)
	if !new(uint256.Int).Mod(x, y).IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

// accrueEntry brings one entry up to current and reports the reward added.
func accrueEntry(entry *AccountEntry, current uint64, cfg RewardConfig) (*uint256.Int, error) {
	if current < entry.LastAccrualEpoch {
		return nil, &ClockRegressionError{Account: entry.Owner, Last: entry.LastAccrualEpoch, Current: current}
	}
	elapsed := current - entry.LastAccrualEpoch
	if elapsed == 0 {
		return new(uint256.Int), nil
	}
	balance, reward, err := AccrueEpochs(entry.Balance, elapsed, cfg)
	if err != nil {
		return nil, err
	}
	entry.Balance = balance
	entry.LastAccrualEpoch = current
	return reward, nil
}
