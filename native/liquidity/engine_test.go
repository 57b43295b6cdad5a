package liquidity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"fusdpool/core/epoch"
	"fusdpool/core/events"
	"fusdpool/core/state"
	"fusdpool/crypto"
	"fusdpool/native/bank"
	nativecommon "fusdpool/native/common"
	"fusdpool/storage"
)

const testNative = "FTM"

type testPool struct {
	t        *testing.T
	db       *storage.MemDB
	state    *state.Manager
	bank     *bank.Bank
	clock    *epoch.ManualClock
	engine   *Engine
	recorder *events.Recorder
}

func newTestPool(t *testing.T) *testPool {
	t.Helper()
	db := storage.NewMemDB()
	mgr := state.NewManager(db)
	require.NoError(t, mgr.RegisterToken(testNative, "Fantom", 18))
	require.NoError(t, mgr.Commit())

	clock := epoch.NewManualClock(mgr)
	b := bank.New(mgr)
	recorder := &events.Recorder{}

	engine := NewEngine(testNative, ModuleAddress())
	engine.SetState(mgr)
	engine.SetBank(b)
	engine.SetClock(clock)
	engine.SetEmitter(recorder)
	return &testPool{t: t, db: db, state: mgr, bank: b, clock: clock, engine: engine, recorder: recorder}
}

func testAddress(n byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = n
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func (p *testPool) fund(addr crypto.Address, amount uint64) {
	p.t.Helper()
	require.NoError(p.t, p.bank.Mint(addr, testNative, u(amount)))
}

func (p *testPool) native(addr crypto.Address) uint64 {
	p.t.Helper()
	bal, err := p.bank.Balance(addr, testNative)
	require.NoError(p.t, err)
	return bal.Uint64()
}

func (p *testPool) stable(addr crypto.Address) uint64 {
	p.t.Helper()
	entry, ok, err := p.engine.Account(addr)
	require.NoError(p.t, err)
	if !ok {
		return 0
	}
	return entry.Balance.Uint64()
}

func (p *testPool) advance(n uint64) {
	p.t.Helper()
	_, err := p.clock.Advance(n)
	require.NoError(p.t, err)
}

func (p *testPool) accrue() BatchResult {
	p.t.Helper()
	res, err := p.engine.ApplyRewardsAll()
	require.NoError(p.t, err)
	return res
}

func (p *testPool) deposit(addr crypto.Address, amount uint64) *Receipt {
	p.t.Helper()
	receipt, err := p.engine.Deposit(addr, u(amount))
	require.NoError(p.t, err)
	return receipt
}

func (p *testPool) withdraw(addr crypto.Address, amount uint64) *Receipt {
	p.t.Helper()
	receipt, err := p.engine.Withdraw(addr, u(amount))
	require.NoError(p.t, err)
	return receipt
}

func (p *testPool) setEpochReward(num, den, floor, ceiling uint64) {
	p.t.Helper()
	require.NoError(p.t, p.engine.SetRewardConfig(rewardConfig(num, den, floor, ceiling)))
}

func (p *testPool) assertBooksBalanced() {
	p.t.Helper()
	entries, _, err := p.engine.Accounts("", 1000)
	require.NoError(p.t, err)
	sum := new(uint256.Int)
	for _, entry := range entries {
		sum.Add(sum, entry.Balance)
	}
	totals, err := p.engine.Totals()
	require.NoError(p.t, err)
	require.True(p.t, sum.Eq(totals.StableOutstanding), "ledger sum %s, outstanding %s", sum.Dec(), totals.StableOutstanding.Dec())
}

func TestConfigDefaults(t *testing.T) {
	p := newTestPool(t)

	reward, err := p.engine.RewardConfig()
	require.NoError(t, err)
	require.Equal(t, "0/1", reward.Instant.String())
	require.Equal(t, "0/1", reward.Epoch.String())
	require.True(t, reward.EpochMin.IsZero())
	require.True(t, reward.EpochMax.IsZero())

	fee, err := p.engine.FeeConfig()
	require.NoError(t, err)
	require.Equal(t, "0/1", fee.Fee.String())

	limit, err := p.engine.LimitConfig()
	require.NoError(t, err)
	require.Equal(t, "1/1", limit.Limit.String())
}

func TestSettersReplaceWholesaleAndValidate(t *testing.T) {
	p := newTestPool(t)

	cfg := RewardConfig{Instant: NewRate(1, 100), Epoch: NewRate(1, 1000)}
	cfg.EpochMin.SetUint64(1)
	cfg.EpochMax.SetUint64(9)
	require.NoError(t, p.engine.SetRewardConfig(cfg))
	require.NoError(t, p.engine.SetRewardConfig(RewardConfig{Instant: NewRate(1, 50), Epoch: ZeroRate()}))

	got, err := p.engine.RewardConfig()
	require.NoError(t, err)
	require.Equal(t, "1/50", got.Instant.String())
	require.Equal(t, "0/1", got.Epoch.String())
	require.True(t, got.EpochMin.IsZero(), "previous floor must not survive a replace")
	require.True(t, got.EpochMax.IsZero())

	require.ErrorIs(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 0)}), ErrInvalidRate)
	require.ErrorIs(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(1, 0)}), ErrInvalidRate)
	fee, err := p.engine.FeeConfig()
	require.NoError(t, err)
	require.Equal(t, "0/1", fee.Fee.String())

	require.NoError(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(1, 2)}))
	limit, err := p.engine.LimitConfig()
	require.NoError(t, err)
	require.Equal(t, "1/2", limit.Limit.String())

	params := 0
	for _, evt := range p.recorder.Typed() {
		if evt.Type == events.TypeLiquidityParams {
			params++
		}
	}
	require.Equal(t, 3, params)
}

func TestDepositOneToOne(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)

	receipt := p.deposit(alice, 100)
	require.Equal(t, uint64(100), p.stable(alice))
	require.Equal(t, uint64(900), p.native(alice))
	require.Equal(t, uint64(100), p.native(p.engine.PoolAddress()))
	require.Equal(t, ReceiptDeposit, receipt.Kind)
	require.NotEmpty(t, receipt.ID)
	require.True(t, receipt.Bonus.IsZero())
	p.assertBooksBalanced()
}

func TestDepositInstantBonus(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	require.NoError(t, p.engine.SetRewardConfig(RewardConfig{Instant: NewRate(1, 100), Epoch: ZeroRate()}))

	receipt := p.deposit(alice, 100)
	require.Equal(t, uint64(101), p.stable(alice))
	require.Equal(t, uint64(1), receipt.Bonus.Uint64())
	require.Equal(t, uint64(900), p.native(alice))

	totals, err := p.engine.Totals()
	require.NoError(t, err)
	require.Equal(t, uint64(101), totals.StableOutstanding.Uint64())
	require.Equal(t, uint64(100), totals.NativeLocked.Uint64())
}

func TestDepositInfoBonusLadder(t *testing.T) {
	p := newTestPool(t)
	ladder := []struct {
		rate Rate
		want uint64
	}{
		{ZeroRate(), 0},
		{NewRate(1, 100), 1},
		{NewRate(1, 50), 2},
		{NewRate(1, 20), 5},
		{NewRate(1, 10), 10},
	}
	for _, step := range ladder {
		require.NoError(t, p.engine.SetRewardConfig(RewardConfig{Instant: step.rate, Epoch: ZeroRate()}))
		quote, err := p.engine.DepositInfo(u(100))
		require.NoError(t, err)
		require.Equal(t, uint64(100), quote.Credit.Uint64())
		require.Equal(t, step.want, quote.Bonus.Uint64(), "rate %s", step.rate)
	}
	require.Zero(t, p.state.Pending(), "queries must not leave writes behind")
}

func TestDepositRejectsZeroAndInsufficientBalance(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)

	_, err := p.engine.Deposit(alice, u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = p.engine.Deposit(alice, u(100))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)

	_, ok, err := p.engine.Account(alice)
	require.NoError(t, err)
	require.False(t, ok, "failed deposit must not create an entry")
	require.Zero(t, p.native(p.engine.PoolAddress()))
	totals, err := p.engine.Totals()
	require.NoError(t, err)
	require.True(t, totals.StableOutstanding.IsZero())
	require.Empty(t, p.recorder.Events())
}

func TestWithdrawFee(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	require.NoError(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 2)}))

	receipt := p.withdraw(alice, 100)
	require.Equal(t, uint64(850), p.stable(alice))
	require.Equal(t, uint64(100), p.native(alice))
	require.Equal(t, uint64(50), receipt.Fee.Uint64())

	totals, err := p.engine.Totals()
	require.NoError(t, err)
	require.Equal(t, uint64(50), totals.FeesCollected.Uint64())
	require.Equal(t, uint64(900), totals.NativeLocked.Uint64())
	p.assertBooksBalanced()
}

func TestWithdrawInfoLadder(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	p.deposit(alice, 100)

	quote, err := p.engine.WithdrawInfo(alice, u(100))
	require.NoError(t, err)
	require.Equal(t, uint64(100), quote.Amount.Uint64())
	require.Zero(t, quote.Fee.Uint64())
	require.Equal(t, uint64(100), quote.Ceiling.Uint64())

	require.NoError(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 2)}))
	quote, err = p.engine.WithdrawInfo(alice, u(100))
	require.NoError(t, err)
	require.Equal(t, uint64(50), quote.Fee.Uint64())
	require.False(t, quote.WithinLimit())

	require.NoError(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(1, 2)}))
	quote, err = p.engine.WithdrawInfo(alice, u(100))
	require.NoError(t, err)
	require.Equal(t, uint64(50), quote.Ceiling.Uint64())
}

func TestWithdrawInfoProjectsPendingEpochs(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	p.setEpochReward(1, 10, 0, 0)
	p.advance(2)

	quote, err := p.engine.WithdrawInfo(alice, u(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1210), quote.Balance.Uint64())
	require.Equal(t, uint64(1000), p.stable(alice), "query must not settle")
}

func TestWithdrawLimitBoundary(t *testing.T) {
	const balance = 1_000_000_000
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, balance)
	p.deposit(alice, balance)
	require.NoError(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(1, 2)}))

	quote, err := p.engine.WithdrawInfo(alice, u(balance/2))
	require.NoError(t, err)
	require.Equal(t, uint64(balance/2), quote.Ceiling.Uint64())

	p.withdraw(alice, balance/2)
	require.Equal(t, uint64(balance/2), p.stable(alice))
	require.Equal(t, uint64(balance/2), p.native(alice))

	_, err = p.engine.Withdraw(alice, u(balance))
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, uint64(balance/2), p.stable(alice))
	require.Equal(t, uint64(balance/2), p.native(alice))
}

func TestWithdrawFeeAndLimitExceeded(t *testing.T) {
	const balance = 1_000_000_000
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, balance)
	p.deposit(alice, balance)
	require.NoError(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 2)}))
	require.NoError(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(1, 2)}))
	before := len(p.recorder.Events())

	_, err := p.engine.Withdraw(alice, u(balance/2))
	require.ErrorIs(t, err, ErrLimitExceeded)
	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	require.Equal(t, uint64(750_000_000), limitErr.Debit.Uint64())
	require.Equal(t, uint64(500_000_000), limitErr.Ceiling.Uint64())

	require.Equal(t, uint64(balance), p.stable(alice))
	require.Zero(t, p.native(alice))
	require.Len(t, p.recorder.Events(), before)
}

func TestWithdrawRejectsZeroAndOverdraw(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	p.deposit(alice, 100)

	_, err := p.engine.Withdraw(alice, u(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, p.engine.SetLimitConfig(LimitConfig{Limit: NewRate(2, 1)}))
	_, err = p.engine.Withdraw(alice, u(150))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NotErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, uint64(100), p.stable(alice))

	_, err = p.engine.Withdraw(testAddress(9), u(1))
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestWithdrawPoolShortOfNative(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	require.NoError(t, p.engine.SetRewardConfig(RewardConfig{Instant: NewRate(1, 1), Epoch: ZeroRate()}))
	p.deposit(alice, 100)
	require.Equal(t, uint64(200), p.stable(alice))

	_, err := p.engine.Withdraw(alice, u(150))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(200), p.stable(alice))
	require.Equal(t, uint64(100), p.native(p.engine.PoolAddress()))
}

func TestEpochRewardsNoClamp(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	p.setEpochReward(1, 1000, 0, 0)

	p.advance(1)
	p.accrue()
	require.Equal(t, uint64(1001), p.stable(alice))
	p.withdraw(alice, 1)

	p.advance(10)
	p.accrue()
	require.Equal(t, uint64(1010), p.stable(alice))
	p.withdraw(alice, 10)

	p.advance(100)
	p.accrue()
	require.Equal(t, uint64(1100), p.stable(alice))
	p.assertBooksBalanced()
}

func TestEpochRewardsCompounding(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	p.setEpochReward(1, 10, 0, 0)

	p.advance(1)
	p.accrue()
	require.Equal(t, uint64(1100), p.stable(alice))
	p.withdraw(alice, 100)

	for _, want := range []uint64{1100, 1210, 1331} {
		p.advance(1)
		p.accrue()
		require.Equal(t, want, p.stable(alice))
	}
	p.withdraw(alice, 331)

	p.advance(10)
	p.accrue()
	require.Equal(t, uint64(2591), p.stable(alice))

	totals, err := p.engine.Totals()
	require.NoError(t, err)
	require.Equal(t, uint64(100+331+1591), totals.RewardsMinted.Uint64())
	p.assertBooksBalanced()
}

func TestEpochRewardsMinClamp(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	p.deposit(alice, 100)
	p.setEpochReward(1, 1000, 1, 0)

	p.advance(1)
	p.accrue()
	require.Equal(t, uint64(101), p.stable(alice))
	p.withdraw(alice, 1)

	p.advance(10)
	p.accrue()
	require.Equal(t, uint64(110), p.stable(alice))
	p.withdraw(alice, 10)

	p.advance(100)
	p.accrue()
	require.Equal(t, uint64(200), p.stable(alice))
}

func TestEpochRewardsMaxClamp(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	p.setEpochReward(1, 100, 0, 1)

	p.advance(1)
	p.accrue()
	require.Equal(t, uint64(1001), p.stable(alice))
	p.withdraw(alice, 1)

	p.advance(10)
	p.accrue()
	require.Equal(t, uint64(1010), p.stable(alice))
	p.withdraw(alice, 10)

	p.advance(100)
	p.accrue()
	require.Equal(t, uint64(1100), p.stable(alice))
}

func TestApplyRewardsIdempotentAtSameEpoch(t *testing.T) {
	p := newTestPool(t)
	alice, bob := testAddress(1), testAddress(2)
	p.fund(alice, 1000)
	p.fund(bob, 500)
	p.deposit(alice, 1000)
	p.deposit(bob, 500)
	p.setEpochReward(1, 10, 0, 0)
	p.advance(1)

	first := p.accrue()
	require.Equal(t, 2, first.Accrued)
	require.Equal(t, uint64(150), first.Minted.Uint64())

	second := p.accrue()
	require.Equal(t, 2, second.Processed)
	require.Zero(t, second.Accrued)
	require.True(t, second.Minted.IsZero())
	require.Equal(t, uint64(1100), p.stable(alice))
	require.Equal(t, uint64(550), p.stable(bob))
}

func TestApplyRewardsAccountsAdvanceIndependently(t *testing.T) {
	p := newTestPool(t)
	alice, bob := testAddress(1), testAddress(2)
	p.fund(alice, 1000)
	p.fund(bob, 1000)
	p.setEpochReward(1, 10, 0, 0)

	p.deposit(alice, 1000)
	p.advance(2)
	p.deposit(bob, 1000)
	p.advance(1)
	p.accrue()

	require.Equal(t, uint64(1331), p.stable(alice))
	require.Equal(t, uint64(1100), p.stable(bob))
	entry, _, err := p.engine.Account(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(3), entry.LastAccrualEpoch)
}

func TestDepositSettlesPendingEpochsFirst(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 2000)
	p.deposit(alice, 1000)
	p.setEpochReward(1, 10, 0, 0)
	p.advance(1)

	p.deposit(alice, 1000)
	require.Equal(t, uint64(2100), p.stable(alice))
	entry, _, err := p.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), entry.LastAccrualEpoch)
}

func TestApplyRewardsClockRegressionRevertsBatch(t *testing.T) {
	p := newTestPool(t)
	alice, bob := testAddress(1), testAddress(2)
	p.fund(alice, 1000)
	p.fund(bob, 1000)
	p.deposit(alice, 1000)
	p.advance(5)
	p.deposit(bob, 1000)
	p.setEpochReward(1, 10, 0, 0)

	require.NoError(t, p.clock.Set(3))
	_, err := p.engine.ApplyRewardsAll()
	require.ErrorIs(t, err, ErrClockRegression)

	entry, _, err := p.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), entry.Balance.Uint64(), "earlier accounts in the batch must be rolled back")
	require.Zero(t, entry.LastAccrualEpoch)
}

func TestApplyRewardsPaginated(t *testing.T) {
	p := newTestPool(t)
	for i := byte(1); i <= 5; i++ {
		p.fund(testAddress(i), 100)
		p.deposit(testAddress(i), 100)
	}
	p.setEpochReward(1, 10, 0, 0)
	p.advance(1)

	cursor := ""
	var cursors []string
	for {
		res, err := p.engine.ApplyRewards(cursor, 2)
		require.NoError(t, err)
		require.Equal(t, uint64(1), res.Epoch)
		if res.Done() {
			break
		}
		cursor = res.NextCursor
		cursors = append(cursors, cursor)
	}
	require.Equal(t, []string{"2", "4"}, cursors)
	for i := byte(1); i <= 5; i++ {
		require.Equal(t, uint64(110), p.stable(testAddress(i)), "account %d", i)
	}

	_, err := p.engine.ApplyRewards("bogus", 2)
	require.ErrorIs(t, err, ErrInvalidCursor)
	p.assertBooksBalanced()
}

func TestTransferMovesStableBetweenHolders(t *testing.T) {
	p := newTestPool(t)
	alice, bob := testAddress(1), testAddress(2)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)

	receipt, err := p.engine.Transfer(alice, bob, u(400))
	require.NoError(t, err)
	require.Equal(t, ReceiptTransfer, receipt.Kind)
	require.Equal(t, uint64(600), p.stable(alice))
	require.Equal(t, uint64(400), p.stable(bob))

	_, err = p.engine.Transfer(bob, alice, u(401))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = p.engine.Transfer(alice, alice, u(600))
	require.NoError(t, err)
	require.Equal(t, uint64(600), p.stable(alice))
	p.assertBooksBalanced()

	owners, _, err := p.engine.Accounts("", 0)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	count, err := p.engine.AccountCount()
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestTransferRejectsMissingEndpoint(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	p.deposit(alice, 100)

	_, err := p.engine.Transfer(alice, crypto.Address{}, u(10))
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = p.engine.Transfer(crypto.Address{}, alice, u(10))
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.Equal(t, "invalid_address", rejectionReason(err))
	require.Equal(t, uint64(100), p.stable(alice))
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 100)
	p.deposit(alice, 100)
	p.engine.SetPauses(nativecommon.Pauses{moduleName: true})

	_, err := p.engine.Deposit(alice, u(1))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = p.engine.Withdraw(alice, u(1))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = p.engine.ApplyRewardsAll()
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	_, err = p.engine.WithdrawInfo(alice, u(1))
	require.NoError(t, err)
	require.NoError(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 100)}))
}

func TestOracleConversion(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.engine.SetOracle(NewStaticOracle(map[string]Rate{"ftm": NewRate(2, 1)}))

	quote, err := p.engine.DepositInfo(u(100))
	require.NoError(t, err)
	require.Equal(t, uint64(200), quote.Credit.Uint64())

	p.deposit(alice, 100)
	require.Equal(t, uint64(200), p.stable(alice))

	receipt := p.withdraw(alice, 101)
	require.Equal(t, uint64(50), receipt.Native.Uint64())
	require.Equal(t, uint64(950), p.native(alice))

	_, err = p.engine.Withdraw(alice, u(1))
	require.ErrorIs(t, err, ErrInvalidAmount)

	p.engine.SetOracle(NewStaticOracle(nil))
	_, err = p.engine.Deposit(alice, u(10))
	require.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestEventsEmittedAfterCommit(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.engine.SetIDGenerator(func() string { return "receipt-1" })
	p.deposit(alice, 1000)
	p.setEpochReward(1, 10, 0, 0)
	p.advance(1)
	p.accrue()

	var kinds []string
	for _, evt := range p.recorder.Typed() {
		kinds = append(kinds, evt.Type)
	}
	require.Equal(t, []string{events.TypeLiquidityDeposit, events.TypeLiquidityParams, events.TypeLiquidityReward}, kinds)

	typed := p.recorder.Typed()
	require.Equal(t, "receipt-1", typed[0].Attributes["receiptId"])
	require.Equal(t, "100", typed[2].Attributes["reward"])
	require.Equal(t, fmt.Sprint(1), typed[2].Attributes["toEpoch"])
}

func TestEngineRequiresCollaborators(t *testing.T) {
	engine := NewEngine(testNative, ModuleAddress())
	_, err := engine.Deposit(testAddress(1), u(1))
	require.ErrorIs(t, err, ErrNilState)

	mgr := state.NewManager(storage.NewMemDB())
	engine.SetState(mgr)
	_, err = engine.Deposit(testAddress(1), u(1))
	require.ErrorIs(t, err, ErrNilBank)

	engine.SetBank(bank.New(mgr))
	_, err = engine.Deposit(testAddress(1), u(1))
	require.ErrorIs(t, err, ErrNilClock)
}

func TestStatePersistsAcrossEngines(t *testing.T) {
	p := newTestPool(t)
	alice := testAddress(1)
	p.fund(alice, 1000)
	p.deposit(alice, 1000)
	require.NoError(t, p.engine.SetFeeConfig(FeeConfig{Fee: NewRate(1, 4)}))

	mgr := state.NewManager(p.db)
	reopened := NewEngine(testNative, ModuleAddress())
	reopened.SetState(mgr)
	reopened.SetBank(bank.New(mgr))
	reopened.SetClock(epoch.NewManualClock(mgr))

	entry, ok, err := reopened.Account(alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1000), entry.Balance.Uint64())
	fee, err := reopened.FeeConfig()
	require.NoError(t, err)
	require.Equal(t, "1/4", fee.Fee.String())
	totals, err := reopened.Totals()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), totals.NativeLocked.Uint64())
}
