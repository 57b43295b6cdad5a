package liquidity

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"fusdpool/core/epoch"
	"fusdpool/core/events"
	"fusdpool/crypto"
	"fusdpool/native/bank"
	nativecommon "fusdpool/native/common"
	"fusdpool/observability/metrics"
)

const moduleName = "liquidity"

// ModuleAddress is the account holding the native collateral of the pool.
func ModuleAddress() crypto.Address { return crypto.ModuleAddress(moduleName) }

type engineState interface {
	Storage
	Snapshot() int
	RevertToSnapshot(id int)
	Commit() error
}

// TokenTransfer moves the native asset between accounts.
type TokenTransfer interface {
	Balance(holder crypto.Address, symbol string) (*uint256.Int, error)
	Transfer(from, to crypto.Address, symbol string, amount *uint256.Int) error
}

// Engine executes pool operations. Every mutating call either commits all of
// its writes in one batch or none of them. Calls are serialized.
type Engine struct {
	mu           sync.Mutex
	state        engineState
	ledger       *Ledger
	params       *ConfigStore
	bank         TokenTransfer
	oracle       PriceOracle
	clock        epoch.Clock
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	logger       *slog.Logger
	telemetry    *metrics.LiquidityMetrics
	nativeSymbol string
	poolAddress  crypto.Address
	pending      []events.Event
	newID        func() string
	now          func() time.Time
}

// NewEngine constructs an engine for the given native asset whose collateral
// is held by poolAddr.
func NewEngine(nativeSymbol string, poolAddr crypto.Address) *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		logger:       slog.Default(),
		telemetry:    metrics.Liquidity(),
		nativeSymbol: strings.ToUpper(strings.TrimSpace(nativeSymbol)),
		poolAddress:  poolAddr,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.ledger = NewLedger(state)
	e.params = NewConfigStore(state)
}

// SetBank wires the native token transfer collaborator.
func (e *Engine) SetBank(b TokenTransfer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bank = b
}

// SetOracle installs a price oracle. A nil oracle means 1:1 conversion.
func (e *Engine) SetOracle(o PriceOracle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oracle = o
}

func (e *Engine) SetClock(c epoch.Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = c
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses = p
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetIDGenerator overrides receipt identifiers for deterministic testing.
func (e *Engine) SetIDGenerator(fn func() string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn != nil {
		e.newID = fn
	}
}

// PoolAddress returns the account that holds the native collateral.
func (e *Engine) PoolAddress() crypto.Address { return e.poolAddress }

// NativeSymbol returns the deposited asset symbol.
func (e *Engine) NativeSymbol() string { return e.nativeSymbol }

// Exclusive runs fn while holding the engine lock. Collaborators that share
// the engine state use it to write outside a pool operation.
func (e *Engine) Exclusive(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

func rejectionReason(err error) string {
	var limitErr *LimitError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &limitErr):
		return "limit_exceeded"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrClockRegression):
		return "clock_regression"
	case errors.Is(err, ErrInvalidRate):
		return "invalid_rate"
	case errors.Is(err, ErrAmountOverflow):
		return "overflow"
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}

// atomic runs fn against a state snapshot. Writes are committed when fn
// succeeds and rolled back otherwise; queued events are emitted only after a
// successful commit. Callers hold e.mu.
func (e *Engine) atomic(operation string, fn func() error) (err error) {
	defer func() { e.telemetry.ObserveOperation(operation, rejectionReason(err)) }()
	if e.state == nil {
		return ErrNilState
	}
	e.pending = e.pending[:0]
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		e.pending = e.pending[:0]
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.RevertToSnapshot(snap)
		e.pending = e.pending[:0]
		return err
	}
	for _, evt := range e.pending {
		e.emitter.Emit(evt)
	}
	e.pending = e.pending[:0]
	return nil
}

func (e *Engine) queue(evt events.Event) {
	e.pending = append(e.pending, evt)
}

func (e *Engine) currentEpoch() (uint64, error) {
	if e.clock == nil {
		return 0, ErrNilClock
	}
	return e.clock.CurrentEpoch()
}

func (e *Engine) rate() (Rate, error) {
	return conversionRate(e.oracle, e.nativeSymbol)
}

// settle accrues every pending epoch of entry and books the minted reward.
func (e *Engine) settle(entry *AccountEntry, current uint64, cfg RewardConfig, totals *PoolTotals) (*uint256.Int, error) {
	from := entry.LastAccrualEpoch
	reward, err := accrueEntry(entry, current, cfg)
	if err != nil {
		var regression *ClockRegressionError
		if errors.As(err, &regression) {
			e.logger.Error("liquidity: epoch clock regressed",
				slog.String("account", entry.Owner.String()),
				slog.Uint64("last_epoch", regression.Last),
				slog.Uint64("current_epoch", regression.Current))
		}
		return nil, err
	}
	if reward.IsZero() {
		return reward, nil
	}
	if err := addTo(totals.StableOutstanding, reward); err != nil {
		return nil, err
	}
	if err := addTo(totals.RewardsMinted, reward); err != nil {
		return nil, err
	}
	e.queue(events.LiquidityReward{
		Account:   entry.Owner,
		Reward:    new(uint256.Int).Set(reward),
		Balance:   new(uint256.Int).Set(entry.Balance),
		FromEpoch: from,
		ToEpoch:   current,
	})
	return reward, nil
}

func addTo(dst, delta *uint256.Int) error {
	if _, overflow := dst.AddOverflow(dst, delta); overflow {
		return ErrAmountOverflow
	}
	return checkWidth(dst)
}

// loadEntry returns the caller's entry, or a fresh zero entry starting at the
// current epoch.
func (e *Engine) loadEntry(addr crypto.Address, current uint64) (*AccountEntry, error) {
	entry, ok, err := e.ledger.Get(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &AccountEntry{Owner: addr, Balance: new(uint256.Int), LastAccrualEpoch: current}, nil
	}
	return entry, nil
}

func wrapTransferError(err error) error {
	if errors.Is(err, bank.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}

func (e *Engine) quoteDeposit(amount *uint256.Int, cfg RewardConfig) (DepositQuote, error) {
	conversion, err := e.rate()
	if err != nil {
		return DepositQuote{}, err
	}
	credit, err := conversion.ApplyChecked(amount)
	if err != nil {
		return DepositQuote{}, err
	}
	bonus, err := cfg.Instant.ApplyChecked(amount)
	if err != nil {
		return DepositQuote{}, err
	}
	return DepositQuote{Native: new(uint256.Int).Set(amount), Credit: credit, Bonus: bonus}, nil
}

// DepositInfo previews a deposit of amount native units without touching
// state. A zero amount yields a zero quote.
func (e *Engine) DepositInfo(amount *uint256.Int) (DepositQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return DepositQuote{}, ErrNilState
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	cfg, err := e.params.RewardConfig()
	if err != nil {
		return DepositQuote{}, err
	}
	return e.quoteDeposit(amount, cfg)
}

// Deposit moves amount of the native asset from caller into the pool and
// credits the caller with the converted amount plus the instant bonus.
func (e *Engine) Deposit(caller crypto.Address, amount *uint256.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var receipt *Receipt
	err := e.atomic("deposit", func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return ErrInvalidAmount
		}
		if err := checkWidth(amount); err != nil {
			return err
		}
		if e.bank == nil {
			return ErrNilBank
		}
		current, err := e.currentEpoch()
		if err != nil {
			return err
		}
		cfg, err := e.params.RewardConfig()
		if err != nil {
			return err
		}
		totals, err := e.ledger.Totals()
		if err != nil {
			return err
		}
		entry, err := e.loadEntry(caller, current)
		if err != nil {
			return err
		}
		if _, err := e.settle(entry, current, cfg, totals); err != nil {
			return err
		}
		if err := e.bank.Transfer(caller, e.poolAddress, e.nativeSymbol, amount); err != nil {
			return wrapTransferError(err)
		}
		quote, err := e.quoteDeposit(amount, cfg)
		if err != nil {
			return err
		}
		total := quote.Total()
		if err := addTo(entry.Balance, total); err != nil {
			return err
		}
		if err := addTo(totals.StableOutstanding, total); err != nil {
			return err
		}
		if err := e.ledger.Put(entry); err != nil {
			return err
		}
		if err := e.ledger.PutTotals(totals); err != nil {
			return err
		}
		receipt = &Receipt{
			ID:      e.newID(),
			Kind:    ReceiptDeposit,
			Account: caller,
			Native:  quote.Native,
			Stable:  quote.Credit,
			Bonus:   quote.Bonus,
			Fee:     new(uint256.Int),
			Balance: new(uint256.Int).Set(entry.Balance),
			Epoch:   current,
		}
		e.queue(events.LiquidityDeposit{
			ReceiptID: receipt.ID,
			Account:   caller,
			Native:    quote.Native,
			Credit:    quote.Credit,
			Bonus:     quote.Bonus,
			Epoch:     current,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) quoteWithdraw(entry *AccountEntry, amount *uint256.Int, fee FeeConfig, limit LimitConfig) (WithdrawQuote, error) {
	feeAmount, err := fee.Fee.ApplyChecked(amount)
	if err != nil {
		return WithdrawQuote{}, err
	}
	debit, overflow := new(uint256.Int).AddOverflow(amount, feeAmount)
	if overflow {
		return WithdrawQuote{}, ErrAmountOverflow
	}
	conversion, err := e.rate()
	if err != nil {
		return WithdrawQuote{}, err
	}
	native, err := conversion.Inverse().ApplyChecked(amount)
	if err != nil {
		return WithdrawQuote{}, err
	}
	return WithdrawQuote{
		Amount:  new(uint256.Int).Set(amount),
		Fee:     feeAmount,
		Ceiling: limit.Limit.Apply(entry.Balance),
		Debit:   debit,
		Native:  native,
		Balance: new(uint256.Int).Set(entry.Balance),
	}, nil
}

// WithdrawInfo previews a withdrawal against the caller's balance projected to
// the current epoch. Nothing is written.
func (e *Engine) WithdrawInfo(caller crypto.Address, amount *uint256.Int) (WithdrawQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return WithdrawQuote{}, ErrNilState
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	current, err := e.currentEpoch()
	if err != nil {
		return WithdrawQuote{}, err
	}
	entry, err := e.loadEntry(caller, current)
	if err != nil {
		return WithdrawQuote{}, err
	}
	reward, fee, limit, err := e.loadConfigs()
	if err != nil {
		return WithdrawQuote{}, err
	}
	if _, err := accrueEntry(entry, current, reward); err != nil {
		return WithdrawQuote{}, err
	}
	return e.quoteWithdraw(entry, amount, fee, limit)
}

func (e *Engine) loadConfigs() (RewardConfig, FeeConfig, LimitConfig, error) {
	reward, err := e.params.RewardConfig()
	if err != nil {
		return RewardConfig{}, FeeConfig{}, LimitConfig{}, err
	}
	fee, err := e.params.FeeConfig()
	if err != nil {
		return RewardConfig{}, FeeConfig{}, LimitConfig{}, err
	}
	limit, err := e.params.LimitConfig()
	if err != nil {
		return RewardConfig{}, FeeConfig{}, LimitConfig{}, err
	}
	return reward, fee, limit, nil
}

// Withdraw redeems amount fUSD. The caller is debited amount plus the fee,
// which must not exceed the limit ceiling of the current balance, and receives
// the native equivalent of amount. The fee stays with the pool.
func (e *Engine) Withdraw(caller crypto.Address, amount *uint256.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var receipt *Receipt
	err := e.atomic("withdraw", func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return ErrInvalidAmount
		}
		if err := checkWidth(amount); err != nil {
			return err
		}
		if e.bank == nil {
			return ErrNilBank
		}
		current, err := e.currentEpoch()
		if err != nil {
			return err
		}
		reward, fee, limit, err := e.loadConfigs()
		if err != nil {
			return err
		}
		totals, err := e.ledger.Totals()
		if err != nil {
			return err
		}
		entry, err := e.loadEntry(caller, current)
		if err != nil {
			return err
		}
		if _, err := e.settle(entry, current, reward, totals); err != nil {
			return err
		}
		quote, err := e.quoteWithdraw(entry, amount, fee, limit)
		if err != nil {
			return err
		}
		if !quote.WithinLimit() {
			return &LimitError{Debit: quote.Debit, Ceiling: quote.Ceiling}
		}
		if quote.Debit.Gt(entry.Balance) {
			return fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, entry.Balance.Dec(), quote.Debit.Dec())
		}
		if quote.Native.IsZero() {
			return fmt.Errorf("%w: %s fUSD redeems to zero %s", ErrInvalidAmount, amount.Dec(), e.nativeSymbol)
		}
		if err := e.bank.Transfer(e.poolAddress, caller, e.nativeSymbol, quote.Native); err != nil {
			return wrapTransferError(err)
		}
		entry.Balance.Sub(entry.Balance, quote.Debit)
		totals.StableOutstanding.Sub(totals.StableOutstanding, quote.Debit)
		if err := addTo(totals.FeesCollected, quote.Fee); err != nil {
			return err
		}
		if err := e.ledger.Put(entry); err != nil {
			return err
		}
		if err := e.ledger.PutTotals(totals); err != nil {
			return err
		}
		receipt = &Receipt{
			ID:      e.newID(),
			Kind:    ReceiptWithdraw,
			Account: caller,
			Native:  quote.Native,
			Stable:  quote.Amount,
			Bonus:   new(uint256.Int),
			Fee:     quote.Fee,
			Balance: new(uint256.Int).Set(entry.Balance),
			Epoch:   current,
		}
		e.queue(events.LiquidityWithdraw{
			ReceiptID: receipt.ID,
			Account:   caller,
			Amount:    quote.Amount,
			Fee:       quote.Fee,
			Native:    quote.Native,
			Epoch:     current,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Transfer moves fUSD between two holders after settling both positions.
func (e *Engine) Transfer(from, to crypto.Address, amount *uint256.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var receipt *Receipt
	err := e.atomic("transfer", func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return ErrInvalidAmount
		}
		if from.IsZero() || to.IsZero() {
			return ErrInvalidAddress
		}
		current, err := e.currentEpoch()
		if err != nil {
			return err
		}
		cfg, err := e.params.RewardConfig()
		if err != nil {
			return err
		}
		totals, err := e.ledger.Totals()
		if err != nil {
			return err
		}
		sender, err := e.loadEntry(from, current)
		if err != nil {
			return err
		}
		if _, err := e.settle(sender, current, cfg, totals); err != nil {
			return err
		}
		if sender.Balance.Lt(amount) {
			return fmt.Errorf("%w: balance %s, transfer %s", ErrInsufficientFunds, sender.Balance.Dec(), amount.Dec())
		}
		if !from.Equal(to) {
			recipient, err := e.loadEntry(to, current)
			if err != nil {
				return err
			}
			if _, err := e.settle(recipient, current, cfg, totals); err != nil {
				return err
			}
			sender.Balance.Sub(sender.Balance, amount)
			if err := addTo(recipient.Balance, amount); err != nil {
				return err
			}
			if err := e.ledger.Put(recipient); err != nil {
				return err
			}
		}
		if err := e.ledger.Put(sender); err != nil {
			return err
		}
		if err := e.ledger.PutTotals(totals); err != nil {
			return err
		}
		receipt = &Receipt{
			ID:           e.newID(),
			Kind:         ReceiptTransfer,
			Account:      from,
			Counterparty: to,
			Native:       new(uint256.Int),
			Stable:       new(uint256.Int).Set(amount),
			Bonus:        new(uint256.Int),
			Fee:          new(uint256.Int),
			Balance:      new(uint256.Int).Set(sender.Balance),
			Epoch:        current,
		}
		e.queue(events.LiquidityTransfer{From: from, To: to, Amount: new(uint256.Int).Set(amount)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) accrueOwners(owners []crypto.Address, current uint64, cfg RewardConfig, totals *PoolTotals, result *BatchResult) error {
	for _, owner := range owners {
		entry, ok, err := e.ledger.Get(owner)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("liquidity: indexed account %s missing", owner)
		}
		last := entry.LastAccrualEpoch
		reward, err := e.settle(entry, current, cfg, totals)
		if err != nil {
			return err
		}
		result.Processed++
		if last == current {
			continue
		}
		if !reward.IsZero() {
			result.Accrued++
			result.Minted.Add(result.Minted, reward)
		}
		if err := e.ledger.Put(entry); err != nil {
			return err
		}
	}
	return e.ledger.PutTotals(totals)
}

func (e *Engine) runBatch(operation, cursor string, limit int, all bool) (BatchResult, error) {
	started := e.now()
	result := BatchResult{Minted: new(uint256.Int)}
	err := e.atomic(operation, func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		current, err := e.currentEpoch()
		if err != nil {
			return err
		}
		result.Epoch = current
		cfg, err := e.params.RewardConfig()
		if err != nil {
			return err
		}
		totals, err := e.ledger.Totals()
		if err != nil {
			return err
		}
		var owners []crypto.Address
		if all {
			owners, err = e.ledger.Owners()
		} else {
			owners, result.NextCursor, err = e.ledger.Page(cursor, limit)
		}
		if err != nil {
			return err
		}
		return e.accrueOwners(owners, current, cfg, totals, &result)
	})
	if err != nil {
		return BatchResult{}, err
	}
	took := e.now().Sub(started)
	e.telemetry.ObserveBatch(result.Epoch, result.Accrued, result.Minted.ToBig(), took)
	e.logger.Info("liquidity: rewards applied",
		slog.Uint64("epoch", result.Epoch),
		slog.Int("processed", result.Processed),
		slog.Int("accrued", result.Accrued),
		slog.String("minted", result.Minted.Dec()),
		slog.String("next_cursor", result.NextCursor),
		slog.Duration("took", took))
	return result, nil
}

// ApplyRewardsAll brings every ledger entry up to the current epoch in one
// atomic pass. The epoch is read once for the whole pass.
func (e *Engine) ApplyRewardsAll() (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runBatch("apply_rewards_all", "", 0, true)
}

// ApplyRewards accrues one page of at most limit entries starting at cursor.
// Each page commits independently; an empty NextCursor means the walk is
// complete.
func (e *Engine) ApplyRewards(cursor string, limit int) (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runBatch("apply_rewards", cursor, limit, false)
}

// Account returns the stored entry for addr without projecting pending epochs.
func (e *Engine) Account(addr crypto.Address) (*AccountEntry, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, false, ErrNilState
	}
	return e.ledger.Get(addr)
}

// Accounts lists one page of stored entries in ledger order.
func (e *Engine) Accounts(cursor string, limit int) ([]*AccountEntry, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, "", ErrNilState
	}
	owners, next, err := e.ledger.Page(cursor, limit)
	if err != nil {
		return nil, "", err
	}
	out := make([]*AccountEntry, 0, len(owners))
	for _, owner := range owners {
		entry, ok, err := e.ledger.Get(owner)
		if err != nil {
			return nil, "", err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, next, nil
}

// Totals reports the pool books, reading the locked collateral from the pool
// account balance.
func (e *Engine) Totals() (*PoolTotals, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, ErrNilState
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	totals.NativeLocked = new(uint256.Int)
	if e.bank != nil {
		locked, err := e.bank.Balance(e.poolAddress, e.nativeSymbol)
		if err != nil {
			return nil, err
		}
		totals.NativeLocked = locked
	}
	return totals, nil
}

// AccountCount reports how many holders the ledger has indexed.
func (e *Engine) AccountCount() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return 0, ErrNilState
	}
	return e.ledger.Count()
}

// CurrentEpoch exposes the clock reading used by the next operation.
func (e *Engine) CurrentEpoch() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentEpoch()
}

func (e *Engine) RewardConfig() (RewardConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return RewardConfig{}, ErrNilState
	}
	return e.params.RewardConfig()
}

func (e *Engine) FeeConfig() (FeeConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return FeeConfig{}, ErrNilState
	}
	return e.params.FeeConfig()
}

func (e *Engine) LimitConfig() (LimitConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return LimitConfig{}, ErrNilState
	}
	return e.params.LimitConfig()
}

// SetRewardConfig replaces the reward parameters wholesale. Pending epochs are
// not settled first; they accrue at the new rate on the next touch.
func (e *Engine) SetRewardConfig(cfg RewardConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic("set_reward", func() error { return e.putRewardConfig(cfg) })
}

func (e *Engine) SetFeeConfig(cfg FeeConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic("set_fee", func() error { return e.putFeeConfig(cfg) })
}

func (e *Engine) SetLimitConfig(cfg LimitConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic("set_limit", func() error { return e.putLimitConfig(cfg) })
}

// Initialize writes the three parameter records in one commit. prepare runs
// first inside the same commit so callers can stage their own genesis
// records; any failure leaves state untouched.
func (e *Engine) Initialize(reward RewardConfig, fee FeeConfig, limit LimitConfig, prepare func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic("initialize", func() error {
		if prepare != nil {
			if err := prepare(); err != nil {
				return err
			}
		}
		if err := e.putRewardConfig(reward); err != nil {
			return err
		}
		if err := e.putFeeConfig(fee); err != nil {
			return err
		}
		return e.putLimitConfig(limit)
	})
}

func (e *Engine) putRewardConfig(cfg RewardConfig) error {
	if err := e.params.SetRewardConfig(cfg); err != nil {
		return err
	}
	e.queue(events.LiquidityParams{Kind: "reward", Values: map[string]string{
		"instant":  cfg.Instant.String(),
		"epoch":    cfg.Epoch.String(),
		"epochMin": cfg.EpochMin.Dec(),
		"epochMax": cfg.EpochMax.Dec(),
	}})
	return nil
}

func (e *Engine) putFeeConfig(cfg FeeConfig) error {
	if err := e.params.SetFeeConfig(cfg); err != nil {
		return err
	}
	e.queue(events.LiquidityParams{Kind: "fee", Values: map[string]string{"fee": cfg.Fee.String()}})
	return nil
}

func (e *Engine) putLimitConfig(cfg LimitConfig) error {
	if err := e.params.SetLimitConfig(cfg); err != nil {
		return err
	}
	e.queue(events.LiquidityParams{Kind: "limit", Values: map[string]string{"limit": cfg.Limit.String()}})
	return nil
}
