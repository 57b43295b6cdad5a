package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"fusdpool/config"
	"fusdpool/core/epoch"
	"fusdpool/core/events"
	"fusdpool/core/state"
	"fusdpool/crypto"
	"fusdpool/native/bank"
	nativecommon "fusdpool/native/common"
	"fusdpool/native/liquidity"
	"fusdpool/storage"
)

var genesisKey = []byte("node/genesis")

// ErrManualClockRequired is returned when an operator tries to move a clock
// that derives its epoch from wall-clock time.
var ErrManualClockRequired = errors.New("node: epoch source is not manual")

type genesisRecord struct {
	NativeSymbol string
	Version      uint64
}

// Node is the central controller, wiring all pool components together.
type Node struct {
	db     storage.Database
	state  *state.Manager
	bank   *bank.Bank
	clock  epoch.Clock
	engine *liquidity.Engine
	logger *slog.Logger
}

// NewNode assembles the pool over db. The first open writes the native token
// registration and the initial pool parameters from cfg; later opens keep
// whatever parameters are stored.
func NewNode(db storage.Database, cfg *config.Config, emitter events.Emitter, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("node: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	mgr := state.NewManager(db)
	clockCfg, err := cfg.EpochClock()
	if err != nil {
		return nil, err
	}
	clock, err := epoch.New(clockCfg, mgr)
	if err != nil {
		return nil, err
	}
	b := bank.New(mgr)

	engine := liquidity.NewEngine(cfg.NativeSymbol, liquidity.ModuleAddress())
	engine.SetState(mgr)
	engine.SetBank(b)
	engine.SetClock(clock)
	engine.SetEmitter(emitter)
	engine.SetLogger(logger)
	engine.SetPauses(nativecommon.Pauses(cfg.Pauses))
	prices, err := cfg.OraclePrices()
	if err != nil {
		return nil, err
	}
	if prices != nil {
		engine.SetOracle(liquidity.NewStaticOracle(prices))
	}

	n := &Node{db: db, state: mgr, bank: b, clock: clock, engine: engine, logger: logger}
	if err := n.ensureGenesis(cfg); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) ensureGenesis(cfg *config.Config) error {
	var record genesisRecord
	ok, err := n.state.KVGet(genesisKey, &record)
	if err != nil {
		return err
	}
	if ok {
		if record.NativeSymbol != cfg.NativeSymbol {
			return fmt.Errorf("node: data dir was initialised for %s, config names %s", record.NativeSymbol, cfg.NativeSymbol)
		}
		return nil
	}
	params, err := cfg.PoolParams()
	if err != nil {
		return err
	}
	// Token registration, marker and parameters land in a single commit.
	err = n.engine.Initialize(params.Reward, params.Fee, params.Limit, func() error {
		if !n.state.TokenExists(cfg.NativeSymbol) {
			if err := n.state.RegisterToken(cfg.NativeSymbol, cfg.NativeName, cfg.NativeDecimals); err != nil {
				return err
			}
		}
		return n.state.KVPut(genesisKey, genesisRecord{NativeSymbol: cfg.NativeSymbol, Version: 1})
	})
	if err != nil {
		return fmt.Errorf("node: write genesis: %w", err)
	}
	n.logger.Info("node: pool initialised",
		slog.String("native", cfg.NativeSymbol),
		slog.String("pool", n.engine.PoolAddress().String()))
	return nil
}

// Engine exposes the liquidity engine.
func (n *Node) Engine() *liquidity.Engine { return n.engine }

// Clock exposes the epoch clock.
func (n *Node) Clock() epoch.Clock { return n.clock }

// NativeBalance reports the native token balance of addr.
func (n *Node) NativeBalance(addr crypto.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := n.engine.Exclusive(func() error {
		var err error
		balance, err = n.bank.Balance(addr, n.engine.NativeSymbol())
		return err
	})
	return balance, err
}

// Fund mints native tokens to addr. It is an operator tool for development
// networks and tests.
func (n *Node) Fund(addr crypto.Address, amount *uint256.Int) error {
	return n.engine.Exclusive(func() error {
		snap := n.state.Snapshot()
		if err := n.bank.Mint(addr, n.engine.NativeSymbol(), amount); err != nil {
			n.state.RevertToSnapshot(snap)
			return err
		}
		return n.state.Commit()
	})
}

// AdvanceEpoch moves a manual clock forward by count epochs.
func (n *Node) AdvanceEpoch(count uint64) (uint64, error) {
	manual, ok := n.clock.(*epoch.ManualClock)
	if !ok {
		return 0, ErrManualClockRequired
	}
	var next uint64
	err := n.engine.Exclusive(func() error {
		advanced, err := manual.Advance(count)
		if err != nil {
			n.state.Discard()
			return err
		}
		if err := n.state.Commit(); err != nil {
			return err
		}
		next = advanced
		return nil
	})
	return next, err
}

// Close releases the database.
func (n *Node) Close() {
	n.db.Close()
}
