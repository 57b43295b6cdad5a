package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"fusdpool/config"
	"fusdpool/core"
	"fusdpool/core/events"
	"fusdpool/core/types"
	"fusdpool/crypto"
	"fusdpool/native/liquidity"
	"fusdpool/storage"
)

type cli struct {
	name       string
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	output     string
	recorder   *events.Recorder
}

type envelope struct {
	Result any            `json:"result" yaml:"result"`
	Events []*types.Event `json:"events,omitempty" yaml:"events,omitempty"`
}

func (c *cli) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&c.configPath, "config", defaultConfig, "Path to the pool config file")
	fs.StringVar(&c.output, "output", "json", "Output format: json or yaml")
	return fs
}

func (c *cli) open() (*core.Node, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	// Genesis parameter events are not part of the command output.
	node, err := core.NewNode(db, cfg, events.NoopEmitter{}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.recorder = &events.Recorder{}
	node.Engine().SetEmitter(c.recorder)
	return node, nil
}

func (c *cli) print(result any) error {
	out := envelope{Result: result}
	if c.recorder != nil {
		out.Events = c.recorder.Typed()
	}
	switch strings.ToLower(strings.TrimSpace(c.output)) {
	case "", "json":
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(c.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}
}

// withNode parses the flags, opens the pool and runs fn against it.
func (c *cli) withNode(fs *flag.FlagSet, args []string, fn func(*core.Node) (any, error)) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	node, err := c.open()
	if err != nil {
		return err
	}
	defer node.Close()
	result, err := fn(node)
	if err != nil {
		return err
	}
	return c.print(result)
}

func parseAmount(name, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q", name, raw)
	}
	return amount, nil
}

func parseAccount(name, raw string) (crypto.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return crypto.Address{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return addr, nil
}

func cmdInit(c *cli, args []string) error {
	fs := c.flags()
	force := fs.Bool("force", false, "Overwrite an existing config file")
	native := fs.String("native", "", "Native asset symbol")
	dataDir := fs.String("data-dir", "", "Directory holding the pool database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(c.configPath); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", c.configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	cfg := config.Default()
	if symbol := strings.ToUpper(strings.TrimSpace(*native)); symbol != "" {
		cfg.NativeSymbol = symbol
		cfg.NativeName = symbol
	}
	if dir := strings.TrimSpace(*dataDir); dir != "" {
		cfg.DataDir = dir
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	if err := config.Save(c.configPath, cfg); err != nil {
		return err
	}
	return c.print(map[string]string{"config": c.configPath, "dataDir": cfg.DataDir, "native": cfg.NativeSymbol})
}

func paramsOf(engine *liquidity.Engine) (paramsOutput, error) {
	reward, err := engine.RewardConfig()
	if err != nil {
		return paramsOutput{}, err
	}
	fee, err := engine.FeeConfig()
	if err != nil {
		return paramsOutput{}, err
	}
	limit, err := engine.LimitConfig()
	if err != nil {
		return paramsOutput{}, err
	}
	return newParamsOutput(reward, fee, limit), nil
}

func cmdParams(c *cli, args []string) error {
	return c.withNode(c.flags(), args, func(node *core.Node) (any, error) {
		return paramsOf(node.Engine())
	})
}

func cmdSetReward(c *cli, args []string) error {
	fs := c.flags()
	instant := fs.String("instant", "", "Instant deposit bonus rate (n/d)")
	epoch := fs.String("epoch", "", "Per-epoch reward rate (n/d)")
	floor := fs.String("min", "", "Per-epoch reward floor, 0 for none")
	ceiling := fs.String("max", "", "Per-epoch reward ceiling, 0 for none")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		engine := node.Engine()
		current, err := engine.RewardConfig()
		if err != nil {
			return nil, err
		}
		cfg := current
		if strings.TrimSpace(*instant) != "" {
			if cfg.Instant, err = liquidity.ParseRate(*instant); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(*epoch) != "" {
			if cfg.Epoch, err = liquidity.ParseRate(*epoch); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(*floor) != "" {
			value, err := parseAmount("min", *floor)
			if err != nil {
				return nil, err
			}
			cfg.EpochMin.Set(value)
		}
		if strings.TrimSpace(*ceiling) != "" {
			value, err := parseAmount("max", *ceiling)
			if err != nil {
				return nil, err
			}
			cfg.EpochMax.Set(value)
		}
		if err := engine.SetRewardConfig(cfg); err != nil {
			return nil, err
		}
		return paramsOf(engine)
	})
}

func cmdSetFee(c *cli, args []string) error {
	fs := c.flags()
	fee := fs.String("fee", "", "Withdrawal fee rate (n/d)")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		rate, err := liquidity.ParseRate(*fee)
		if err != nil {
			return nil, err
		}
		if err := node.Engine().SetFeeConfig(liquidity.FeeConfig{Fee: rate}); err != nil {
			return nil, err
		}
		return paramsOf(node.Engine())
	})
}

func cmdSetLimit(c *cli, args []string) error {
	fs := c.flags()
	limit := fs.String("limit", "", "Withdrawal limit rate (n/d)")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		rate, err := liquidity.ParseRate(*limit)
		if err != nil {
			return nil, err
		}
		if err := node.Engine().SetLimitConfig(liquidity.LimitConfig{Limit: rate}); err != nil {
			return nil, err
		}
		return paramsOf(node.Engine())
	})
}

func cmdFund(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Account to fund")
	amount := fs.String("amount", "", "Native amount to mint")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		if err := node.Fund(addr, value); err != nil {
			return nil, err
		}
		balance, err := node.NativeBalance(addr)
		if err != nil {
			return nil, err
		}
		return balanceOutput{Account: addr.String(), Native: balance.Dec()}, nil
	})
}

func cmdBalance(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Account to inspect")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		balance, err := node.NativeBalance(addr)
		if err != nil {
			return nil, err
		}
		return balanceOutput{Account: addr.String(), Native: balance.Dec()}, nil
	})
}

func cmdQuoteDeposit(c *cli, args []string) error {
	fs := c.flags()
	amount := fs.String("amount", "", "Native amount to deposit")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		quote, err := node.Engine().DepositInfo(value)
		if err != nil {
			return nil, err
		}
		return newDepositQuoteOutput(quote), nil
	})
}

func cmdQuoteWithdraw(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Withdrawing account")
	amount := fs.String("amount", "", "fUSD amount to redeem")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		quote, err := node.Engine().WithdrawInfo(addr, value)
		if err != nil {
			return nil, err
		}
		return newWithdrawQuoteOutput(quote), nil
	})
}

func cmdDeposit(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Depositing account")
	amount := fs.String("amount", "", "Native amount to deposit")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		receipt, err := node.Engine().Deposit(addr, value)
		if err != nil {
			return nil, err
		}
		return newReceiptOutput(receipt), nil
	})
}

func cmdWithdraw(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Withdrawing account")
	amount := fs.String("amount", "", "fUSD amount to redeem")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		receipt, err := node.Engine().Withdraw(addr, value)
		if err != nil {
			return nil, err
		}
		return newReceiptOutput(receipt), nil
	})
}

func cmdTransfer(c *cli, args []string) error {
	fs := c.flags()
	from := fs.String("from", "", "Sending account")
	to := fs.String("to", "", "Receiving account")
	amount := fs.String("amount", "", "fUSD amount to move")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		src, err := parseAccount("from", *from)
		if err != nil {
			return nil, err
		}
		dst, err := parseAccount("to", *to)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount("amount", *amount)
		if err != nil {
			return nil, err
		}
		receipt, err := node.Engine().Transfer(src, dst, value)
		if err != nil {
			return nil, err
		}
		return newReceiptOutput(receipt), nil
	})
}

func cmdApplyRewards(c *cli, args []string) error {
	fs := c.flags()
	cursor := fs.String("cursor", "", "Resume cursor from a previous page")
	limit := fs.Int("limit", 0, "Page size, 0 for the default")
	all := fs.Bool("all", false, "Accrue every entry in one atomic pass")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		if *limit < 0 {
			return nil, fmt.Errorf("--limit must not be negative")
		}
		var (
			result liquidity.BatchResult
			err    error
		)
		if *all {
			result, err = node.Engine().ApplyRewardsAll()
		} else {
			result, err = node.Engine().ApplyRewards(*cursor, *limit)
		}
		if err != nil {
			return nil, err
		}
		return newBatchOutput(result), nil
	})
}

func cmdAccount(c *cli, args []string) error {
	fs := c.flags()
	account := fs.String("account", "", "Account to inspect")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		addr, err := parseAccount("account", *account)
		if err != nil {
			return nil, err
		}
		entry, ok, err := node.Engine().Account(addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("account %s not found", addr)
		}
		return newAccountOutput(entry), nil
	})
}

func cmdAccounts(c *cli, args []string) error {
	fs := c.flags()
	cursor := fs.String("cursor", "", "Resume cursor from a previous page")
	limit := fs.Int("limit", 0, "Page size, 0 for the default")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		entries, next, err := node.Engine().Accounts(*cursor, *limit)
		if err != nil {
			return nil, err
		}
		page := accountPageOutput{Accounts: make([]accountOutput, 0, len(entries)), NextCursor: next}
		for _, entry := range entries {
			page.Accounts = append(page.Accounts, newAccountOutput(entry))
		}
		return page, nil
	})
}

func cmdTotals(c *cli, args []string) error {
	return c.withNode(c.flags(), args, func(node *core.Node) (any, error) {
		totals, err := node.Engine().Totals()
		if err != nil {
			return nil, err
		}
		return newTotalsOutput(totals), nil
	})
}

func cmdEpoch(c *cli, args []string) error {
	return c.withNode(c.flags(), args, func(node *core.Node) (any, error) {
		current, err := node.Engine().CurrentEpoch()
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"epoch": current}, nil
	})
}

func cmdAdvance(c *cli, args []string) error {
	fs := c.flags()
	count := fs.Uint64("count", 1, "Number of epochs to advance")
	return c.withNode(fs, args, func(node *core.Node) (any, error) {
		next, err := node.AdvanceEpoch(*count)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"epoch": next}, nil
	})
}
