package main

import (
	"fmt"
	"io"
	"os"
	"sort"
)

const defaultConfig = "./config.toml"

type command struct {
	summary string
	run     func(c *cli, args []string) error
}

var commands = map[string]command{
	"init":           {"write a default config file", cmdInit},
	"params":         {"show pool parameters", cmdParams},
	"set-reward":     {"replace the reward parameters", cmdSetReward},
	"set-fee":        {"replace the withdrawal fee", cmdSetFee},
	"set-limit":      {"replace the withdrawal limit", cmdSetLimit},
	"fund":           {"mint native tokens to an account", cmdFund},
	"balance":        {"show the native balance of an account", cmdBalance},
	"quote-deposit":  {"preview a deposit", cmdQuoteDeposit},
	"quote-withdraw": {"preview a withdrawal", cmdQuoteWithdraw},
	"deposit":        {"deposit native tokens for fUSD", cmdDeposit},
	"withdraw":       {"redeem fUSD for native tokens", cmdWithdraw},
	"transfer":       {"move fUSD between accounts", cmdTransfer},
	"apply-rewards":  {"accrue pending epochs", cmdApplyRewards},
	"account":        {"show one ledger entry", cmdAccount},
	"accounts":       {"list ledger entries", cmdAccounts},
	"totals":         {"show the pool books", cmdTotals},
	"epoch":          {"show the current epoch", cmdEpoch},
	"advance":        {"advance a manual epoch clock", cmdAdvance},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(stderr)
		return 1
	}
	c := &cli{name: args[0], stdout: stdout, stderr: stderr}
	if err := cmd.run(c, args[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fusdctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].summary)
	}
}
