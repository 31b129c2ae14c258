package main

import (
	"fmt"

	"github.com/axiomesh/council/core"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var gateCMD = &cli.Command{
	Name:  "gate",
	Usage: "Check whether an account can deposit or withdraw an amount",
	Subcommands: []*cli.Command{
		{
			Name:      "deposit",
			Usage:     "Check a deposit into the locking vault",
			ArgsUsage: "<account> <amount>",
			Action:    depositGate,
		},
		{
			Name:      "withdraw",
			Usage:     "Check a withdrawal from the locking vault",
			ArgsUsage: "<account> <amount>",
			Action:    withdrawGate,
		},
	},
}

func gateArgs(ctx *cli.Context) (string, string, error) {
	if ctx.NArg() != 2 {
		return "", "", fmt.Errorf("expected <account> <amount>, got %d arguments", ctx.NArg())
	}
	return ctx.Args().Get(0), ctx.Args().Get(1), nil
}

func depositGate(ctx *cli.Context) error {
	account, amount, err := gateArgs(ctx)
	if err != nil {
		return err
	}
	portal, err := oneShotPortal(ctx)
	if err != nil {
		return err
	}
	defer portal.Stop()

	view, err := portal.DepositGate(ctx.Context, account, amount)
	if err != nil {
		return err
	}
	fmt.Printf("balance:   %s\n", view.State.Balance)
	fmt.Printf("allowance: %s\n", view.State.Allowance)
	printGate(view.Gate)
	return nil
}

func withdrawGate(ctx *cli.Context) error {
	account, amount, err := gateArgs(ctx)
	if err != nil {
		return err
	}
	portal, err := oneShotPortal(ctx)
	if err != nil {
		return err
	}
	defer portal.Stop()

	view, err := portal.WithdrawGate(ctx.Context, account, amount)
	if err != nil {
		return err
	}
	fmt.Printf("deposited: %s\n", view.Deposited)
	printGate(view.Gate)
	return nil
}

func printGate(res core.GateResult) {
	if res.Enabled {
		color.New(color.FgGreen).Println("enabled")
		return
	}
	color.New(color.FgRed).Printf("disabled: %s (%s)\n", res.Reason.Message(), res.Reason)
}
