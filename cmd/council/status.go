package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/axiomesh/council/core"
	"github.com/axiomesh/council/repo"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"
)

var (
	activeStyle   = color.New(color.FgYellow)
	passedStyle   = color.New(color.FgGreen)
	failedStyle   = color.New(color.FgRed)
	executedStyle = color.New(color.FgCyan)
	unknownStyle  = color.New(color.Faint)
)

var statusCMD = &cli.Command{
	Name:  "status",
	Usage: "Print the status of every curated proposal once and exit",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "tab",
			Usage: "Only list proposals of a tab: active or past",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print JSON instead of a table",
		},
	},
	Action: status,
}

// oneShotPortal builds a portal that reads chain and snapshot state without touching the
// daemon's leveldb, so it can run next to a started daemon.
func oneShotPortal(ctx *cli.Context) (*core.Portal, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}
	client, err := dial(ctx.Context, r.Config.DialUrl)
	if err != nil {
		return nil, err
	}
	return core.NewPortal(ctx.Context, r.Config, client, core.WithStorage(core.NewMemKV()))
}

func status(ctx *cli.Context) error {
	portal, err := oneShotPortal(ctx)
	if err != nil {
		return err
	}
	defer portal.Stop()

	if err := portal.RefreshSnapshots(ctx.Context); err != nil {
		fmt.Fprintf(os.Stderr, "snapshot metadata unavailable: %s\n", err)
	}
	if err := portal.Refresh(ctx.Context); err != nil {
		return err
	}

	views := portal.Views()
	if tabName := ctx.String("tab"); tabName != "" {
		tab, ok := core.ParseTab(tabName)
		if !ok {
			return fmt.Errorf("unknown tab %q", tabName)
		}
		views = portal.Proposals(tab)
	}

	if ctx.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	renderProposals(views, portal.BlockNumber())
	return nil
}

func renderProposals(views []core.ProposalView, block uint64) {
	if len(views) == 0 {
		fmt.Println("No proposals found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Proposals at block %d", block)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Yes", "No", "Abstain", "Quorum", "Outlook"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 48},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, v := range views {
		title := ""
		if v.Snapshot != nil {
			title = v.Snapshot.Title
		}
		yes, no, maybe := "-", "-", "-"
		if v.Tally != nil {
			yes = core.FormatAmount(v.Tally.Yes, 2)
			no = core.FormatAmount(v.Tally.No, 2)
			maybe = core.FormatAmount(v.Tally.Maybe, 2)
		}
		label := v.Label
		if v.Executable {
			label += " (executable)"
		}
		t.AppendRow(table.Row{
			v.Proposal.ProposalID,
			title,
			statusStyle(v.Status).Sprint(label),
			yes,
			no,
			maybe,
			core.FormatAmount(v.Proposal.Quorum, 2),
			v.Outlook.String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", strconv.Itoa(len(views))})
	t.Render()
}

func statusStyle(s core.ProposalStatus) *color.Color {
	switch s {
	case core.StatusActive:
		return activeStyle
	case core.StatusPassed:
		return passedStyle
	case core.StatusFailed:
		return failedStyle
	case core.StatusExecuted:
		return executedStyle
	default:
		return unknownStyle
	}
}
