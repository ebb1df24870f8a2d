package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"conti/internal/core"
	"conti/internal/split"
)

type splitFlags struct {
	Method      string
	Total       string
	Payer       string
	RemainderTo string
	Currency    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &splitFlags{}

	cmd := &cobra.Command{
		Use:   "conti-split [flags] participant[=value]...",
		Short: "Split an expense between participants",
		Long: `Split a total between participants and print every share.

With --method equal the values are ignored. For custom they are amounts,
for percentage 0-100 and for shares whole-number weights.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(out, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.Method, "method", "m", string(split.Equal), "Split method (equal, custom, percentage, shares)")
	cmd.Flags().StringVarP(&flags.Total, "total", "t", "", "Total amount, e.g. 100 or 12,50")
	cmd.Flags().StringVarP(&flags.Payer, "payer", "p", "", "Participant who paid; other shares are shown as owed to them")
	cmd.Flags().StringVar(&flags.RemainderTo, "remainder-to", "", "Participant who receives rounding residue first")
	cmd.Flags().StringVarP(&flags.Currency, "currency", "c", "", "Currency code used for display")
	_ = cmd.MarkFlagRequired("total")

	cmd.AddCommand(newSettleCmd(out))
	return cmd
}

func runSplit(out io.Writer, flags *splitFlags, args []string) error {
	total, err := parseTotal(flags.Total)
	if err != nil {
		return err
	}
	participants, err := parseParticipants(args)
	if err != nil {
		return err
	}
	res, err := split.Compute(split.Input{
		Total:        total,
		Method:       split.Method(flags.Method),
		Participants: participants,
		RemainderTo:  flags.RemainderTo,
	})
	if err != nil {
		return describe(err)
	}
	if flags.Payer != "" {
		if _, ok := res.Amounts()[flags.Payer]; !ok {
			return fmt.Errorf("payer %q is not a participant", flags.Payer)
		}
	}
	return renderSplit(out, res, flags.Payer, core.DefaultCurrencyTable(flags.Currency))
}

func renderSplit(out io.Writer, res split.Result, payer string, currencies *core.CurrencyTable) error {
	cur := currencies.Default()
	headers := []string{"Participant", "Share"}
	if payer != "" {
		headers = append(headers, "Owes "+payer)
	}
	data := pterm.TableData{headers}
	for _, sh := range res.Shares {
		row := []string{sh.ParticipantID, currencies.Format(sh.Amount, cur)}
		if payer != "" {
			owed := sh.Amount
			if sh.ParticipantID == payer {
				owed = core.Money{}
			}
			row = append(row, currencies.Format(owed, cur))
		}
		data = append(data, row)
	}
	fmt.Fprintf(out, "%s split of %s\n", res.Method, currencies.Format(res.Total, cur))
	return renderTable(out, data)
}

func newSettleCmd(out io.Writer) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "settle user=net...",
		Short: "Print the transfers that settle a set of net balances",
		Long: `Positive balances are owed money, negative balances owe money.
The balances must add up to zero.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			balances, err := parseBalances(args)
			if err != nil {
				return err
			}
			return renderTransfers(out, split.SettleUp(balances), core.DefaultCurrencyTable(currency))
		},
	}
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "Currency code used for display")
	return cmd
}

func renderTransfers(out io.Writer, transfers []split.Transfer, currencies *core.CurrencyTable) error {
	if len(transfers) == 0 {
		fmt.Fprintln(out, "Everyone is settled up")
		return nil
	}
	data := pterm.TableData{{"From", "To", "Amount"}}
	for _, t := range transfers {
		data = append(data, []string{t.From, t.To, currencies.Format(t.Amount, currencies.Default())})
	}
	return renderTable(out, data)
}

// describe turns split validation failures into a CLI message.
func describe(err error) error {
	var ve *split.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	if ve.Discrepancy.IsZero() {
		return fmt.Errorf("%s: %v", ve.Field, ve.Reason)
	}
	return fmt.Errorf("%s: %v (off by %s)", ve.Field, ve.Reason, ve.Discrepancy.StringFixed(2))
}


func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}
