package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"tesoreria/internal/core"
	"tesoreria/internal/export"
	"tesoreria/internal/report"
	"tesoreria/internal/services"
	"tesoreria/internal/settlement"
)

// listCmd prints the ledger, optionally restricted to one date.
type listCmd struct {
	app  *App
	date string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list movements" }
func (*listCmd) Usage() string {
	return `caja list [-d <date>]

  Lists every movement, most recent first, or only those of one date.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "only list movements of this date (YYYY-MM-DD, today, yesterday)")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.app.run(ctx, func(svc *services.LedgerService) error {
		movements := svc.Movements()
		if on != nil {
			movements = svc.Ledger().OnDate(*on)
		}
		if len(movements) == 0 {
			fmt.Fprintln(c.app.Out, "No movements.")
			return nil
		}
		tw := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "ID\tDate\tKind\tAmount\tDescription\t")
		for _, m := range movements {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				m.ID, m.Date, m.Kind, export.FormatMoney(m.Amount, svc.Currency()), m.Description)
		}
		return tw.Flush()
	})
}

// addCmd records a single movement outside of a closing.
type addCmd struct {
	app  *App
	kind string
	date string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add an income or expense" }
func (*addCmd) Usage() string {
	return `caja add [-kind income|expense] [-d <date>] <amount> <description...>

  Records one movement. Amounts accept a decimal comma or point.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", string(core.Expense), "income or expense")
	f.StringVar(&c.date, "d", "", "date of the movement, today by default")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		fmt.Fprint(c.app.Err, c.Usage())
		return subcommands.ExitUsageError
	}
	kind, err := core.ParseKind(c.kind)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	on, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}

	amount, desc := f.Arg(0), strings.Join(f.Args()[1:], " ")
	return c.app.run(ctx, func(svc *services.LedgerService) error {
		m, err := svc.QuickAdd(ctx, kind, on, desc, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Added %s %s on %s (%s)\n",
			m.Kind, export.FormatMoney(m.Amount, svc.Currency()), m.Date, m.ID)
		return nil
	})
}

// removeCmd deletes movements by id.
type removeCmd struct {
	app *App
}

func (*removeCmd) Name() string           { return "remove" }
func (*removeCmd) Synopsis() string       { return "remove movements by id" }
func (*removeCmd) SetFlags(*flag.FlagSet) {}
func (*removeCmd) Usage() string {
	return `caja remove <id>...

  Removes the movements with the given ids.
`
}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(c.app.Err, c.Usage())
		return subcommands.ExitUsageError
	}
	return c.app.run(ctx, func(svc *services.LedgerService) error {
		var errs []error
		for _, id := range f.Args() {
			if err := svc.Remove(ctx, id); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(c.app.Out, "Removed %s\n", id)
		}
		return errors.Join(errs...)
	})
}

// balanceCmd prints the all-time totals.
type balanceCmd struct {
	app *App
}

func (*balanceCmd) Name() string           { return "balance" }
func (*balanceCmd) Synopsis() string       { return "show the all-time balance" }
func (*balanceCmd) SetFlags(*flag.FlagSet) {}
func (*balanceCmd) Usage() string {
	return `caja balance

  Prints all-time income, expense and balance.
`
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *services.LedgerService) error {
		t := svc.Totals()
		cur := svc.Currency()
		fmt.Fprintf(c.app.Out, "Income:  %s\nExpense: %s\nBalance: %s\n",
			export.FormatMoney(t.Income, cur),
			export.FormatMoney(t.Expense, cur),
			export.FormatMoney(t.Balance, cur))
		return nil
	})
}

// entries collects repeated "description=amount" flags.
type entries []string

func (e *entries) String() string     { return strings.Join(*e, ",") }
func (e *entries) Set(v string) error { *e = append(*e, v); return nil }

func splitEntry(v string) (desc, amount string, err error) {
	i := strings.LastIndex(v, "=")
	if i < 0 {
		return "", "", fmt.Errorf("entry %q: want description=amount", v)
	}
	return v[:i], v[i+1:], nil
}

// settleCmd runs a daily cash closing.
type settleCmd struct {
	app      *App
	date     string
	incomes  entries
	expenses entries
	clear    bool
	yes      bool
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "close the cash box for a date" }
func (*settleCmd) Usage() string {
	return `caja settle [-d <date>] [-clear] [-y] [-income desc=amount]... [-expense desc=amount]...

  Stages the movements already recorded for the date plus the given ones,
  asks for confirmation and replaces the whole day with them. With -clear
  the recorded movements are dropped first; confirming an empty closing
  clears the day.
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "date to close, today by default")
	f.Var(&c.incomes, "income", "income to stage as description=amount (repeatable)")
	f.Var(&c.expenses, "expense", "expense to stage as description=amount (repeatable)")
	f.BoolVar(&c.clear, "clear", false, "drop the movements already recorded for the date")
	f.BoolVar(&c.yes, "y", false, "confirm without asking")
}

func (c *settleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := dateOrToday(c.date)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}

	return c.app.run(ctx, func(svc *services.LedgerService) error {
		s := svc.Session()
		s.SetDate(on)
		if c.clear {
			for _, m := range append(s.Incomes(), s.Expenses()...) {
				s.Unstage(m.ID)
			}
		}
		if err := stageAll(s, core.Income, c.incomes); err != nil {
			return err
		}
		if err := stageAll(s, core.Expense, c.expenses); err != nil {
			return err
		}

		var p settlement.Prompter = settlement.Answer(true)
		if !c.yes {
			p = &LinePrompter{In: c.app.In, Out: c.app.Out}
		}
		outcome, err := svc.Settle(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.app.Out, outcome.Notice().Message)
		if outcome.Saved() {
			fmt.Fprintf(c.app.Out, "Balance: %s\n", export.FormatMoney(svc.Balance(), svc.Currency()))
		}
		return nil
	})
}

func stageAll(s *settlement.Session, kind core.Kind, values entries) error {
	for _, v := range values {
		desc, amount, err := splitEntry(v)
		if err != nil {
			return err
		}
		s.SetDraft(kind, desc, amount)
		if _, err := s.StageDraft(kind); err != nil {
			return fmt.Errorf("stage %s %q: %w", kind, v, err)
		}
	}
	return nil
}

// LinePrompter asks for confirmation on a terminal.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (lp *LinePrompter) Confirm(_ context.Context, p settlement.Prompt) (bool, error) {
	fmt.Fprintf(lp.Out, "%s\n%s\n[y/N] ", p.Title, p.Message)
	line, err := bufio.NewReader(lp.In).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	}
	return false, nil
}

// rangeFlags are the report range bounds shared by report and export.
type rangeFlags struct {
	from string
	to   string
}

func (r *rangeFlags) set(f *flag.FlagSet) {
	f.StringVar(&r.from, "from", "", "first date of the report range")
	f.StringVar(&r.to, "to", "", "last date of the report range")
}

// apply sets the range on the view and warns when the end was clamped.
func (r *rangeFlags) apply(app *App, v *report.View) (report.Report, error) {
	start, err := parseDate(r.from)
	if err != nil {
		return report.Report{}, fmt.Errorf("from: %w", err)
	}
	end, err := parseDate(r.to)
	if err != nil {
		return report.Report{}, fmt.Errorf("to: %w", err)
	}
	if start == nil && end == nil {
		return v.Report(), nil
	}
	rep, clamped := v.SetRange(start, end)
	if clamped {
		fmt.Fprintf(app.Err, "Warning: %v, the range was narrowed to %s\n", core.ErrRangeInverted, start)
	}
	return rep, nil
}

// reportCmd renders the cash report on the terminal.
type reportCmd struct {
	app   *App
	rng   rangeFlags
	plain bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show the daily cash report" }
func (*reportCmd) Usage() string {
	return `caja report [-from <date>] [-to <date>] [-plain]

  Shows one section per day with opening and closing balances, most recent
  first.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.rng.set(f)
	f.BoolVar(&c.plain, "plain", false, "print raw markdown")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(svc *services.LedgerService) error {
		if _, err := c.rng.apply(c.app, svc.View()); err != nil {
			return err
		}
		e, err := svc.Export(export.FormatMarkdown)
		if errors.Is(err, export.ErrEmptyReport) {
			fmt.Fprintln(c.app.Out, "No movements to report.")
			return nil
		}
		if err != nil {
			return err
		}
		if c.plain {
			_, err = c.app.Out.Write(e.Data)
			return err
		}
		c.app.printMarkdown(string(e.Data))
		return nil
	})
}

// exportCmd writes the report as a document.
type exportCmd struct {
	app    *App
	rng    rangeFlags
	format string
	out    string
	gcs    bool
	stdout bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the cash report" }
func (*exportCmd) Usage() string {
	return `caja export [-format md|html|csv] [-from <date>] [-to <date>] [-out <dir> | -gcs | -stdout]

  Writes the report to a local directory, the configured Cloud Storage
  bucket or standard output.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.rng.set(f)
	f.StringVar(&c.format, "format", "md", "md, html or csv")
	f.StringVar(&c.out, "out", "", "directory to write to, EXPORT_DIR by default")
	f.BoolVar(&c.gcs, "gcs", false, "upload to EXPORT_BUCKET")
	f.BoolVar(&c.stdout, "stdout", false, "write to standard output")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := export.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.gcs && c.app.Config.ExportBucket == "" {
		fmt.Fprintln(c.app.Err, "Error: EXPORT_BUCKET is not set")
		return subcommands.ExitUsageError
	}

	return c.app.run(ctx, func(svc *services.LedgerService) error {
		if _, err := c.rng.apply(c.app, svc.View()); err != nil {
			return err
		}
		if c.stdout {
			e, err := svc.Export(format)
			if err != nil {
				return err
			}
			_, err = c.app.Out.Write(e.Data)
			return err
		}

		var sink export.Sink
		if c.gcs {
			gcs, err := export.NewGCSSink(ctx, c.app.Config.ExportBucket, "reports")
			if err != nil {
				return err
			}
			defer gcs.Close()
			sink = gcs
		} else {
			dir := c.out
			if dir == "" {
				dir = c.app.Config.ExportDir
			}
			if dir == "" {
				dir, _ = os.Getwd()
			}
			sink = export.FileSink{Dir: dir}
		}

		loc, err := svc.ExportTo(ctx, sink, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Exported to %s\n", loc)
		return nil
	})
}
