package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"tesoreria/internal/core"
	"tesoreria/internal/report"
)

// Markdown writes the detailed report: an executive summary followed by one
// section per day, most recent first.
func Markdown(w io.Writer, doc Document) error {
	if doc.Report.Empty() {
		return ErrEmptyReport
	}
	bw := bufio.NewWriter(w)
	cur := doc.Currency
	fm := func(m core.Money) string { return FormatMoney(m, cur) }

	title := doc.Title
	if title == "" {
		title = "Cash report"
	}
	fmt.Fprintf(bw, "# %s\n\n", title)
	fmt.Fprintf(bw, "Period: %s\n\n", periodLabel(doc.Report))

	sum := doc.Report.Summary
	fmt.Fprintf(bw, "## Summary\n\n")
	fmt.Fprintf(bw, "| | |\n|---|---:|\n")
	fmt.Fprintf(bw, "| Days reported | %d |\n", sum.Days)
	fmt.Fprintf(bw, "| Total income | %s |\n", fm(sum.Income))
	fmt.Fprintf(bw, "| Total expense | %s |\n", fm(sum.Expense))
	fmt.Fprintf(bw, "| Final balance | %s |\n\n", fm(sum.FinalBalance))

	fmt.Fprintf(bw, "## Historical totals\n\n")
	fmt.Fprintf(bw, "| | |\n|---|---:|\n")
	fmt.Fprintf(bw, "| Income | %s |\n", fm(doc.Totals.Income))
	fmt.Fprintf(bw, "| Expense | %s |\n", fm(doc.Totals.Expense))
	fmt.Fprintf(bw, "| Balance | %s |\n\n", fm(doc.Totals.Balance))

	fmt.Fprintf(bw, "## Days\n\n")
	for _, d := range doc.Report.Days {
		fmt.Fprintf(bw, "### %s\n\n", d.Date)
		fmt.Fprintf(bw, "| Opening | Income | Expense | Net | Closing |\n")
		fmt.Fprintf(bw, "|---:|---:|---:|---:|---:|\n")
		fmt.Fprintf(bw, "| %s | %s | %s | %s | %s |\n\n",
			fm(d.Opening), fm(d.Income), fm(d.Expense), fm(d.Net), fm(d.Closing))
		writeMovements(bw, "Incomes", d.Incomes, fm)
		writeMovements(bw, "Expenses", d.Expenses, fm)
	}
	return bw.Flush()
}

func writeMovements(w io.Writer, heading string, ms []core.Movement, fm func(core.Money) string) {
	if len(ms) == 0 {
		return
	}
	fmt.Fprintf(w, "**%s**\n\n", heading)
	for _, m := range ms {
		fmt.Fprintf(w, "- %s: %s\n", escapeMarkdown(m.Description), fm(m.Amount))
	}
	fmt.Fprintln(w)
}

func periodLabel(rep report.Report) string {
	if len(rep.Days) == 0 {
		return "no movements"
	}
	from := rep.Days[len(rep.Days)-1].Date
	to := rep.Days[0].Date
	if rep.Range.Enabled && rep.Range.Start != nil {
		from = *rep.Range.Start
	}
	if rep.Range.Enabled && rep.Range.End != nil {
		to = *rep.Range.End
	}
	if from.Equal(to) {
		return from.String()
	}
	return from.String() + " to " + to.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "|", `\|`, "[", `\[`, "]", `\]`, "<", "&lt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
