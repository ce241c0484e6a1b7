package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"tesoreria/internal/report"
)

// Header is the first row of the spreadsheet export.
var Header = []string{"Date", "Opening", "Income", "Expense", "Net", "Closing", "Incomes", "Expenses"}

// Rows flattens a report into spreadsheet rows, header first and a totals
// row last. Amounts are plain decimals so spreadsheets can sum them.
func Rows(rep report.Report) [][]string {
	rows := make([][]string, 0, len(rep.Days)+2)
	rows = append(rows, Header)
	for _, d := range rep.Days {
		rows = append(rows, []string{
			d.Date.String(),
			d.Opening.String(),
			d.Income.String(),
			d.Expense.String(),
			d.Net.String(),
			d.Closing.String(),
			strconv.Itoa(len(d.Incomes)),
			strconv.Itoa(len(d.Expenses)),
		})
	}
	s := rep.Summary
	rows = append(rows, []string{
		"Total",
		"",
		s.Income.String(),
		s.Expense.String(),
		s.Income.Sub(s.Expense).String(),
		s.FinalBalance.String(),
		"",
		"",
	})
	return rows
}

// CSV writes Rows of the report.
func CSV(w io.Writer, doc Document) error {
	if doc.Report.Empty() {
		return ErrEmptyReport
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(doc.Report)); err != nil {
		return err
	}
	return cw.Error()
}
