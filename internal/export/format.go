// Package export renders reports as documents and spreadsheets and ships
// them to a sink.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"

	"tesoreria/internal/core"
	"tesoreria/internal/report"
)

var (
	ErrEmptyReport   = errors.New("report has no days to export")
	ErrUnknownFormat = errors.New("unknown export format")
)

// DefaultCurrency is the ISO code used when none is configured.
const DefaultCurrency = "PEN"

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
)

// ParseFormat accepts the format names and their common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "pdf":
		return FormatHTML, nil
	case "csv", "xlsx", "excel":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// Extension is the file extension of f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Document is what the exporters render.
type Document struct {
	Title    string
	Report   report.Report
	Totals   core.Totals
	Currency string
}

// Render writes doc to w in format f. Empty reports are refused.
func Render(w io.Writer, f Format, doc Document) error {
	if doc.Report.Empty() {
		return ErrEmptyReport
	}
	switch f {
	case FormatMarkdown:
		return Markdown(w, doc)
	case FormatHTML:
		return HTML(w, doc)
	case FormatCSV:
		return CSV(w, doc)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// FileName builds the conventional name of an exported report.
func FileName(f Format, rep report.Report) string {
	name := "cash-report"
	if rep.Range.Enabled && rep.Range.Start != nil {
		name += "_" + rep.Range.Start.String()
	}
	if rep.Range.Enabled && rep.Range.End != nil {
		name += "_" + rep.Range.End.String()
	}
	return name + "." + f.Extension()
}

// FormatMoney displays m in the given currency, e.g. "S/ 1,234.50" for PEN.
// Unknown currency codes fall back to the plain decimal.
func FormatMoney(m core.Money, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	if money.GetCurrency(currency) == nil {
		return m.String()
	}
	return money.New(m.Cents(), currency).Display()
}
