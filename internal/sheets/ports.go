package sheets

import (
	"context"

	"tesoreria/internal/report"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the content of a spreadsheet with a report.
	ReportWriter interface {
		WriteReport(ctx context.Context, rep report.Report) (ref string, err error)
	}

	// ReportReader reads back the rows last written.
	ReportReader interface {
		ReadReport(ctx context.Context) ([][]string, error)
	}
)
