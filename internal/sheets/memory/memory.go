package memory

import (
	"context"
	"fmt"
	"sync"

	"tesoreria/internal/export"
	"tesoreria/internal/report"
	ports "tesoreria/internal/sheets"
)

var (
	_ ports.ReportWriter = (*Sheet)(nil)
	_ ports.ReportReader = (*Sheet)(nil)
)

// Sheet keeps the last written report rows in memory.
type Sheet struct {
	mu     sync.Mutex
	name   string
	rows   [][]string
	writes int
}

func New(name string) *Sheet {
	if name == "" {
		name = "Reporte"
	}
	return &Sheet{name: name}
}

// WriteReport replaces the sheet content and returns a synthetic range
// reference.
func (s *Sheet) WriteReport(_ context.Context, rep report.Report) (string, error) {
	rows := export.Rows(rep)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.writes++
	return fmt.Sprintf("mem:%s!A1:H%d", s.name, len(rows)), nil
}

// ReadReport returns a copy of the sheet rows.
func (s *Sheet) ReadReport(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

// Writes counts WriteReport calls.
func (s *Sheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
