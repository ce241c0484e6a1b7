package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"tesoreria/internal/amqp"
	"tesoreria/internal/core"
	"tesoreria/internal/export"
	"tesoreria/internal/ledger"
	"tesoreria/internal/report"
	"tesoreria/internal/settlement"
)

// Publisher announces saved cash closings.
type Publisher interface {
	PublishDayClosed(ctx context.Context, msg *amqp.DayClosedMessage) error
}

// Export is a rendered report ready to be served or stored.
type Export struct {
	Name   string
	Format export.Format
	Data   []byte
}

// LedgerService orchestrates the ledger, the settlement session and the
// report view, and publishes closings over AMQP.
type LedgerService struct {
	ledger    *ledger.Ledger
	session   *settlement.Session
	view      *report.View
	publisher Publisher
	currency  string
}

// NewLedgerService opens a session on today's date. publisher may be nil.
func NewLedgerService(l *ledger.Ledger, publisher Publisher, currency string) *LedgerService {
	if currency == "" {
		currency = export.DefaultCurrency
	}
	return &LedgerService{
		ledger:    l,
		session:   settlement.New(l, core.Today()),
		view:      report.NewView(l),
		publisher: publisher,
		currency:  currency,
	}
}

func (s *LedgerService) Ledger() *ledger.Ledger         { return s.ledger }
func (s *LedgerService) Session() *settlement.Session   { return s.session }
func (s *LedgerService) View() *report.View             { return s.view }
func (s *LedgerService) Currency() string               { return s.currency }
func (s *LedgerService) Movements() []core.Movement     { return s.ledger.All() }
func (s *LedgerService) Balance() core.Money            { return s.ledger.Balance() }
func (s *LedgerService) Totals() core.Totals            { return s.ledger.Totals() }
func (s *LedgerService) Reconciler() *ledger.Reconciler { return s.ledger.Reconciler() }

// QuickAdd records a single movement outside of a settlement session.
func (s *LedgerService) QuickAdd(ctx context.Context, kind core.Kind, date core.Date, description, amount string) (core.Movement, error) {
	if !kind.Valid() {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, core.ErrInvalidKind)
	}
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.Movement{}, fmt.Errorf("%w: %w", core.ErrValidationRejected, err)
	}
	saved, err := s.ledger.QuickAdd(ctx, core.NewMovement(kind, date, strings.TrimSpace(description), m))
	if err != nil {
		return core.Movement{}, err
	}
	return saved, nil
}

// Remove deletes a movement from the ledger.
func (s *LedgerService) Remove(ctx context.Context, id string) error {
	if !s.ledger.Remove(ctx, id) {
		return fmt.Errorf("%w: %s", core.ErrMovementNotFound, id)
	}
	return nil
}

// Settle confirms the open session and, when the closing was saved,
// publishes it. Publishing failures never fail the closing.
func (s *LedgerService) Settle(ctx context.Context, p settlement.Prompter) (settlement.Outcome, error) {
	date := s.session.Date()
	outcome, err := s.session.Confirm(ctx, p)
	if err != nil || !outcome.Saved() {
		return outcome, err
	}

	var incomes, expenses []core.Movement
	for _, m := range s.ledger.OnDate(date) {
		if m.Kind == core.Income {
			incomes = append(incomes, m)
		} else {
			expenses = append(expenses, m)
		}
	}

	msg := amqp.NewDayClosedMessage(date, outcome.String(), incomes, expenses)
	if err := s.publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish day closed message",
			"component", "services",
			"date", date.String(),
			"error", err)
	}
	return outcome, nil
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.DayClosedMessage) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping day closed message",
			"component", "services",
			"date", msg.Date.String())
		return nil
	}
	return s.publisher.PublishDayClosed(ctx, msg)
}

// Export renders the current report view in format f.
func (s *LedgerService) Export(f export.Format) (Export, error) {
	rep := s.view.Report()
	var buf bytes.Buffer
	err := export.Render(&buf, f, export.Document{
		Report:   rep,
		Totals:   s.ledger.Totals(),
		Currency: s.currency,
	})
	if err != nil {
		return Export{}, err
	}
	return Export{Name: export.FileName(f, rep), Format: f, Data: buf.Bytes()}, nil
}

// ExportTo renders the report and stores it in sink, returning its location.
func (s *LedgerService) ExportTo(ctx context.Context, sink export.Sink, f export.Format) (string, error) {
	e, err := s.Export(f)
	if err != nil {
		return "", err
	}
	loc, err := sink.Put(ctx, e.Name, f.ContentType(), e.Data)
	if err != nil {
		return "", fmt.Errorf("store export %s: %w", e.Name, err)
	}
	slog.InfoContext(ctx, "Report exported",
		"component", "export",
		"format", string(f),
		"location", loc,
		"bytes", len(e.Data))
	return loc, nil
}

// Close closes the publisher when it holds a connection.
func (s *LedgerService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close ledger service: amqp: %w", err)
		}
	}
	return nil
}
