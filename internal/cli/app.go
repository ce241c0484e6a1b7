package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"tesoreria/internal/config"
	"tesoreria/internal/core"
	"tesoreria/internal/services"
)

// App carries what the caja subcommands share: the configuration, the
// terminal streams and a way to open the ledger service.
type App struct {
	Config *config.Config
	In     io.Reader
	Out    io.Writer
	Err    io.Writer

	open func(ctx context.Context) (*services.LedgerService, func() error, error)
}

// NewApp creates an App that opens the configured backend on every command.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		open: func(ctx context.Context) (*services.LedgerService, func() error, error) {
			res, err := OpenBackend(ctx, logger, cfg)
			if err != nil {
				return nil, nil, err
			}
			return NewLedgerService(ctx, res, cfg), res.Cleanup, nil
		},
	}
}

// NewAppWithService creates an App over an already opened service.
func NewAppWithService(cfg *config.Config, svc *services.LedgerService, in io.Reader, out io.Writer) *App {
	return &App{
		Config: cfg,
		In:     in,
		Out:    out,
		Err:    out,
		open: func(context.Context) (*services.LedgerService, func() error, error) {
			return svc, func() error { return nil }, nil
		},
	}
}

// run opens the service, hands it to fn and releases it.
func (a *App) run(ctx context.Context, fn func(*services.LedgerService) error) subcommands.ExitStatus {
	svc, closeFn, err := a.open(ctx)
	if err != nil {
		fmt.Fprintf(a.Err, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := closeFn(); err != nil {
			fmt.Fprintf(a.Err, "Error closing ledger: %v\n", err)
		}
	}()

	if err := fn(svc); err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func (a *App) printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(a.Out, out)
			return
		}
	}
	fmt.Fprint(a.Out, md)
}

// Register adds every caja subcommand to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&listCmd{app: app}, "movements")
	c.Register(&addCmd{app: app}, "movements")
	c.Register(&removeCmd{app: app}, "movements")
	c.Register(&balanceCmd{app: app}, "movements")

	c.Register(&settleCmd{app: app}, "closing")

	c.Register(&reportCmd{app: app}, "reports")
	c.Register(&exportCmd{app: app}, "reports")
}

// Completion describes the caja command line for shell completion.
func Completion() *complete.Command {
	dates := predict.Set{"today", "yesterday"}
	return &complete.Command{
		Sub: map[string]*complete.Command{
			"list": {Flags: map[string]complete.Predictor{"d": dates}},
			"add": {Flags: map[string]complete.Predictor{
				"kind": predict.Set{string(core.Income), string(core.Expense)},
				"d":    dates,
			}},
			"remove":  {Args: predict.Something},
			"balance": {},
			"settle": {Flags: map[string]complete.Predictor{
				"d":       dates,
				"income":  predict.Something,
				"expense": predict.Something,
				"clear":   predict.Nothing,
				"y":       predict.Nothing,
			}},
			"report": {Flags: map[string]complete.Predictor{
				"from":  dates,
				"to":    dates,
				"plain": predict.Nothing,
			}},
			"export": {Flags: map[string]complete.Predictor{
				"format": predict.Set{"md", "html", "csv"},
				"from":   dates,
				"to":     dates,
				"out":    predict.Something,
				"gcs":    predict.Nothing,
				"stdout": predict.Nothing,
			}},
		},
	}
}

// parseDate accepts YYYY-MM-DD, today and yesterday. The empty string
// yields nil.
func parseDate(s string) (*core.Date, error) {
	var d core.Date
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "today":
		d = core.Today()
	case "yesterday":
		d = core.Today().AddDays(-1)
	default:
		var err error
		if d, err = core.ParseDate(s); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

// dateOrToday is parseDate with today as the default.
func dateOrToday(s string) (core.Date, error) {
	d, err := parseDate(s)
	if err != nil {
		return core.Date{}, err
	}
	if d == nil {
		return core.Today(), nil
	}
	return *d, nil
}
