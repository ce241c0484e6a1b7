package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tesoreria/internal/core"
	"tesoreria/internal/report"
)

func sampleDoc() Document {
	d1 := core.NewDate(2024, 1, 1)
	d2 := core.NewDate(2024, 1, 2)
	ms := []core.Movement{
		core.NewMovement(core.Income, d1, "Venta", core.MoneyFromCents(10000)),
		core.NewMovement(core.Expense, d1, "Compra | insumos", core.MoneyFromCents(3000)),
		core.NewMovement(core.Income, d2, "Venta", core.MoneyFromCents(5000)),
	}
	return Document{
		Report:   report.Generate(ms, report.Filter{}),
		Totals:   core.TotalsOf(ms),
		Currency: "PEN",
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"md": FormatMarkdown, "PDF": FormatHTML, "html": FormatHTML, "xlsx": FormatCSV, " csv ": FormatCSV}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFormatMoney(t *testing.T) {
	got := FormatMoney(core.MoneyFromCents(123450), "PEN")
	if !strings.Contains(got, "1,234.50") {
		t.Fatalf("expected grouped amount, got %q", got)
	}
	if neg := FormatMoney(core.MoneyFromCents(-7000), "PEN"); !strings.HasPrefix(neg, "-") {
		t.Fatalf("expected negative sign, got %q", neg)
	}
	if got := FormatMoney(core.MoneyFromCents(100), "XXX-unknown"); got != "1.00" {
		t.Fatalf("unknown currency should fall back to plain decimal, got %q", got)
	}
}

func TestEmptyReportIsRefused(t *testing.T) {
	doc := Document{Report: report.Generate(nil, report.Filter{})}
	for _, f := range []Format{FormatMarkdown, FormatHTML, FormatCSV} {
		var buf bytes.Buffer
		if err := Render(&buf, f, doc); !errors.Is(err, ErrEmptyReport) {
			t.Fatalf("%s: expected ErrEmptyReport, got %v", f, err)
		}
		if buf.Len() != 0 {
			t.Fatalf("%s: nothing should be written", f)
		}
	}
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown(&buf, sampleDoc()); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Cash report",
		"Period: 2024-01-01 to 2024-01-02",
		"| Days reported | 2 |",
		"### 2024-01-02",
		"### 2024-01-01",
		`Compra \| insumos`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
	// Most recent day comes first.
	if strings.Index(out, "### 2024-01-02") > strings.Index(out, "### 2024-01-01") {
		t.Fatalf("days out of order")
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := HTML(&buf, sampleDoc()); err != nil {
		t.Fatalf("html: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || !strings.Contains(out, "<table>") {
		t.Fatalf("expected an html page with tables:\n%s", out)
	}
	if !strings.Contains(out, "<h3>2024-01-02</h3>") {
		t.Fatalf("expected day headings:\n%s", out)
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleDoc()); err != nil {
		t.Fatalf("csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header, 2 days and totals, got %d rows", len(rows))
	}
	if rows[1][0] != "2024-01-02" || rows[1][1] != "70.00" || rows[1][5] != "120.00" {
		t.Fatalf("unexpected first day row %v", rows[1])
	}
	if rows[3][0] != "Total" || rows[3][5] != "120.00" {
		t.Fatalf("unexpected totals row %v", rows[3])
	}
}

func TestFileName(t *testing.T) {
	var f report.Filter
	d := core.NewDate(2024, 3, 1)
	f.SetStart(&d)
	rep := report.Report{Range: f}
	if got := FileName(FormatCSV, rep); got != "cash-report_2024-03-01.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := FileName(FormatHTML, report.Report{}); got != "cash-report.html" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := FileSink{Dir: dir}.Put(context.Background(), "r.csv", FormatCSV.ContentType(), []byte("a,b\n"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "a,b\n" {
		t.Fatalf("unexpected file content %q (err=%v)", b, err)
	}
}
