package report

import (
	"sync"

	"tesoreria/internal/core"
)

// Source supplies the movements a View reports on.
type Source interface {
	All() []core.Movement
	Version() uint64
}

// View keeps a report in step with its source and filter. Every filter change
// regenerates the report, and so does any change of the source version.
type View struct {
	src Source

	mu      sync.Mutex
	filter  Filter
	report  Report
	version uint64
	built   bool
}

func NewView(src Source) *View {
	v := &View{src: src}
	v.regenerateLocked()
	return v
}

// Report returns the current report.
func (v *View) Report() Report {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.built || v.src.Version() != v.version {
		v.regenerateLocked()
	}
	return v.report.Clone()
}

// Filter returns the current filter.
func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter.clone()
}

func (v *View) SetStart(d *core.Date) Report {
	return v.update(func(f *Filter) { f.SetStart(d) })
}

func (v *View) SetEnd(d *core.Date) Report {
	return v.update(func(f *Filter) { f.SetEnd(d) })
}

// SetRange sets both bounds and reports whether the end was clamped.
func (v *View) SetRange(start, end *core.Date) (Report, bool) {
	var clamped bool
	rep := v.update(func(f *Filter) { clamped = f.SetRange(start, end) })
	return rep, clamped
}

// Clear disables the filter, keeping its bounds.
func (v *View) Clear() Report {
	return v.update(func(f *Filter) { f.Clear() })
}

// Reset drops the bounds and disables the filter.
func (v *View) Reset() Report {
	return v.update(func(f *Filter) { f.Reset() })
}

func (v *View) update(fn func(*Filter)) Report {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.filter)
	v.regenerateLocked()
	return v.report.Clone()
}

func (v *View) regenerateLocked() {
	v.version = v.src.Version()
	v.report = Generate(v.src.All(), v.filter)
	v.built = true
}
