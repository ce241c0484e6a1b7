package report

import "tesoreria/internal/core"

// Filter is the date range applied to a report. Bounds are inclusive.
//
// Setting any bound enables the filter. Only Clear and Reset disable it.
// Whenever both bounds exist, End is never before Start.
type Filter struct {
	Start   *core.Date `json:"start"`
	End     *core.Date `json:"end"`
	Enabled bool       `json:"enabled"`
}

// SetStart sets the lower bound, pulling End up to it when needed.
func (f *Filter) SetStart(d *core.Date) {
	f.Start = copyDate(d)
	if d != nil {
		f.Enabled = true
	}
	f.clamp()
}

// SetEnd sets the upper bound, clamping it to Start when it falls before.
func (f *Filter) SetEnd(d *core.Date) {
	f.End = copyDate(d)
	if d != nil {
		f.Enabled = true
	}
	f.clamp()
}

// SetRange sets both bounds. It reports whether End had to be clamped.
func (f *Filter) SetRange(start, end *core.Date) bool {
	inverted := start != nil && end != nil && end.Before(*start)
	f.SetStart(start)
	f.SetEnd(end)
	return inverted
}

// Clear disables the filter and keeps the bounds.
func (f *Filter) Clear() {
	f.Enabled = false
}

// Reset drops both bounds and disables the filter.
func (f *Filter) Reset() {
	*f = Filter{}
}

// Active reports whether the filter restricts anything.
func (f Filter) Active() bool {
	return f.Enabled && (f.Start != nil || f.End != nil)
}

// Contains reports whether d falls in the range. A disabled filter contains
// every date.
func (f Filter) Contains(d core.Date) bool {
	if !f.Enabled {
		return true
	}
	if f.Start != nil && d.Before(*f.Start) {
		return false
	}
	if f.End != nil && d.After(*f.End) {
		return false
	}
	return true
}

func (f *Filter) clamp() {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		end := *f.Start
		f.End = &end
	}
}

func copyDate(d *core.Date) *core.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (f Filter) clone() Filter {
	if f.Start != nil {
		d := *f.Start
		f.Start = &d
	}
	if f.End != nil {
		d := *f.End
		f.End = &d
	}
	return f
}
