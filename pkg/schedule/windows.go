// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package schedule decides when ACH debits can be sent and ticks on banking
// days to drive bulk collection.
package schedule

import (
	"fmt"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/util"
)

type cutoff struct {
	hour, minute int
}

func parseCutoff(v string) (cutoff, error) {
	when, err := time.Parse("15:04", v)
	if err != nil {
		return cutoff{}, fmt.Errorf("failed to parse '%s' error=%v", v, err)
	}
	return cutoff{hour: when.Hour(), minute: when.Minute()}, nil
}

// before returns true if t's wall clock is at or before the cutoff. Any second
// within the cutoff minute is still inside the window.
func (c cutoff) before(t time.Time) bool {
	if t.Hour() != c.hour {
		return t.Hour() < c.hour
	}
	return t.Minute() <= c.minute
}

// Windows answers whether the same-day or next-day ACH windows are open. Every
// check is made in the configured reference timezone.
type Windows struct {
	location *time.Location

	sameDay cutoff
	nextDay cutoff

	holidays map[string]bool
}

func NewWindows(cfg config.Windows) (*Windows, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("windows: %v", err)
	}
	w := &Windows{
		location: loc,
		holidays: make(map[string]bool),
	}
	if w.sameDay, err = parseCutoff(cfg.SameDayCutoff); err != nil {
		return nil, fmt.Errorf("same-day cutoff: %v", err)
	}
	if w.nextDay, err = parseCutoff(cfg.NextDayCutoff); err != nil {
		return nil, fmt.Errorf("next-day cutoff: %v", err)
	}
	for i := range cfg.Holidays {
		day, err := time.Parse(util.YYMMDDTimeFormat, cfg.Holidays[i])
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %v", cfg.Holidays[i], err)
		}
		w.holidays[day.Format(util.YYMMDDTimeFormat)] = true
	}
	return w, nil
}

func (w *Windows) Location() *time.Location {
	return w.location
}

// IsBankingDay returns true if t falls on a weekday which isn't a Federal Reserve
// or configured holiday.
func (w *Windows) IsBankingDay(t time.Time) bool {
	t = t.In(w.location)
	if w.holidays[t.Format(util.YYMMDDTimeFormat)] {
		return false
	}
	bt := base.NewTime(t)
	return !bt.IsWeekend() && bt.IsBankingDay()
}

// InSameDayWindow returns true if an ACH debit sent at t settles the same day.
func (w *Windows) InSameDayWindow(t time.Time) bool {
	t = t.In(w.location)
	return w.IsBankingDay(t) && w.sameDay.before(t)
}

// InNextDayWindow returns true if an ACH debit sent at t settles the next banking day.
func (w *Windows) InNextDayWindow(t time.Time) bool {
	t = t.In(w.location)
	return w.IsBankingDay(t) && w.nextDay.before(t)
}

// InACHWindow returns true if either window is open.
func (w *Windows) InACHWindow(t time.Time) bool {
	return w.InSameDayWindow(t) || w.InNextDayWindow(t)
}

// NextCollectionTime returns midnight of the first banking day after tomorrow,
// which is when deferred ACH collections are retried.
func (w *Windows) NextCollectionTime(t time.Time) time.Time {
	tomorrow := util.StartOfDay(t, w.location).AddDate(0, 0, 1)

	next := tomorrow.AddDate(0, 0, 1)
	for i := 0; i < 30 && !w.IsBankingDay(next); i++ {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
