// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CutoffTimes is a time.Ticker which fires on banking days to trigger processing
// events (like the daily collection sweep).
type CutoffTimes struct {
	C chan time.Time

	sched   *cron.Cron
	windows *Windows
	done    chan struct{}
}

// ForCutoffTimes ticks at each "15:04" timestamp in the windows' reference timezone,
// skipping any day which isn't a banking day.
func ForCutoffTimes(windows *Windows, timestamps []string) (*CutoffTimes, error) {
	if windows == nil {
		return nil, errors.New("nil Windows")
	}
	ct := &CutoffTimes{
		C:       make(chan time.Time),
		sched:   cron.New(cron.WithLocation(windows.Location())),
		windows: windows,
		done:    make(chan struct{}),
	}
	if err := ct.registerCutoffs(timestamps); err != nil {
		return nil, err
	}
	ct.sched.Start()
	return ct, nil
}

func (ct *CutoffTimes) Stop() {
	if ct == nil {
		return
	}
	close(ct.done)
	if ct.sched != nil {
		<-ct.sched.Stop().Done()
	}
	if ct.C != nil {
		close(ct.C)
	}
}

func (ct *CutoffTimes) maybeTick(now time.Time) {
	now = now.In(ct.windows.Location())
	if ct.windows.IsBankingDay(now) {
		select {
		case ct.C <- now:
		case <-ct.done:
		}
	}
}

func (ct *CutoffTimes) registerCutoffs(timestamps []string) error {
	if len(timestamps) == 0 {
		return errors.New("missing cutoff times")
	}
	for i := range timestamps {
		if err := ct.register(timestamps[i]); err != nil {
			return fmt.Errorf("timestamp=%s error=%v", timestamps[i], err)
		}
	}
	return nil
}

func (ct *CutoffTimes) register(timestamp string) error {
	when, err := parseCutoff(timestamp)
	if err != nil {
		return err
	}
	schedule := fmt.Sprintf(`%d %d * * *`, when.minute, when.hour)
	_, err = ct.sched.AddFunc(schedule, func() {
		ct.maybeTick(time.Now())
	})
	return err
}
