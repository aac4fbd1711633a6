// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	db := database.CreateTestSqliteDB(t).DB
	ctx := context.Background()

	scheduler := NewScheduler(log.NewNopLogger(), db)

	now := time.Now()
	taskIDs, err := scheduler.ScheduleACHCollection(ctx, []id.Advance{"adv1", "adv2"}, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, taskIDs, 2)

	// scheduling again keeps the pending task
	again, err := scheduler.ScheduleACHCollection(ctx, []id.Advance{"adv1"}, now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, taskIDs[0], again[0])

	_, err = scheduler.ScheduleACHCollection(ctx, []id.Advance{"adv3"}, now.Add(time.Hour))
	require.NoError(t, err)

	claimed, err := ClaimDue(ctx, db, now, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for i := range claimed {
		require.Equal(t, StatusRunning, claimed[i].Status)
		require.Equal(t, 1, claimed[i].Attempts)
	}

	// claimed tasks aren't handed out twice
	claimed2, err := ClaimDue(ctx, db, now, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Empty(t, claimed2)

	require.NoError(t, Complete(ctx, db, claimed[0], nil))
	require.NoError(t, Complete(ctx, db, claimed[1], errors.New("balance too low")))

	tasks, err := ListTasks(ctx, db, claimed[1].AdvanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, StatusFailed, tasks[0].Status)
	require.Equal(t, "balance too low", tasks[0].LastError)

	// adv3 becomes due later
	claimed, err = ClaimDue(ctx, db, now.Add(2*time.Hour), 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, id.Advance("adv3"), claimed[0].AdvanceID)

	// a completed advance can be scheduled again
	again, err = scheduler.ScheduleACHCollection(ctx, []id.Advance{"adv1"}, now)
	require.NoError(t, err)
	require.NotEqual(t, taskIDs[0], again[0])
}

func TestClaimDue__reclaimsStaleTasks(t *testing.T) {
	db := database.CreateTestSqliteDB(t).DB
	ctx := context.Background()

	scheduler := NewScheduler(log.NewNopLogger(), db)

	now := time.Now()
	_, err := scheduler.ScheduleACHCollection(ctx, []id.Advance{"adv1"}, now.Add(-time.Minute))
	require.NoError(t, err)

	claimed, err := ClaimDue(ctx, db, now, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// the runner is still within its bound
	again, err := ClaimDue(ctx, db, now.Add(10*time.Minute), 30*time.Minute, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	// the runner died and the task was never completed
	again, err = ClaimDue(ctx, db, now.Add(time.Hour), 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, claimed[0].ID, again[0].ID)
	require.Equal(t, StatusRunning, again[0].Status)
	require.Equal(t, 2, again[0].Attempts)

	// without a bound running tasks stay claimed
	again, err = ClaimDue(ctx, db, now.Add(48*time.Hour), 0, 10)
	require.NoError(t, err)
	require.Empty(t, again)
}
