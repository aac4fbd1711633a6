// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package taskengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func engineServer(t *testing.T, pendingPolls int32) *httptest.Server {
	t.Helper()

	var polls int32
	r := mux.NewRouter()
	r.Methods("POST").Path("/tasks").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req TaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdvanceID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"taskID": "task-" + string(req.AdvanceID)})
	})
	r.Methods("GET").Path("/tasks/{taskID}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := TaskResult{TaskID: id.Task(mux.Vars(r)["taskID"]), Status: ResultPending}
		if atomic.AddInt32(&polls, 1) > pendingPolls {
			result.Status = ResultSuccess
			result.PaymentIDs = []id.Payment{"payment1"}
		}
		json.NewEncoder(w).Encode(result)
	})
	r.Methods("GET").Path("/advances/{advanceID}/active").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"active": mux.Vars(r)["advanceID"] == "busy"})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestClient(t *testing.T) {
	server := engineServer(t, 2)

	client, err := NewClient(log.NewNopLogger(), &config.TaskEngine{
		Endpoint:     server.URL,
		PollInterval: 10 * time.Millisecond,
		WaitTimeout:  5 * time.Second,
	}, server.Client())
	require.NoError(t, err)

	ctx := context.Background()
	taskID, err := client.CreatePaymentTask(ctx, TaskRequest{
		AdvanceID: "adv",
		Amount:    decimal.NewFromInt(80),
		Trigger:   model.TriggerTaskEngine,
		Caller:    "test",
	})
	require.NoError(t, err)
	require.Equal(t, id.Task("task-adv"), taskID)

	result, err := client.WaitForTaskResult(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.Status)
	require.Equal(t, []id.Payment{"payment1"}, result.PaymentIDs)

	active, err := client.IsActiveElsewhere(ctx, "busy")
	require.NoError(t, err)
	require.True(t, active)

	active, err = client.IsActiveElsewhere(ctx, "adv")
	require.NoError(t, err)
	require.False(t, active)

	_, err = client.CreatePaymentTask(ctx, TaskRequest{})
	require.Error(t, err)
}

func TestClient__WaitTimeout(t *testing.T) {
	server := engineServer(t, 1000)

	client, err := NewClient(log.NewNopLogger(), &config.TaskEngine{
		Endpoint:     server.URL,
		PollInterval: 10 * time.Millisecond,
		WaitTimeout:  50 * time.Millisecond,
	}, server.Client())
	require.NoError(t, err)

	result, err := client.WaitForTaskResult(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, ResultPending, result.Status)
	require.Equal(t, id.Task("task-1"), result.TaskID)
}

func TestClient__Config(t *testing.T) {
	_, err := NewClient(log.NewNopLogger(), nil, nil)
	require.Error(t, err)

	_, err = NewClient(log.NewNopLogger(), &config.TaskEngine{Endpoint: "http://localhost"}, nil)
	require.Error(t, err)
}

func TestMockClient(t *testing.T) {
	client := &MockClient{}
	ctx := context.Background()

	taskID, err := client.CreatePaymentTask(ctx, TaskRequest{AdvanceID: "adv"})
	require.NoError(t, err)

	result, err := client.WaitForTaskResult(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, ResultPending, result.Status)

	client.Result = &TaskResult{Status: ResultFailure}
	result, err = client.WaitForTaskResult(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, ResultFailure, result.Status)
	require.Equal(t, taskID, result.TaskID)
}
