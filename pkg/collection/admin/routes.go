// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/refresh"
	"github.com/moov-io/collections/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"
	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"
)

type Refresher interface {
	RefreshAndCollect(ctx context.Context, adv *model.Advance, opts refresh.Options) (*refresh.Result, error)
}

// RegisterRoutes will add HTTP handlers to trigger and inspect collections on the admin HTTP server
func RegisterRoutes(logger log.Logger, svc *admin.Server, db *sql.DB, refresher Refresher) {
	svc.AddHandler("/advances/{advanceID}/collect", collectAdvance(logger, db, refresher))
	svc.AddHandler("/advances/{advanceID}/outstanding", getOutstanding(logger, db))
}

var validate = validator.New()

type collectRequest struct {
	Caller                  string        `json:"caller" validate:"required,max=100"`
	RetrieveFullOutstanding bool          `json:"retrieveFullOutstanding"`
	RefreshTimeout          time.Duration `json:"refreshTimeout" validate:"gte=0"`
	IdempotencyKey          string        `json:"idempotencyKey" validate:"max=100"`
}

type collectResponse struct {
	Status        refresh.Status   `json:"status"`
	Payments      []*model.Payment `json:"payments,omitempty"`
	Error         string           `json:"error,omitempty"`
	DeferredUntil *time.Time       `json:"deferredUntil,omitempty"`
}

type outstandingResponse struct {
	AdvanceID   id.Advance      `json:"advanceID"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func getAdvanceID(r *http.Request) id.Advance {
	return id.Advance(mux.Vars(r)["advanceID"])
}

func collectAdvance(logger log.Logger, db *sql.DB, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}

		var req collectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			moovhttp.Problem(w, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			moovhttp.Problem(w, err)
			return
		}

		span := trace.FromRequest("admin-collect", r)
		defer span.Finish()
		ctx := opentracing.ContextWithSpan(r.Context(), span)

		adv, err := advances.GetAdvance(ctx, db, getAdvanceID(r))
		if err != nil {
			internalError(logger, w, err)
			return
		}
		if adv == nil {
			http.NotFound(w, r)
			return
		}

		result, err := refresher.RefreshAndCollect(ctx, adv, refresh.Options{
			RetrieveFullOutstanding: req.RetrieveFullOutstanding,
			RefreshTimeout:          req.RefreshTimeout,
			Caller:                  req.Caller,
			Trigger:                 model.TriggerAdmin,
			IdempotencyKey:          req.IdempotencyKey,
		})
		if err != nil {
			internalError(logger, w, err)
			return
		}

		resp := collectResponse{
			Status:        result.Status,
			Payments:      result.Payments,
			DeferredUntil: result.DeferredUntil,
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
		}
		logger.Log("admin", fmt.Sprintf("collected advance with status %s", result.Status), "advanceID", adv.ID, "caller", req.Caller)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

func getOutstanding(logger log.Logger, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}

		adv, err := advances.Calculator(db).ComputeOutstanding(r.Context(), getAdvanceID(r))
		if err != nil {
			if errors.Is(err, ledger.ErrAdvanceNotFound) {
				http.NotFound(w, r)
				return
			}
			internalError(logger, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(outstandingResponse{
			AdvanceID:   adv.ID,
			Outstanding: adv.Outstanding,
		})
	}
}

func internalError(logger log.Logger, w http.ResponseWriter, err error) {
	logger.Log("admin", fmt.Sprintf("internal error: %v", err))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
