// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"encoding/json"
	"net/http"

	"github.com/moov-io/base/admin"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/x/mask"
)

// RegisterRoutes will add HTTP handlers for the collector's admin HTTP server
func RegisterRoutes(svc *admin.Server, cfg *config.Config) {
	if cfg.Admin.DisableConfigEndpoint {
		return
	}

	svc.AddHandler("/config", marshalConfig(cfg))
}

func marshalConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(maskPasswords(cfg))
	}
}

// maskPasswords returns a copy of cfg with credentials masked. cfg is not modified.
func maskPasswords(cfg *config.Config) *config.Config {
	out := *cfg
	if cfg.Database.MySQL != nil {
		mysql := *cfg.Database.MySQL
		mysql.Password = mask.Password(mysql.Password)
		out.Database.MySQL = &mysql
	}
	if cfg.Idempotency != nil && cfg.Idempotency.Redis != nil {
		idem := *cfg.Idempotency
		redis := *cfg.Idempotency.Redis
		redis.Password = mask.Password(redis.Password)
		idem.Redis = &redis
		out.Idempotency = &idem
	}
	if cfg.Notifications != nil && cfg.Notifications.PagerDuty != nil {
		notifications := *cfg.Notifications
		pd := *cfg.Notifications.PagerDuty
		pd.ApiKey = mask.Password(pd.ApiKey)
		notifications.PagerDuty = &pd
		out.Notifications = &notifications
	}
	return &out
}
