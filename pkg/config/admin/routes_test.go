// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"io/ioutil"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/testclient"

	"github.com/stretchr/testify/require"
)

func TestConfigRoute(t *testing.T) {
	cfg, err := config.FromFile(filepath.Join("..", "testdata", "valid.yaml"))
	require.NoError(t, err)

	svc := testclient.Admin(t)
	RegisterRoutes(svc, cfg)

	req, _ := http.NewRequest("GET", testclient.URL(svc, "/config"), nil)
	resp := testclient.Do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bs, _ := ioutil.ReadAll(resp.Body)

	got, err := config.Read(bs)
	require.NoError(t, err)
	require.Equal(t, cfg.Windows, got.Windows)
}

func TestConfigRoute__Disabled(t *testing.T) {
	cfg := config.Empty()
	cfg.Admin.DisableConfigEndpoint = true

	svc := testclient.Admin(t)
	RegisterRoutes(svc, cfg)

	req, _ := http.NewRequest("GET", testclient.URL(svc, "/config"), nil)
	resp := testclient.Do(t, req)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigRoute__MaskPasswords(t *testing.T) {
	cfg := config.Empty()
	cfg.Database.MySQL = &config.MySQL{Address: "tcp(localhost:3306)", Password: "secret"}
	cfg.Idempotency = &config.Idempotency{
		Redis: &config.Redis{Address: "localhost:6379", Password: "hunter2"},
	}

	out := maskPasswords(cfg)
	require.Equal(t, "s****t", out.Database.MySQL.Password)
	require.Equal(t, "h*****2", out.Idempotency.Redis.Password)

	// the original is untouched
	require.Equal(t, "secret", cfg.Database.MySQL.Password)
	require.Equal(t, "hunter2", cfg.Idempotency.Redis.Password)
}
