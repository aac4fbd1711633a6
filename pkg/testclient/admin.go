// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package testclient

import (
	"net/http"
	"testing"

	moovadmin "github.com/moov-io/base/admin"
)

// Admin starts an admin server on a random port which is shutdown
// after the test completes.
func Admin(t *testing.T) *moovadmin.Server {
	t.Helper()

	svc := moovadmin.NewServer(":0")
	go svc.Listen()
	t.Cleanup(func() { svc.Shutdown() })

	return svc
}

// URL returns the absolute address of path on an admin server.
func URL(svc *moovadmin.Server, path string) string {
	return "http://" + svc.BindAddr() + path
}

// Do sends req and fails the test on transport errors.
func Do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
