// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"
)

var (
	testSecretKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32))
)

// TestStringKeeper returns a local StringKeeper for tests in other packages.
func TestStringKeeper(t *testing.T) *StringKeeper {
	t.Helper()
	keeper, err := OpenLocal(testSecretKey)
	if err != nil {
		t.Fatal(err)
	}
	return NewStringKeeper(keeper, 1*time.Second)
}
