// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mask

import (
	"testing"
)

func TestPassword(t *testing.T) {
	cases := map[string]string{
		"":         "**",
		"ab":       "**",
		"abc":      "a*c",
		"password": "p******d",
	}
	for input, expected := range cases {
		if got := Password(input); got != expected {
			t.Errorf("Password(%q)=%q expected %q", input, got, expected)
		}
	}
}

func TestPassword__multibyte(t *testing.T) {
	if got := Password("pässwörd"); got != "p******d" {
		t.Errorf("got %q", got)
	}
}
