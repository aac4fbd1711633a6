// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package notify sends operator notifications about collections.
package notify

import (
	"context"

	"github.com/moov-io/collections/pkg/id"
)

type Message struct {
	AdvanceID id.Advance
	UserID    id.User

	Subject string
	Body    string
}

type Sender interface {
	Info(ctx context.Context, msg *Message) error
	Critical(ctx context.Context, msg *Message) error
}
