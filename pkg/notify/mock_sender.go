// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"context"
	"sync"
)

type MockSender struct {
	mu sync.Mutex

	Err error

	Infos     []*Message
	Criticals []*Message
}

func (s *MockSender) Info(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Infos = append(s.Infos, msg)
	return s.Err
}

func (s *MockSender) Critical(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Criticals = append(s.Criticals, msg)
	return s.Err
}

func (s *MockSender) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Infos), len(s.Criticals)
}
