// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package id

import "strings"

type Advance string

func (id Advance) String() string {
	return string(id)
}

type Attempt string

func (id Attempt) String() string {
	return string(id)
}

type Payment string

func (id Payment) String() string {
	return string(id)
}

type BankAccount string

func (id BankAccount) String() string {
	return string(id)
}

func (id BankAccount) Equal(other BankAccount) bool {
	return strings.EqualFold(string(id), string(other))
}

type PaymentMethod string

func (id PaymentMethod) String() string {
	return string(id)
}

type User string

func (u User) String() string {
	return string(u)
}

type Task string

func (id Task) String() string {
	return string(id)
}
