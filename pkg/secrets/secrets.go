// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/hashivault"
	"gocloud.dev/secrets/localsecrets"
)

// StringKeeper wraps a secrets.Keeper but accepts and returns strings, which are easier
// to store in a database or pass around. Encrypted and decryptable values must be in
// base64.StdEncoding format.
type StringKeeper struct {
	keeper *secrets.Keeper
	enc    *base64.Encoding

	timeout time.Duration
}

func NewStringKeeper(keeper *secrets.Keeper, timeout time.Duration) *StringKeeper {
	return &StringKeeper{
		keeper:  keeper,
		enc:     base64.StdEncoding,
		timeout: timeout,
	}
}

func (str *StringKeeper) Close() error {
	if str == nil {
		return nil
	}
	return str.keeper.Close()
}

// EncryptString accepts a string a returns the base64.StdEncoding encoding of its encrypted contents
func (str *StringKeeper) EncryptString(ctx context.Context, in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	bs, err := str.keeper.Encrypt(ctx, []byte(in))
	if err != nil {
		return "", err
	}
	return str.enc.EncodeToString(bs), nil
}

// DecryptString accepts a base64.StdEncoding string and returns the plaintext decrypted version
func (str *StringKeeper) DecryptString(ctx context.Context, in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	bs, err := str.enc.DecodeString(in)
	if err != nil {
		return "", err
	}
	bs, err = str.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// OpenKeeper returns a Go Cloud Development Kit (Go CDK) Keeper object which can be used
// to encrypt and decrypt byte slices and stored in various services.
// Checkout https://gocloud.dev/ref/secrets/ for more details.
//
// keyURI is either base64key://<key> or hashivault://<key>, the latter reading
// VAULT_SERVER_URL and VAULT_SERVER_TOKEN. An empty keyURI opens a local keeper
// from SECRETS_LOCAL_BASE64_KEY.
func OpenKeeper(ctx context.Context, keyURI string) (*secrets.Keeper, error) {
	if keyURI == "" {
		return OpenLocal(os.Getenv("SECRETS_LOCAL_BASE64_KEY"))
	}
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("secrets: %v", err)
	}
	return keeper, nil
}

// OpenLocal returns an inmemory Keeper based on a provided key.
//
// The URL hostname must be a base64-encoded key, of length 32 bytes when decoded.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	var key [32]byte
	if base64Key != "" {
		k, err := localsecrets.Base64Key(base64Key)
		if err != nil {
			return nil, fmt.Errorf("problem reading SECRETS_LOCAL_BASE64_KEY: %v", err)
		}
		key = k
	} else {
		k, err := localsecrets.Base64Key(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32)))
		if err != nil {
			return nil, err
		}
		key = k
	}
	return localsecrets.NewKeeper(key), nil
}
