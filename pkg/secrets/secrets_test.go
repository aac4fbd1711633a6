// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecrets__OpenKeeper(t *testing.T) {
	ctx := context.Background()

	// We assume SECRETS_LOCAL_BASE64_KEY is unset
	keeper, err := OpenKeeper(ctx, "")
	require.NoError(t, err)

	encrypted, err := keeper.Encrypt(ctx, []byte("hello, world"))
	require.NoError(t, err)
	out, err := keeper.Decrypt(ctx, encrypted)
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(out))

	keeper, err = OpenKeeper(ctx, "base64key://"+testSecretKey)
	require.NoError(t, err)
	require.NotNil(t, keeper)

	_, err = OpenKeeper(ctx, "unknown://key")
	require.Error(t, err)
}

func TestSecrets__OpenLocal(t *testing.T) {
	_, err := OpenLocal("invalid key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SECRETS_LOCAL_BASE64_KEY")
}

func TestStringKeeper__roundtrip(t *testing.T) {
	keeper := TestStringKeeper(t)
	ctx := context.Background()

	enc, err := keeper.EncryptString(ctx, "123456789")
	require.NoError(t, err)
	require.NotEqual(t, "123456789", enc)

	dec, err := keeper.DecryptString(ctx, enc)
	require.NoError(t, err)
	require.Equal(t, "123456789", dec)

	_, err = keeper.DecryptString(ctx, "not base64!")
	require.Error(t, err)

	var nilKeeper *StringKeeper
	_, err = nilKeeper.EncryptString(ctx, "x")
	require.Error(t, err)
	require.NoError(t, nilKeeper.Close())
}
