package keyring

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveKnownVector(t *testing.T) {
	key, err := Derive(testMnemonic, 0)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), key.Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", key.Path)
	assert.Equal(t, uint32(0), key.Index)
}

func TestDeriveDeterministic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)

	for _, index := range []uint32{0, 1, 7, 1024} {
		a, err := Derive(mnemonic, index)
		require.NoError(t, err)
		b, err := Derive(mnemonic, index)
		require.NoError(t, err)

		assert.Equal(t, a.Address, b.Address)
		assert.Equal(t, a.private.D, b.private.D)
	}

	first, _ := Derive(mnemonic, 0)
	second, _ := Derive(mnemonic, 1)
	assert.NotEqual(t, first.Address, second.Address)
}

func TestDeriveNormalizesWhitespace(t *testing.T) {
	a, err := Derive("  abandon abandon abandon abandon abandon abandon\nabandon abandon abandon abandon abandon about ", 0)
	require.NoError(t, err)

	b, err := Derive(testMnemonic, 0)
	require.NoError(t, err)
	assert.Equal(t, b.Address, a.Address)
}

func TestDeriveInvalidSecret(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
	}{
		{"empty", ""},
		{"wrong word count", "abandon abandon abandon"},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"},
		{"unknown word", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon coffeebean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Derive(tt.mnemonic, 0)
			assert.True(t, errors.Is(err, core.ErrInvalidSecret), "got %v", err)

			_, err = New(tt.mnemonic)
			assert.True(t, errors.Is(err, core.ErrInvalidSecret), "got %v", err)
		})
	}
}

func TestKeyringMatchesDerive(t *testing.T) {
	ring, err := New(testMnemonic)
	require.NoError(t, err)

	for _, index := range []uint32{0, 1, 2} {
		k, err := ring.Key(index)
		require.NoError(t, err)

		want, err := Derive(testMnemonic, index)
		require.NoError(t, err)
		assert.Equal(t, want.Address, k.Address)

		again, err := ring.Key(index)
		require.NoError(t, err)
		assert.Same(t, k, again)
	}
}
