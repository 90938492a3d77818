package wallet

import (
	"context"
	"crypto/rand"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsenart/nap"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"Empty string", ""},
		{"Short text", "Hello, World!"},
		{"Mnemonic", testPhrase},
		{"Special characters", "!@#$%^&*()_+{}[]|\\:;\"'<>,.?/~`"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, err := encrypt(key, tc.plaintext)
			if err != nil {
				t.Fatalf("Encryption failed: %v", err)
			}

			if tc.plaintext != "" && ciphertext == tc.plaintext {
				t.Fatalf("ciphertext equals plaintext")
			}

			decrypted, err := decrypt(key, ciphertext)
			if err != nil {
				t.Fatalf("Decryption failed: %v", err)
			}

			if decrypted != tc.plaintext {
				t.Errorf("Decrypted text does not match original plaintext. Got %q, want %q", decrypted, tc.plaintext)
			}
		})
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	other := make([]byte, 32)
	if _, err := rand.Read(other); err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	sealed, err := encrypt(other, testPhrase)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name       string
		ciphertext string
	}{
		{"Empty string", ""},
		{"Invalid base64", "This is not base64!"},
		{"Too short after base64 decode", "aGVsbG8="},
		{"Wrong key", sealed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decrypt(key, tc.ciphertext); err == nil {
				t.Error("Expected an error, but got nil")
			}
		})
	}
}

func newTestStore(t *testing.T) (*walletStore, sqlmock.Sqlmock) {
	dsn := "sqlmock_wallets_" + t.Name()
	mockDB, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db, err := nap.Open("sqlmock", dsn)
	require.NoError(t, err)

	s := New(db, Config{SecretKey: "test secret"}).(*walletStore)
	return s, mock
}

func TestCreateEncryptsSeed(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO wallets .* ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("u1", sqlmock.AnyArg(), "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Create(ctx, &core.Wallet{
		UserID:         "u1",
		SeedPhrase:     testPhrase,
		PrimaryAccount: "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDecryptsAndCaches(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	sealed, err := encrypt(s.key, testPhrase)
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(columns).AddRow("u1", sealed, "0xabc", now, now)
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE user_id = \$1`).WithArgs("u1").WillReturnRows(rows)

	w, err := s.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, testPhrase, w.SeedPhrase)
	assert.Equal(t, "0xabc", w.PrimaryAccount)

	w.PrimaryAccount = "mutated"

	// served from cache, no second query expected
	again, err := s.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", again.PrimaryAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .* FROM wallets`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.Find(context.Background(), "ghost")
	assert.True(t, store.IsErrNotFound(err))
}

func TestUpdatePrimaryAccount(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE wallets SET primary_account = \$1, updated_at = \$2 WHERE user_id = \$3`).
		WithArgs("0xdef", sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs("0xdef", sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpdatePrimaryAccount(ctx, "u1", "0xdef"))

	err := s.UpdatePrimaryAccount(ctx, "ghost", "0xdef")
	assert.True(t, store.IsErrNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	s, mock := newTestStore(t)

	a, err := encrypt(s.key, "phrase a")
	require.NoError(t, err)
	b, err := encrypt(s.key, "phrase b")
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(columns).
		AddRow("u1", a, "0x1", now, now).
		AddRow("u2", b, "0x2", now, now)
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE user_id > \$1 ORDER BY user_id LIMIT 2`).
		WithArgs("").
		WillReturnRows(rows)

	wallets, err := s.List(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "phrase a", wallets[0].SeedPhrase)
	assert.Equal(t, "u2", wallets[1].UserID)
}
