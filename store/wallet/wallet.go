package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/asaskevich/govalidator"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pandodao/beanpay/core"
	"github.com/tsenart/nap"
)

type Config struct {
	// SecretKey encrypts seed phrases at rest.
	SecretKey string `valid:"required"`
}

func New(db *nap.DB, cfg Config) core.WalletStore {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	key, err := deriveKey(cfg.SecretKey)
	if err != nil {
		panic(err)
	}

	wallets, err := lru.New[string, *core.Wallet](256)
	if err != nil {
		panic(err)
	}

	return &walletStore{
		db:      db,
		key:     key,
		wallets: wallets,
	}
}

type walletStore struct {
	db      *nap.DB
	key     []byte
	wallets *lru.Cache[string, *core.Wallet]
}

var (
	psql    = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	columns = []string{"user_id", "seed_phrase", "primary_account", "created_at", "updated_at"}
)

func (s *walletStore) Create(ctx context.Context, wallet *core.Wallet) error {
	sealed, err := encrypt(s.key, wallet.SeedPhrase)
	if err != nil {
		return fmt.Errorf("encrypt seed phrase: %w", err)
	}

	now := time.Now()
	b := psql.Insert("wallets").
		Columns(columns...).
		Values(wallet.UserID, sealed, wallet.PrimaryAccount, now, now).
		Suffix("ON CONFLICT (user_id) DO NOTHING")

	stmt, args := b.MustSql()
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return err
	}

	s.wallets.Remove(wallet.UserID)
	return nil
}

func (s *walletStore) Find(ctx context.Context, userID string) (*core.Wallet, error) {
	if w, ok := s.wallets.Get(userID); ok {
		clone := *w
		return &clone, nil
	}

	w, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.wallets.Add(userID, w)
	clone := *w
	return &clone, nil
}

func (s *walletStore) find(ctx context.Context, userID string) (*core.Wallet, error) {
	b := psql.Select(columns...).From("wallets").Where(sq.Eq{"user_id": userID})
	stmt, args := b.MustSql()
	row := s.db.QueryRowContext(ctx, stmt, args...)
	return s.scan(row)
}

func (s *walletStore) UpdatePrimaryAccount(ctx context.Context, userID, address string) error {
	b := psql.Update("wallets").
		Set("primary_account", address).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"user_id": userID})

	stmt, args := b.MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	if n, err := r.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}

	s.wallets.Remove(userID)
	return nil
}

// List pages wallets ordered by user id, starting after offset.
func (s *walletStore) List(ctx context.Context, offset string, limit int) ([]*core.Wallet, error) {
	b := psql.Select(columns...).
		From("wallets").
		Where(sq.Gt{"user_id": offset}).
		OrderBy("user_id").
		Limit(uint64(limit))

	stmt, args := b.MustSql()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []*core.Wallet
	for rows.Next() {
		w, err := s.scan(rows)
		if err != nil {
			return nil, err
		}

		wallets = append(wallets, w)
	}

	return wallets, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *walletStore) scan(row scanner) (*core.Wallet, error) {
	var (
		wallet core.Wallet
		sealed string
	)

	if err := row.Scan(&wallet.UserID, &sealed, &wallet.PrimaryAccount, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		return nil, err
	}

	phrase, err := decrypt(s.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt seed phrase of %s: %w", wallet.UserID, err)
	}

	wallet.SeedPhrase = phrase
	return &wallet, nil
}
