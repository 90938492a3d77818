package property

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/beanpay/core"
	"github.com/tsenart/nap"
)

type store struct {
	db *nap.DB
}

func New(db *nap.DB) core.PropertyStore {
	return &store{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Get leaves value untouched when the key has never been set.
func (s *store) Get(ctx context.Context, key string, value any) error {
	stmt, args := psql.Select("value").From("properties").Where(sq.Eq{"key": key}).MustSql()

	var raw []byte
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&raw); err == nil {
		return json.Unmarshal(raw, value)
	} else if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else {
		return err
	}
}

func (s *store) Set(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	stmt, args := psql.Insert("properties").
		Columns("key", "value").
		Values(key, jsonValue).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = properties.version + 1").
		MustSql()

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to set property: %w", err)
	}

	return nil
}
