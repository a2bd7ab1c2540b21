package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ParseKey decodes a base58 key read from a text column.
func ParseKey(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode stored key %q: %w", s, err)
	}
	return key, nil
}

// ParseOptionalKey decodes a nullable key column.
func ParseOptionalKey(s *string) (*solana.PublicKey, error) {
	if s == nil {
		return nil, nil
	}
	key, err := ParseKey(*s)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ToBigint converts an unsigned amount to a BIGINT parameter.
func ToBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: amount %d exceeds storage range", domain.ErrMalformed, v)
	}
	return int64(v), nil
}

// sqlstateNumericOverflow is numeric_value_out_of_range.
const sqlstateNumericOverflow = "22003"

// WrapOverflow turns a BIGINT overflow raised by Postgres into
// domain.ErrMalformed. Other errors are returned unchanged.
func WrapOverflow(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateNumericOverflow {
		return fmt.Errorf("%w: amount exceeds storage range", domain.ErrMalformed)
	}
	return err
}
