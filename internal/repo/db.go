package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/pricing"
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB is a DBTX that can open transactions.
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

func validUUID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// parseMoney converts a NUMERIC rendered as text. NaN and garbage fail.
func parseMoney(raw string) (pricing.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return pricing.Zero, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}

func parseOptionalMoney(raw *string) (*pricing.Money, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parseMoney(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func jsonOrNil(v any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}
