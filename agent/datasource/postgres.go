package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
)

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID     string `bun:"order_id,pk"`
	CustomerID  string `bun:"customer_id,nullzero"`
	Status      string `bun:"status"`
	Carrier     string `bun:"carrier,nullzero"`
	ETA         string `bun:"eta,nullzero"`
	DeliveredAt string `bun:"delivered_at,nullzero"`
}

func (r orderRow) toMap() map[string]any {
	out := map[string]any{
		"order_id": r.OrderID,
		"status":   r.Status,
	}
	for k, v := range map[string]string{
		"customer_id":  r.CustomerID,
		"carrier":      r.Carrier,
		"eta":          r.ETA,
		"delivered_at": r.DeliveredAt,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Postgres serves orders from the "orders" table.
type Postgres struct {
	db *bun.DB
}

var _ actionx.OrderSource = (*Postgres)(nil)

// OpenPostgres connects with pgdriver; the connection is lazy.
func OpenPostgres(dsn string) *Postgres {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return NewPostgres(sqldb)
}

// NewPostgres wraps an existing *sql.DB speaking the Postgres dialect.
func NewPostgres(sqldb *sql.DB) *Postgres {
	return &Postgres{db: bun.NewDB(sqldb, pgdialect.New())}
}

func (p *Postgres) GetOrder(ctx context.Context, orderID string) (map[string]any, error) {
	var row orderRow
	err := p.db.NewSelect().
		Model(&row).
		Where("o.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return row.toMap(), nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
