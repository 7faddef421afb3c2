package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	elementorder "github.com/kaifufi/element-order-sdk-go"
)

// Schema creates the order queue table
const Schema = `
CREATE TABLE IF NOT EXISTS element_orders (
    id VARCHAR(66) PRIMARY KEY,
    target VARCHAR(42) NOT NULL,
    maker VARCHAR(42) NOT NULL,
    created_at BIGINT NOT NULL,
    data JSONB NOT NULL,
    source VARCHAR(32) NOT NULL,
    queued_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_element_orders_target ON element_orders(target);
CREATE INDEX IF NOT EXISTS idx_element_orders_maker ON element_orders(maker);
`

const upsertOrder = `
INSERT INTO element_orders (id, target, maker, created_at, data, source)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    target = EXCLUDED.target,
    maker = EXCLUDED.maker,
    created_at = EXCLUDED.created_at,
    data = EXCLUDED.data,
    source = EXCLUDED.source,
    queued_at = CURRENT_TIMESTAMP`

// OrderQueue persists validated orders in PostgreSQL
type OrderQueue struct {
	Pool *pgxpool.Pool
}

// NewOrderQueue initializes a new database connection pool
func NewOrderQueue(ctx context.Context, connString string) (*OrderQueue, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &OrderQueue{Pool: pool}, nil
}

// Migrate creates the queue table if it does not exist
func (q *OrderQueue) Migrate(ctx context.Context) error {
	if _, err := q.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (q *OrderQueue) Close() {
	q.Pool.Close()
}

// Push upserts orders in one batch. An order id already queued is replaced.
func (q *OrderQueue) Push(ctx context.Context, orders []elementorder.QueuedOrder) error {
	if len(orders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, order := range orders {
		args, err := queueRow(order)
		if err != nil {
			return err
		}
		batch.Queue(upsertOrder, args...)
	}

	results := q.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, order := range orders {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to queue order %s: %w", order.ID, err)
		}
	}
	return nil
}

// Get retrieves a queued order by id
func (q *OrderQueue) Get(ctx context.Context, id string) (*elementorder.QueuedOrder, error) {
	var (
		queued elementorder.QueuedOrder
		data   []byte
	)
	err := q.Pool.QueryRow(ctx,
		"SELECT id, target, maker, created_at, data, source FROM element_orders WHERE id = $1",
		id).Scan(&queued.ID, &queued.Target, &queued.Maker, &queued.CreatedAt, &data, &queued.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if err := json.Unmarshal(data, &queued.Data); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return &queued, nil
}

// ListByTarget retrieves the queued orders of an NFT contract, newest first
func (q *OrderQueue) ListByTarget(ctx context.Context, target string, limit int) ([]elementorder.QueuedOrder, error) {
	rows, err := q.Pool.Query(ctx,
		"SELECT id, target, maker, created_at, source FROM element_orders WHERE target = $1 ORDER BY created_at DESC LIMIT $2",
		target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []elementorder.QueuedOrder
	for rows.Next() {
		var order elementorder.QueuedOrder
		if err := rows.Scan(&order.ID, &order.Target, &order.Maker, &order.CreatedAt, &order.Source); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Delete removes orders, e.g. after a fill or cancel event
func (q *OrderQueue) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.Pool.Exec(ctx, "DELETE FROM element_orders WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// queueRow returns the upsertOrder arguments of order
func queueRow(order elementorder.QueuedOrder) ([]interface{}, error) {
	if order.ID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	data, err := json.Marshal(order.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}
	return []interface{}{order.ID, order.Target, order.Maker, order.CreatedAt, data, order.Source}, nil
}
