// Package pricedb mirrors the canonical snapshot into PostgreSQL.
package pricedb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotprices/internal/models"
)

// DefaultBatchSize is the number of items queued per round trip.
const DefaultBatchSize = 500

const dayLayout = "2006-01-02"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	store       TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT,
	price       NUMERIC(12,2) NOT NULL,
	is_weighted BOOLEAN NOT NULL DEFAULT FALSE,
	unit        TEXT NOT NULL DEFAULT '',
	quantity    DOUBLE PRECISION NOT NULL DEFAULT 0,
	run_id      TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (store, id)
);

CREATE TABLE IF NOT EXISTS price_history (
	store       TEXT NOT NULL,
	id          TEXT NOT NULL,
	position    INTEGER NOT NULL,
	observed_on DATE NOT NULL,
	price       NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (store, id, position),
	FOREIGN KEY (store, id) REFERENCES products (store, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	day         DATE NOT NULL,
	items       INTEGER NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const (
	upsertProductSQL = `INSERT INTO products
		(store, id, name, description, category, price, is_weighted, unit, quantity, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (store, id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			is_weighted = EXCLUDED.is_weighted,
			unit = EXCLUDED.unit,
			quantity = EXCLUDED.quantity,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()`

	deleteHistorySQL = `DELETE FROM price_history WHERE store = $1 AND id = $2`

	insertHistorySQL = `INSERT INTO price_history (store, id, position, observed_on, price)
		VALUES ($1, $2, $3, $4, $5)`

	// history rows follow through ON DELETE CASCADE
	pruneStaleSQL = `DELETE FROM products WHERE run_id <> $1`

	insertRunSQL = `INSERT INTO runs (run_id, day, items) VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET items = EXCLUDED.items, finished_at = NOW()`
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool      *pgxpool.Pool
	batchSize int
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, batchSize: DefaultBatchSize}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the mirror tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Sync upserts every item and replaces its price history in one transaction.
// Products missing from items are deleted, so the tables hold exactly the snapshot.
func (db *DB) Sync(ctx context.Context, runID uuid.UUID, day string, items []models.CanonicalItem) error {
	runDay, err := time.Parse(dayLayout, day)
	if err != nil {
		return fmt.Errorf("invalid run day %q: %w", day, err)
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for start := 0; start < len(items); start += db.batchSize {
		end := min(start+db.batchSize, len(items))

		b, err := BuildBatch(runID, items[start:end])
		if err != nil {
			return err
		}

		if err := sendBatch(ctx, tx, b); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, pruneStaleSQL, runID.String()); err != nil {
		return fmt.Errorf("failed to prune dropped products: %w", err)
	}

	if _, err := tx.Exec(ctx, insertRunSQL, runID.String(), runDay, len(items)); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mirror: %w", err)
	}

	return nil
}

// BuildBatch queues the statements mirroring items.
func BuildBatch(runID uuid.UUID, items []models.CanonicalItem) (*pgx.Batch, error) {
	b := &pgx.Batch{}

	for _, item := range items {
		b.Queue(upsertProductSQL,
			item.Store, item.ID.String(), item.Name, item.Description, item.Category,
			item.Price, item.IsWeighted, item.Unit, item.Quantity, runID.String(),
		)
		b.Queue(deleteHistorySQL, item.Store, item.ID.String())

		for pos, point := range item.PriceHistory {
			observed, err := time.Parse(dayLayout, point.Date)
			if err != nil {
				return nil, fmt.Errorf("item %s: invalid price date %q: %w", item.Key(), point.Date, err)
			}

			b.Queue(insertHistorySQL, item.Store, item.ID.String(), pos, observed, point.Price)
		}
	}

	return b, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	br := tx.SendBatch(ctx, b)

	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to mirror batch statement %d: %w", i, err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return nil
}

// CountPriceHistory returns the number of stored history rows for an item.
func (db *DB) CountPriceHistory(ctx context.Context, store string, id models.ItemID) (int, error) {
	var n int

	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM price_history WHERE store = $1 AND id = $2`,
		store, id.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}

	return n, nil
}
