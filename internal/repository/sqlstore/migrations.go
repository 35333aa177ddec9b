package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Migration is a schema step. Up and Down use {{ID}}, {{MONEY}} and {{JSON}}
// for the column types that differ between dialects.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order.
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: migrationV1Up, Down: migrationV1Down},
	{Version: "1.1.0", Up: migrationV11Up, Down: migrationV11Down},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS products (
    id {{ID}},
    name TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    price {{MONEY}} NOT NULL DEFAULT 0,
    stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
    published BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS carts (
    id {{ID}},
    owner_id BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_owner_pending ON carts(owner_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS cart_items (
    id {{ID}},
    cart_id BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
    product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    price {{MONEY}} NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (cart_id, product_id)
);

CREATE TABLE IF NOT EXISTS invoices (
    id {{ID}},
    subtotal {{MONEY}} NOT NULL DEFAULT 0,
    tax {{MONEY}} NOT NULL DEFAULT 0,
    total {{MONEY}} NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
    id {{ID}},
    invoice_id BIGINT NOT NULL UNIQUE REFERENCES invoices(id),
    owner_id BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    amount_paid {{MONEY}} NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS order_items (
    id {{ID}},
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id BIGINT NOT NULL,
    product_name TEXT NOT NULL,
    product_code TEXT NOT NULL,
    unit_price {{MONEY}} NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    total_price {{MONEY}} NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (order_id, product_id)
);

CREATE TABLE IF NOT EXISTS invoice_items (
    id {{ID}},
    invoice_id BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    product_id BIGINT NOT NULL,
    product_name TEXT NOT NULL,
    product_code TEXT NOT NULL,
    unit_price {{MONEY}} NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    total_price {{MONEY}} NOT NULL,
    tax_rate {{MONEY}} NOT NULL DEFAULT 20.00,
    tax_amount {{MONEY}} NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (invoice_id, product_id)
);

CREATE TABLE IF NOT EXISTS payments (
    id {{ID}},
    order_id BIGINT NOT NULL REFERENCES orders(id),
    user_id BIGINT NOT NULL,
    amount {{MONEY}} NOT NULL,
    payment_method TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    reference TEXT NOT NULL UNIQUE,
    payment_details {{JSON}},
    paid_at TIMESTAMP NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order_success ON payments(order_id) WHERE status = 'success';

CREATE TABLE IF NOT EXISTS transactions (
    id {{ID}},
    reference TEXT NOT NULL UNIQUE,
    payment_id BIGINT NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
    transaction_type TEXT NOT NULL,
    amount {{MONEY}} NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    gateway_reference TEXT NULL,
    gateway_response {{JSON}},
    metadata {{JSON}},
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS receipts (
    id {{ID}},
    order_id BIGINT NOT NULL REFERENCES orders(id),
    payment_id BIGINT NOT NULL REFERENCES payments(id),
    reference TEXT NOT NULL UNIQUE,
    amount {{MONEY}} NOT NULL,
    payment_method TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS receipts;
DROP TABLE IF EXISTS transactions;
DROP TABLE IF EXISTS payments;
DROP TABLE IF EXISTS invoice_items;
DROP TABLE IF EXISTS order_items;
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS invoices;
DROP TABLE IF EXISTS cart_items;
DROP TABLE IF EXISTS carts;
DROP TABLE IF EXISTS products;
`

// Stock decrement ledger and read-path indexes.
const migrationV11Up = `
CREATE TABLE IF NOT EXISTS stock_movements (
    id {{ID}},
    order_id BIGINT NOT NULL,
    product_id BIGINT NOT NULL,
    quantity INTEGER NOT NULL,
    applied BOOLEAN NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (order_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
CREATE INDEX IF NOT EXISTS idx_transactions_payment ON transactions(payment_id);
CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_cart_items_cart;
DROP INDEX IF EXISTS idx_transactions_payment;
DROP INDEX IF EXISTS idx_payments_order;
DROP TABLE IF EXISTS stock_movements;
`

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func (s *Store) ddl(script string) string {
	r := strings.NewReplacer(
		"{{ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{MONEY}}", "TEXT",
		"{{JSON}}", "TEXT",
	)
	if s.dialect == Postgres {
		r = strings.NewReplacer(
			"{{ID}}", "BIGSERIAL PRIMARY KEY",
			"{{MONEY}}", "NUMERIC",
			"{{JSON}}", "JSONB",
		)
	}
	return r.Replace(script)
}

// appliedVersions returns the recorded schema versions, highest first.
func (s *Store) appliedVersions(ctx context.Context) ([]*semver.Version, error) {
	rows, err := s.query(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	var versions []*semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema versions: %w", err)
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))
	return versions, nil
}

// SchemaVersion returns the highest applied migration, or 0.0.0.
func (s *Store) SchemaVersion(ctx context.Context) (*semver.Version, error) {
	versions, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return semver.MustParse("0.0.0"), nil
	}
	return versions[0], nil
}

// ApplyMigrations runs all pending migrations, each in its own transaction.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	if _, err := s.exec(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}

		err = s.WithTx(ctx, func(ctx context.Context) error {
			if _, err := s.exec(ctx, s.ddl(m.Up)); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			if _, err := s.exec(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		current = v
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func (s *Store) RollbackMigration(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	var m *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			m = &AllMigrations[i]
			break
		}
	}
	if m == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, s.ddl(m.Down)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
		}
		if _, err := s.exec(ctx, "DELETE FROM schema_version WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("failed to remove migration record %s: %w", m.Version, err)
		}
		return nil
	})
}
