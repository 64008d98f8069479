// Package dbtest opens in-memory SQLite databases carrying the shop schema
// for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The statements mirror pkg/migrate/migrations with SQLite types.
var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		owner_id TEXT NULL,
		name TEXT NOT NULL,
		brand TEXT NULL,
		category TEXT NOT NULL,
		description TEXT NULL,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		compare_at_price_cents INTEGER NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		sold INTEGER NOT NULL DEFAULT 0 CHECK (sold >= 0),
		is_approved BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		sku TEXT NULL,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		compare_at_price_cents INTEGER NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		attributes TEXT,
		is_default BOOLEAN NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		variant_id TEXT NULL,
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		order_id TEXT NULL,
		actor_user_id TEXT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		variant_id TEXT NULL,
		line_key TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		name TEXT NOT NULL,
		sku TEXT NULL,
		price_cents INTEGER NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (cart_id, line_key)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		payment_method TEXT NOT NULL DEFAULT 'cod',
		currency TEXT NOT NULL DEFAULT 'VND',
		sub_total_cents INTEGER NOT NULL,
		shipping_fee_cents INTEGER NOT NULL DEFAULT 0,
		discount_cents INTEGER NOT NULL DEFAULT 0,
		total_amount_cents INTEGER NOT NULL,
		shipping_full_name TEXT NOT NULL,
		shipping_phone TEXT NOT NULL,
		shipping_email TEXT NOT NULL DEFAULT '',
		shipping_address_line TEXT NOT NULL,
		shipping_ward TEXT NOT NULL DEFAULT '',
		shipping_district TEXT NOT NULL DEFAULT '',
		shipping_city TEXT NOT NULL,
		note TEXT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		variant_id TEXT NULL,
		name TEXT NOT NULL,
		sku TEXT NULL,
		unit_price_cents INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		line_total_cents INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE order_status_entries (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		actor_id TEXT NULL,
		actor_role TEXT NULL,
		note TEXT NULL,
		created_at DATETIME,
		UNIQUE (order_id, seq)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NULL
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh database with the full schema. The pool is pinned to a
// single connection, so code under test must run every statement of a
// transaction on the tx handle it was given.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
