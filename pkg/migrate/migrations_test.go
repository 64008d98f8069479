package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir() error: %v", err)
	}
}

func TestMigrationsContainCoreSchema(t *testing.T) {
	checks := map[string][]string{
		"*_create_catalog_tables.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"CREATE TABLE IF NOT EXISTS product_variants",
			"CREATE TABLE IF NOT EXISTS stock_movements",
			"stock integer NOT NULL DEFAULT 0 CHECK (stock >= 0)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_product_variants_one_default",
		},
		"*_create_cart_tables.sql": {
			"CONSTRAINT carts_user_id_key UNIQUE (user_id)",
			"CONSTRAINT cart_items_cart_line_key UNIQUE (cart_id, line_key)",
		},
		"*_create_order_tables.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"version integer NOT NULL DEFAULT 1",
			"CREATE TABLE IF NOT EXISTS order_status_entries",
			"CONSTRAINT order_status_entries_order_seq_key UNIQUE (order_id, seq)",
		},
		"*_create_outbox_tables.sql": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
	}

	for pattern, statements := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob %s: %v", pattern, err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		for _, sub := range statements {
			if !strings.Contains(string(data), sub) {
				t.Errorf("%s missing %q", matches[0], sub)
			}
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration() error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_index.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), " !! "); err == nil {
		t.Fatal("expected error for unusable name")
	}
}

func TestValidateDirRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"20260101000000_no_down.sql":       "-- +goose Up\nSELECT 1;\n",
		"20260101000000_swapped.sql":       "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		"20260101000000_open_block.sql":    "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"20261399000000_bad_timestamp.sql": "-- +goose Up\n-- +goose Down\n",
		"2026_short.sql":                   "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := migrate.ValidateDir(dir); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestEmbeddedMigrationsMatchSourceTree(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := migrate.EmbeddedFiles()
	if err != nil {
		t.Fatalf("EmbeddedFiles() error: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("embedded %d migrations, found %d on disk", len(embedded), len(onDisk))
	}
}
