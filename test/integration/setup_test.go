package integration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/dashboard"
	"github.com/pathlab/pathlab/internal/domain/diagnostics"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/db"
)

// databaseURLEnv names the Postgres instance the suite runs against. The
// suite is skipped when it is unset.
const databaseURLEnv = "PATHLAB_TEST_DATABASE_URL"

var (
	globalPool *pgxpool.Pool
	schemaName string
)

func TestMain(m *testing.M) {
	url := os.Getenv(databaseURLEnv)
	if url == "" {
		fmt.Fprintf(os.Stderr, "%s not set, skipping integration tests\n", databaseURLEnv)
		os.Exit(0)
	}

	ctx := context.Background()
	pool, cleanup, err := setupSchema(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test schema: %v\n", err)
		os.Exit(1)
	}
	globalPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupSchema creates a throwaway schema, points the pool's search_path at
// it and applies every migration.
func setupSchema(ctx context.Context, url string) (*pgxpool.Pool, func(), error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return nil, nil, err
	}
	schemaName = "it_" + hex.EncodeToString(buf)

	admin, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schemaName); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("create schema: %w", err)
	}
	dropSchema := func() {
		admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schemaName+" CASCADE")
		admin.Close()
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		dropSchema()
		return nil, nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		dropSchema()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	if _, err := db.NewMigrator(pool, os.DirFS(findMigrationsDir())).Up(ctx); err != nil {
		pool.Close()
		dropSchema()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, func() {
		pool.Close()
		dropSchema()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// services is the fully wired application on the test schema.
type services struct {
	catalog     *catalog.Service
	identity    *identity.Service
	billing     *billing.Service
	diagnostics *diagnostics.Service
	dashboard   *dashboard.Service
}

func newServices() *services {
	txm := db.NewTxManager(globalPool)
	cat := catalog.NewService(catalog.NewTestRepoPG(globalPool), txm)
	ident := identity.NewService(identity.NewPatientRepoPG(globalPool), identity.NewUserRepoPG(globalPool), txm)
	bill := billing.NewService(billing.NewPaymentRepoPG(globalPool), txm)
	diag := diagnostics.NewService(
		diagnostics.NewOrderRepoPG(globalPool),
		diagnostics.NewOrderTestRepoPG(globalPool),
		diagnostics.NewSampleRepoPG(globalPool),
		diagnostics.NewResultRepoPG(globalPool),
		txm, ident, ident, cat, bill,
	)
	return &services{
		catalog:     cat,
		identity:    ident,
		billing:     bill,
		diagnostics: diag,
		dashboard:   dashboard.NewService(dashboard.NewRepoPG(globalPool), txm),
	}
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(buf)
}
