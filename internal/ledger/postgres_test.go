package ledger_test

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/keygate/internal/ledger"
	"go.uber.org/zap"
)

func TestPostgresLedger_contract(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set — skipping postgres ledger test")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	prefix := "test-" + uuid.NewString() + "-"
	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM issuance_records WHERE hash LIKE $1", prefix+"%") //nolint:errcheck
	})

	runLedgerContract(t, ledger.NewPostgres(pool, zap.NewNop()), prefix)
}
