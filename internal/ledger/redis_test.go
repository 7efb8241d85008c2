package ledger_test

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/keygate/internal/ledger"
	"github.com/redis/go-redis/v9"
)

func newRedisLedger(t *testing.T) *ledger.RedisLedger {
	t.Helper()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set — skipping redis ledger test")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	prefix := "keygate-test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	})
	return ledger.NewRedis(client, ledger.WithKeyPrefix(prefix))
}

func TestRedisLedger_contract(t *testing.T) {
	runLedgerContract(t, newRedisLedger(t), "")
}

func TestRedisLedger_list(t *testing.T) {
	l := newRedisLedger(t)

	recs, err := l.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty ledger, got %d records", len(recs))
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.Put(ctx, newRecord("second", base.Add(time.Second))) //nolint:errcheck
	l.Put(ctx, newRecord("first", base))                   //nolint:errcheck

	recs, err = l.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Hash != "first" || recs[1].Hash != "second" {
		t.Errorf("unexpected list result: %+v", recs)
	}
}
