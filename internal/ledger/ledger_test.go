package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/keygate/internal/ledger"
)

var ctx = context.Background()

func newRecord(hash string, issuedAt time.Time) *ledger.Record {
	return &ledger.Record{
		ID:        uuid.New(),
		Hash:      hash,
		KeyDigest: "digest-" + hash,
		IssuedAt:  issuedAt.UTC().Truncate(time.Microsecond),
	}
}

// runLedgerContract exercises the behaviour every backend must share.
// prefix keeps hashes unique when the backend is a shared external store.
func runLedgerContract(t *testing.T, l ledger.Ledger, prefix string) {
	t.Helper()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		_, err := l.Get(ctx, prefix+"missing")
		if !errors.Is(err, ledger.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		has, err := l.Has(ctx, prefix+"missing")
		if err != nil {
			t.Fatal(err)
		}
		if has {
			t.Error("expected Has=false for missing hash")
		}
	})

	t.Run("put then get", func(t *testing.T) {
		rec := newRecord(prefix+"abc123", base)
		won, err := l.Put(ctx, rec)
		if err != nil {
			t.Fatal(err)
		}
		if !won {
			t.Fatal("expected first Put to win")
		}

		has, err := l.Has(ctx, rec.Hash)
		if err != nil {
			t.Fatal(err)
		}
		if !has {
			t.Error("expected Has=true after Put")
		}

		got, err := l.Get(ctx, rec.Hash)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != rec.ID || got.KeyDigest != rec.KeyDigest || !got.IssuedAt.Equal(rec.IssuedAt) {
			t.Errorf("got %+v, want %+v", got, rec)
		}
	})

	t.Run("second put loses", func(t *testing.T) {
		first := newRecord(prefix+"dup", base)
		if _, err := l.Put(ctx, first); err != nil {
			t.Fatal(err)
		}
		second := newRecord(prefix+"dup", base.Add(time.Hour))
		second.KeyDigest = "other"
		won, err := l.Put(ctx, second)
		if err != nil {
			t.Fatal(err)
		}
		if won {
			t.Fatal("expected second Put for the same hash to lose")
		}
		got, err := l.Get(ctx, prefix+"dup")
		if err != nil {
			t.Fatal(err)
		}
		if got.KeyDigest != first.KeyDigest {
			t.Errorf("stored record was overwritten: digest %q", got.KeyDigest)
		}
	})

	t.Run("concurrent puts have one winner", func(t *testing.T) {
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := newRecord(prefix+"race", base)
				rec.KeyDigest = fmt.Sprintf("d%d", i)
				won, err := l.Put(ctx, rec)
				if err != nil {
					t.Error(err)
					return
				}
				if won {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly 1 winning Put, got %d", wins)
		}
	})
}

func TestMemoryLedger_contract(t *testing.T) {
	runLedgerContract(t, ledger.NewMemory(), "")
}

func TestMemoryLedger_listOrdered(t *testing.T) {
	l := ledger.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, h := range []string{"c", "a", "b"} {
		if _, err := l.Put(ctx, newRecord(h, base.Add(time.Duration(2-i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := l.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.Hash)
	}
	if want := []string{"b", "a", "c"}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMemoryLedger_listEmpty(t *testing.T) {
	recs, err := ledger.NewMemory().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recs)
	}
}

func TestMemoryLedger_returnsCopies(t *testing.T) {
	l := ledger.NewMemory()
	rec := newRecord("h", time.Now())
	if _, err := l.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.KeyDigest = "mutated-after-put"

	got, _ := l.Get(ctx, "h")
	if got.KeyDigest != "digest-h" {
		t.Errorf("caller mutation leaked into ledger: %q", got.KeyDigest)
	}
	got.KeyDigest = "mutated-after-get"

	again, _ := l.Get(ctx, "h")
	if again.KeyDigest != "digest-h" {
		t.Errorf("returned record aliases stored record: %q", again.KeyDigest)
	}
}
