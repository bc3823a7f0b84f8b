package ids

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/wal"
)

func TestMintFormat(t *testing.T) {
	m := NewMinter(kv.NewMock())
	m.Now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.UTC)
	}
	ctx := context.Background()

	key, err := m.Mint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if key != "log:202603141509265358971" {
		t.Errorf("got %s", key)
	}
	if !strings.HasPrefix(key, wal.KeyPrefix) {
		t.Errorf("key %s lacks log: prefix", key)
	}
	if _, err := wal.KeyTime(key); err != nil {
		t.Errorf("key %s: embedded timestamp does not parse: %v", key, err)
	}
}

func TestMintOrderedWithinProcess(t *testing.T) {
	m := NewMinter(kv.NewMock())
	ctx := context.Background()

	prev := ""
	for i := 0; i < 100; i++ {
		key, err := m.Mint(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if key <= prev {
			t.Fatalf("key %s not lexicographically after %s", key, prev)
		}
		prev = key
	}
}

func TestMintUniqueUnderConcurrency(t *testing.T) {
	m := NewMinter(kv.NewMock())
	// Freeze the clock so only the counter keeps keys apart.
	now := time.Now()
	m.Now = func() time.Time { return now }
	ctx := context.Background()

	const n = 200
	keys := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := m.Mint(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			keys <- key
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[string]bool)
	for key := range keys {
		if seen[key] {
			t.Fatalf("duplicate key %s", key)
		}
		seen[key] = true
	}
}

func TestMintCounterStoreError(t *testing.T) {
	db := kv.NewMock()
	db.Err = context.DeadlineExceeded
	m := NewMinter(db)
	if _, err := m.Mint(context.Background()); err == nil {
		t.Error("expected counter-store error")
	}
}
