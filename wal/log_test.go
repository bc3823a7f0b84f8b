package wal

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sharedcode/storefront/kv"
)

// seqMinter is the in-process stand-in for the ID service.
type seqMinter struct {
	mu  sync.Mutex
	n   int
	now func() time.Time
}

func (m *seqMinter) Mint(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return KeyPrefix + FormatTime(m.now()) + strconv.Itoa(m.n), nil
}

func newTestLog() (*Log, *kv.Mock) {
	db := kv.NewMock()
	return New(db, &seqMinter{now: time.Now}), db
}

func TestAppendAndCount(t *testing.T) {
	l, db := newTestLog()
	ctx := context.Background()

	key, err := l.Append(ctx, NewReceived("c-1", StatusPending, "caller", "endpoint"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := KeyTime(key); err != nil {
		t.Errorf("appended key %s: %v", key, err)
	}
	if _, err := l.Append(ctx, NewSent("c-1", StatusSuccess, "endpoint", "caller")); err != nil {
		t.Fatal(err)
	}
	// An entity row must not count as a log record.
	if err := db.Set(ctx, "entity-1", []byte(`{"stock":1}`)); err != nil {
		t.Fatal(err)
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestAppendStampsDateTime(t *testing.T) {
	l, db := newTestLog()
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 123456000, time.UTC)
	l.Now = func() time.Time { return fixed }
	ctx := context.Background()

	key, err := l.Append(ctx, NewReceived("c-1", StatusPending, "", ""))
	if err != nil {
		t.Fatal(err)
	}
	var rec Record
	found, err := db.GetStruct(ctx, key, &rec)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if rec.DateTime != "20260506070809123456" {
		t.Errorf("dateTime = %s", rec.DateTime)
	}
}

func TestFindByKey(t *testing.T) {
	l, _ := newTestLog()
	ctx := context.Background()

	key, err := l.Append(ctx, NewReceived("c-1", StatusPending, "caller", "endpoint"))
	if err != nil {
		t.Fatal(err)
	}
	entry, found, err := l.Find(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("appended record not found by key")
	}
	if entry.Key != key || entry.Record.ID != "c-1" || entry.Record.Kind != KindReceived {
		t.Errorf("entry = %+v", entry)
	}

	if _, found, err := l.Find(ctx, KeyPrefix+"202601020304056789011"); err != nil || found {
		t.Errorf("absent key: found=%v err=%v", found, err)
	}
}

func TestGroupsWithin(t *testing.T) {
	l, _ := newTestLog()
	ctx := context.Background()

	// Interleave two correlations; grouping must pull them apart and keep
	// each group in append order.
	if _, err := l.Append(ctx, NewReceived("a", StatusPending, "", "")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Append(ctx, NewReceived("b", StatusPending, "", "")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Append(ctx, NewSent("a", StatusSuccess, "", "")); err != nil {
		t.Fatal(err)
	}

	groups, err := l.GroupsWithin(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Correlation != "a" || groups[1].Correlation != "b" {
		t.Fatalf("group order %s, %s", groups[0].Correlation, groups[1].Correlation)
	}
	a := groups[0]
	if len(a.Entries) != 2 {
		t.Fatalf("group a has %d entries", len(a.Entries))
	}
	if a.Entries[0].Record.Kind != KindReceived || a.Last().Record.Kind != KindSent {
		t.Errorf("group a out of order: %s then %s", a.Entries[0].Record.Kind, a.Last().Record.Kind)
	}
	if !a.Last().Record.Terminal() {
		t.Error("group a should end terminal")
	}
}

func TestGroupsWithinWindow(t *testing.T) {
	db := kv.NewMock()
	now := time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-2 * time.Hour)
	minter := &seqMinter{now: func() time.Time { return clock }}
	l := New(db, minter)
	l.Now = func() time.Time { return clock }
	ctx := context.Background()

	// One record two hours ago, one just now.
	if _, err := l.Append(ctx, NewReceived("old", StatusPending, "", "")); err != nil {
		t.Fatal(err)
	}
	clock = now
	if _, err := l.Append(ctx, NewReceived("fresh", StatusPending, "", "")); err != nil {
		t.Fatal(err)
	}

	groups, err := l.GroupsWithin(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Correlation != "fresh" {
		t.Fatalf("got %+v, want only the fresh group", groups)
	}

	groups, err = l.GroupsWithin(ctx, 3*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Errorf("wider window got %d groups, want 2", len(groups))
	}
}

func TestGroupCheckout(t *testing.T) {
	plain := Group{Entries: []Entry{
		{Record: NewReceived("c", StatusPending, "", "http://gw/stock/add/i1/1")},
	}}
	if plain.Checkout() {
		t.Error("plain group misread as checkout")
	}
	saga := Group{Entries: []Entry{
		{Record: NewReceived("c", StatusPending, "", "http://gw/orders/checkout/o1")},
		{Record: NewReceived("c", StatusSuccess, "http://gw/stock/subtract/i1/1", "")},
	}}
	if !saga.Checkout() {
		t.Error("checkout group not recognized")
	}
}
