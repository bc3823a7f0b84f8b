// Package wal implements the per-service write-ahead event log and the
// recovery sweeper that replays it. Records are keyed by ID-service output
// ("log:" + timestamp + counter) so enumeration in key order is enumeration in
// time order.
package wal

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/kv"
)

// Minter produces fresh, unique, lexicographically time-ordered log keys.
// In production this is the ID service client; tests use a local minter.
type Minter interface {
	Mint(ctx context.Context) (string, error)
}

// Log reads and writes a service's write-ahead records.
type Log struct {
	db     kv.Store
	minter Minter

	// Now is the clock used to stamp records; replaceable in tests.
	Now func() time.Time
}

// New returns a Log over the service's store using the given key minter.
func New(db kv.Store, minter Minter) *Log {
	return &Log{db: db, minter: minter, Now: time.Now}
}

// NewKey mints a fresh log key.
func (l *Log) NewKey(ctx context.Context) (string, error) {
	return l.minter.Mint(ctx)
}

// Stamp fills the record's dateTime if it has none.
func (l *Log) Stamp(rec *Record) {
	if rec.DateTime == "" {
		rec.DateTime = FormatTime(l.Now())
	}
}

// Encode stamps rec and marshals it, ready for a pipelined commit alongside
// an entity write.
func (l *Log) Encode(rec Record) ([]byte, error) {
	l.Stamp(&rec)
	return storefront.DefaultMarshaler.Marshal(rec)
}

// Append mints a key, stamps rec and writes it. It returns the key used.
func (l *Log) Append(ctx context.Context, rec Record) (string, error) {
	key, err := l.NewKey(ctx)
	if err != nil {
		return "", err
	}
	ba, err := l.Encode(rec)
	if err != nil {
		return "", err
	}
	if err := l.db.Set(ctx, key, ba); err != nil {
		return "", err
	}
	return key, nil
}

// Entry pairs a log key with its decoded record.
type Entry struct {
	Key    string `json:"id"`
	Record Record `json:"log"`
}

// Group is every record of one correlation id, sorted by dateTime ascending
// (key order breaks ties, which the ID-service counter makes total within one
// service).
type Group struct {
	Correlation string
	Entries     []Entry
}

// Last returns the newest entry of the group.
func (g Group) Last() Entry {
	return g.Entries[len(g.Entries)-1]
}

// Checkout reports whether any hop of the group touches a checkout endpoint.
// Checkout-shaped groups are compensated, never reverted.
func (g Group) Checkout() bool {
	for _, e := range g.Entries {
		if containsCheckout(e.Record.FromURL) || containsCheckout(e.Record.ToURL) {
			return true
		}
	}
	return false
}

// Find reads the record stored under one log key. Found is false when the key
// is absent.
func (l *Log) Find(ctx context.Context, key string) (Entry, bool, error) {
	found, ba, err := l.db.Get(ctx, key)
	if err != nil || !found {
		return Entry{}, found, err
	}
	var rec Record
	if err := storefront.DefaultMarshaler.Unmarshal(ba, &rec); err != nil {
		return Entry{}, false, err
	}
	return Entry{Key: key, Record: rec}, true, nil
}

// Count returns the number of log records in the store.
func (l *Log) Count(ctx context.Context) (int, error) {
	keys, err := l.db.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// All returns every log record, sorted by key (chronological order).
func (l *Log) All(ctx context.Context) ([]Entry, error) {
	return l.within(ctx, time.Time{})
}

// GroupsWithin returns the records whose key-embedded timestamp lies within
// [now-lookBack, now], grouped by correlation id.
func (l *Log) GroupsWithin(ctx context.Context, lookBack time.Duration) ([]Group, error) {
	entries, err := l.within(ctx, l.Now().UTC().Add(-lookBack))
	if err != nil {
		return nil, err
	}
	byCorrelation := make(map[string][]Entry)
	for _, e := range entries {
		byCorrelation[e.Record.ID] = append(byCorrelation[e.Record.ID], e)
	}
	groups := make([]Group, 0, len(byCorrelation))
	for id, es := range byCorrelation {
		sort.Slice(es, func(i, j int) bool {
			if es[i].Record.DateTime != es[j].Record.DateTime {
				return es[i].Record.DateTime < es[j].Record.DateTime
			}
			return es[i].Key < es[j].Key
		})
		groups = append(groups, Group{Correlation: id, Entries: es})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Correlation < groups[j].Correlation })
	return groups, nil
}

// within lists entries at or after the cutoff, sorted by key. A zero cutoff
// returns everything. Keys that do not parse or decode are skipped; they are
// not this service's records.
func (l *Log) within(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	keys, err := l.db.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	var entries []Entry
	for _, key := range keys {
		if !cutoff.IsZero() {
			t, err := KeyTime(key)
			if err != nil || t.Before(cutoff) {
				continue
			}
		}
		found, ba, err := l.db.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var rec Record
		if err := storefront.DefaultMarshaler.Unmarshal(ba, &rec); err != nil {
			continue
		}
		entries = append(entries, Entry{Key: key, Record: rec})
	}
	return entries, nil
}

func containsCheckout(url string) bool {
	return strings.Contains(url, "checkout")
}
