// Package stock is the stock service: it owns item records {stock, price} and
// records every mutation in its write-ahead log.
package stock

import (
	"context"
	"encoding/json"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/wal"
)

// ItemValue is one item record. Stock and price never go negative at a
// committed snapshot.
type ItemValue struct {
	Stock int `json:"stock"`
	Price int `json:"price"`
}

// Service implements the stock operations. Every mutation follows the same
// write-ahead discipline: a Received/Pending record, then the entity write
// coupled atomically with its Create/Update record, then a terminal Sent.
// A missing terminal Sent is what the sweeper keys on.
type Service struct {
	db  kv.Store
	log *wal.Log
}

// NewService returns a stock service over its store and log.
func NewService(db kv.Store, l *wal.Log) *Service {
	return &Service{db: db, log: l}
}

// Log exposes the service's write-ahead log.
func (s *Service) Log() *wal.Log {
	return s.log
}

// CreateItem allocates a fresh item id with zero stock at the given price.
func (s *Service) CreateItem(ctx context.Context, req wal.Request, price int) (string, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return "", err
	}

	itemID := storefront.NewUUID().String()
	value := ItemValue{Stock: 0, Price: price}
	raw, err := storefront.DefaultMarshaler.Marshal(value)
	if err != nil {
		return "", err
	}
	if err := s.commit(ctx, wal.NewCreate(req.Correlation, itemID, raw), itemID, raw); err != nil {
		return "", s.fail(ctx, req, err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return "", err
	}
	return itemID, nil
}

// FindItem reads the current value of an item.
func (s *Service) FindItem(ctx context.Context, req wal.Request, itemID string) (ItemValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return ItemValue{}, err
	}
	value, err := s.load(ctx, itemID)
	if err != nil {
		return ItemValue{}, s.fail(ctx, req, err)
	}
	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return ItemValue{}, err
	}
	return value, nil
}

// AddStock increases an item's stock by amount.
func (s *Service) AddStock(ctx context.Context, req wal.Request, itemID string, amount int) (ItemValue, error) {
	return s.adjust(ctx, req, itemID, amount)
}

// SubtractStock decreases an item's stock by amount, failing with Underflow
// when the result would be negative.
func (s *Service) SubtractStock(ctx context.Context, req wal.Request, itemID string, amount int) (ItemValue, error) {
	return s.adjust(ctx, req, itemID, -amount)
}

func (s *Service) adjust(ctx context.Context, req wal.Request, itemID string, delta int) (ItemValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return ItemValue{}, err
	}

	old, err := s.load(ctx, itemID)
	if err != nil {
		return ItemValue{}, s.fail(ctx, req, err)
	}
	updated := old
	updated.Stock += delta
	if updated.Stock < 0 {
		return ItemValue{}, s.fail(ctx, req,
			storefront.Errorf(storefront.Underflow, "item %s: stock cannot get reduced below zero", itemID))
	}

	oldRaw, err := storefront.DefaultMarshaler.Marshal(old)
	if err != nil {
		return ItemValue{}, err
	}
	newRaw, err := storefront.DefaultMarshaler.Marshal(updated)
	if err != nil {
		return ItemValue{}, err
	}
	if err := s.commit(ctx, wal.NewUpdate(req.Correlation, itemID, oldRaw, newRaw), itemID, newRaw); err != nil {
		return ItemValue{}, s.fail(ctx, req, err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return ItemValue{}, err
	}
	return updated, nil
}

// commit writes the entity and its log record in one atomic pipelined commit.
func (s *Service) commit(ctx context.Context, rec wal.Record, entityID string, entity json.RawMessage) error {
	logKey, err := s.log.NewKey(ctx)
	if err != nil {
		return err
	}
	encoded, err := s.log.Encode(rec)
	if err != nil {
		return err
	}
	return s.db.Pipelined(ctx, func(b kv.Batch) error {
		b.Set(logKey, encoded)
		b.Set(entityID, entity)
		return nil
	})
}

func (s *Service) load(ctx context.Context, itemID string) (ItemValue, error) {
	var value ItemValue
	found, err := s.db.GetStruct(ctx, itemID, &value)
	if err != nil {
		return ItemValue{}, err
	}
	if !found {
		return ItemValue{}, storefront.Errorf(storefront.NotFound, "item %s not found", itemID)
	}
	return value, nil
}

// fail closes the request with a terminal Sent/Failure and passes err through.
func (s *Service) fail(ctx context.Context, req wal.Request, err error) error {
	rec := wal.NewSent(req.Correlation, wal.StatusFailure, req.Endpoint, req.Caller)
	rec.Cause = err.Error()
	if _, appendErr := s.log.Append(ctx, rec); appendErr != nil {
		return appendErr
	}
	return err
}
