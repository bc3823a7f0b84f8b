// Package payment is the payment service: it owns user records {credit} and
// records every mutation in its write-ahead log, mirroring the stock service's
// discipline.
package payment

import (
	"context"
	"encoding/json"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/wal"
)

// UserValue is one user record. Credit never goes negative at a committed
// snapshot.
type UserValue struct {
	Credit int `json:"credit"`
}

// Service implements the payment operations with the three-log write-ahead
// discipline.
type Service struct {
	db  kv.Store
	log *wal.Log
}

// NewService returns a payment service over its store and log.
func NewService(db kv.Store, l *wal.Log) *Service {
	return &Service{db: db, log: l}
}

// Log exposes the service's write-ahead log.
func (s *Service) Log() *wal.Log {
	return s.log
}

// CreateUser allocates a fresh user with zero credit.
func (s *Service) CreateUser(ctx context.Context, req wal.Request) (string, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return "", err
	}

	userID := storefront.NewUUID().String()
	raw, err := storefront.DefaultMarshaler.Marshal(UserValue{Credit: 0})
	if err != nil {
		return "", err
	}
	if err := s.commit(ctx, wal.NewCreate(req.Correlation, userID, raw), userID, raw); err != nil {
		return "", s.fail(ctx, req, err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return "", err
	}
	return userID, nil
}

// FindUser reads the current value of a user.
func (s *Service) FindUser(ctx context.Context, req wal.Request, userID string) (UserValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return UserValue{}, err
	}
	value, err := s.load(ctx, userID)
	if err != nil {
		return UserValue{}, s.fail(ctx, req, err)
	}
	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return UserValue{}, err
	}
	return value, nil
}

// AddFunds increases a user's credit by amount.
func (s *Service) AddFunds(ctx context.Context, req wal.Request, userID string, amount int) (UserValue, error) {
	return s.adjust(ctx, req, userID, amount)
}

// Pay decreases a user's credit by amount, failing with Underflow when the
// result would be negative.
func (s *Service) Pay(ctx context.Context, req wal.Request, userID string, amount int) (UserValue, error) {
	return s.adjust(ctx, req, userID, -amount)
}

func (s *Service) adjust(ctx context.Context, req wal.Request, userID string, delta int) (UserValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return UserValue{}, err
	}

	old, err := s.load(ctx, userID)
	if err != nil {
		return UserValue{}, s.fail(ctx, req, err)
	}
	updated := old
	updated.Credit += delta
	if updated.Credit < 0 {
		return UserValue{}, s.fail(ctx, req,
			storefront.Errorf(storefront.Underflow, "user %s: credit cannot get reduced below zero", userID))
	}

	oldRaw, err := storefront.DefaultMarshaler.Marshal(old)
	if err != nil {
		return UserValue{}, err
	}
	newRaw, err := storefront.DefaultMarshaler.Marshal(updated)
	if err != nil {
		return UserValue{}, err
	}
	if err := s.commit(ctx, wal.NewUpdate(req.Correlation, userID, oldRaw, newRaw), userID, newRaw); err != nil {
		return UserValue{}, s.fail(ctx, req, err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return UserValue{}, err
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

func (s *Service) load(ctx context.Context, userID string) (UserValue, error) {
	var value UserValue
	found, err := s.db.GetStruct(ctx, userID, &value)
	if err != nil {
		return UserValue{}, err
	}
	if !found {
		return UserValue{}, storefront.Errorf(storefront.NotFound, "user %s not found", userID)
	}
	return value, nil
}

func (s *Service) fail(ctx context.Context, req wal.Request, err error) error {
	rec := wal.NewSent(req.Correlation, wal.StatusFailure, req.Endpoint, req.Caller)
	rec.Cause = err.Error()
	if _, appendErr := s.log.Append(ctx, rec); appendErr != nil {
		return appendErr
	}
	return err
}
