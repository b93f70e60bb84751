package fakeledgerrepo

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeeper-id/gatekeeper/ledger"
)

var _ ledger.Repo = (*FakeLedgerRepo)(nil)

// FakeLedgerRepo is an in-memory ledger for tests. Set QueryErr to make
// every first/last lookup fail.
type FakeLedgerRepo struct {
	lock   sync.RWMutex
	events []ledger.Event

	QueryErr error
}

func NewFakeLedgerRepo() *FakeLedgerRepo {
	return &FakeLedgerRepo{}
}

func (r *FakeLedgerRepo) RecordAuthorization(_ context.Context, clientID, userID string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, ledger.Event{
		ID:           ulid.Make().String(),
		ClientID:     clientID,
		UserID:       userID,
		AuthorizedAt: at,
	})
	return nil
}

func (r *FakeLedgerRepo) FirstAuthorizedAt(_ context.Context, clientID, userID string) (time.Time, bool, error) {
	if r.QueryErr != nil {
		return time.Time{}, false, r.QueryErr
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	var first time.Time
	found := false
	for _, ev := range r.events {
		if ev.ClientID != clientID || ev.UserID != userID {
			continue
		}
		if !found || ev.AuthorizedAt.Before(first) {
			first = ev.AuthorizedAt
		}
		found = true
	}
	return first, found, nil
}

func (r *FakeLedgerRepo) LastAuthorizedAt(_ context.Context, clientID, userID string) (time.Time, bool, error) {
	if r.QueryErr != nil {
		return time.Time{}, false, r.QueryErr
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	var last time.Time
	found := false
	for _, ev := range r.events {
		if ev.ClientID != clientID || ev.UserID != userID {
			continue
		}
		if !found || ev.AuthorizedAt.After(last) {
			last = ev.AuthorizedAt
		}
		found = true
	}
	return last, found, nil
}
