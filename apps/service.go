// Package apps aggregates, for one user, the client applications they
// created and the ones they have authorized, enriching the latter with
// ledger timestamps.
package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gatekeeper-id/gatekeeper/clients"
	"github.com/gatekeeper-id/gatekeeper/ledger"
)

// AuthorizedApp is a sanitized client plus the user's first and most
// recent authorization timestamps.
type AuthorizedApp struct {
	clients.Summary
	AuthorizedAt time.Time `json:"authorizedAt,omitzero"`
	LastAuthAt   time.Time `json:"lastAuthAt,omitzero"`
}

// Listing is the app inventory response for one user.
type Listing struct {
	CreatedApps    []clients.Summary `json:"createdApps"`
	AuthorizedApps []AuthorizedApp   `json:"authorizedApps"`
}

// Service is the read-only app inventory aggregator.
type Service struct {
	clients clients.Repo
	ledger  ledger.Repo
}

func New(clientRepo clients.Repo, ledgerRepo ledger.Repo) (*Service, error) {
	if clientRepo == nil {
		return nil, errors.New("[apps.New] client repo is required")
	}
	if ledgerRepo == nil {
		return nil, errors.New("[apps.New] ledger repo is required")
	}
	return &Service{clients: clientRepo, ledger: ledgerRepo}, nil
}

// ListApps joins the user's owned and authorized client sets. Ledger
// lookups for the authorized set run concurrently; one failure fails
// the whole listing rather than returning partially enriched data.
func (s *Service) ListApps(ctx context.Context, userID string) (*Listing, error) {
	owned, err := s.clients.ListOwnedBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("[ListApps] owned clients: %w", err)
	}
	granted, err := s.clients.ListAuthorizedFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("[ListApps] authorized clients: %w", err)
	}

	listing := &Listing{
		CreatedApps:    make([]clients.Summary, 0, len(owned)),
		AuthorizedApps: make([]AuthorizedApp, len(granted)),
	}
	for _, c := range owned {
		listing.CreatedApps = append(listing.CreatedApps, c.Sanitize())
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range granted {
		g.Go(func() error {
			first, _, err := s.ledger.FirstAuthorizedAt(ctx, c.ID, userID)
			if err != nil {
				return fmt.Errorf("first authorization for client %s: %w", c.ID, err)
			}
			last, _, err := s.ledger.LastAuthorizedAt(ctx, c.ID, userID)
			if err != nil {
				return fmt.Errorf("last authorization for client %s: %w", c.ID, err)
			}
			listing.AuthorizedApps[i] = AuthorizedApp{
				Summary:      c.Sanitize(),
				AuthorizedAt: first,
				LastAuthAt:   last,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("[ListApps] %w", err)
	}
	return listing, nil
}
