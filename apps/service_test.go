package apps_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/apps"
	"github.com/gatekeeper-id/gatekeeper/clients"
	fakeclientrepo "github.com/gatekeeper-id/gatekeeper/clients/repofake"
	fakeledgerrepo "github.com/gatekeeper-id/gatekeeper/ledger/repofake"
)

const userX = "user-x"

type testFixture struct {
	clients *fakeclientrepo.FakeClientRepo
	ledger  *fakeledgerrepo.FakeLedgerRepo
	service *apps.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	clientRepo := fakeclientrepo.NewFakeClientRepo()
	ledgerRepo := fakeledgerrepo.NewFakeLedgerRepo()
	service, err := apps.New(clientRepo, ledgerRepo)
	require.NoError(t, err)
	return &testFixture{clients: clientRepo, ledger: ledgerRepo, service: service}
}

func at(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

func TestListAppsJoinsOwnedAndAuthorized(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.clients.Upsert(&clients.Client{
		ID: "client-a", OwnerID: userX, Name: "My App", Secret: "top-secret",
	})
	f.clients.Upsert(&clients.Client{
		ID: "client-b", OwnerID: "someone-else", Name: "Their App", Secret: "hush",
	})
	f.clients.Authorize(userX, "client-b")
	require.NoError(t, f.ledger.RecordAuthorization(ctx, "client-b", userX, at(200)))

	listing, err := f.service.ListApps(ctx, userX)
	require.NoError(t, err)

	require.Len(t, listing.CreatedApps, 1)
	require.Equal(t, "client-a", listing.CreatedApps[0].ID)
	require.Equal(t, "My App", listing.CreatedApps[0].Name)

	require.Len(t, listing.AuthorizedApps, 1)
	app := listing.AuthorizedApps[0]
	require.Equal(t, "client-b", app.ID)
	require.Equal(t, at(200), app.AuthorizedAt)
	require.Equal(t, at(200), app.LastAuthAt)
}

func TestListAppsEnrichesWithFirstAndLast(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.clients.Upsert(&clients.Client{ID: "client-b", OwnerID: "someone-else", Name: "Their App"})
	f.clients.Authorize(userX, "client-b")
	require.NoError(t, f.ledger.RecordAuthorization(ctx, "client-b", userX, at(100)))
	require.NoError(t, f.ledger.RecordAuthorization(ctx, "client-b", userX, at(300)))

	listing, err := f.service.ListApps(ctx, userX)
	require.NoError(t, err)
	require.Len(t, listing.AuthorizedApps, 1)
	require.Equal(t, at(100), listing.AuthorizedApps[0].AuthorizedAt)
	require.Equal(t, at(300), listing.AuthorizedApps[0].LastAuthAt)
}

func TestListAppsEmptyUser(t *testing.T) {
	f := setupTestFixture(t)

	listing, err := f.service.ListApps(context.Background(), userX)
	require.NoError(t, err)
	require.Empty(t, listing.CreatedApps)
	require.Empty(t, listing.AuthorizedApps)
	require.NotNil(t, listing.CreatedApps, "empty lists serialize as [], not null")
}

func TestListAppsNeverLeaksSecrets(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.clients.Upsert(&clients.Client{ID: "client-a", OwnerID: userX, Name: "My App", Secret: "s3cret"})
	listing, err := f.service.ListApps(ctx, userX)
	require.NoError(t, err)

	// Summary has no secret field at all; this guards the shape.
	require.Equal(t, clients.Summary{ID: "client-a", Name: "My App"}, listing.CreatedApps[0])
}

func TestListAppsFailsWholeWhenOneLookupFails(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.clients.Upsert(&clients.Client{ID: "client-b", OwnerID: "someone-else", Name: "Their App"})
	f.clients.Authorize(userX, "client-b")
	f.ledger.QueryErr = errors.New("ledger unavailable")

	_, err := f.service.ListApps(ctx, userX)
	require.Error(t, err, "no partial results")
	require.ErrorContains(t, err, "ledger unavailable")
}
