package fakeclientrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gatekeeper-id/gatekeeper/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	lock       sync.RWMutex
	clients    map[string]*clients.Client
	authorized map[string]map[string]struct{} // userID -> client ids
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients:    make(map[string]*clients.Client),
		authorized: make(map[string]map[string]struct{}),
	}
}

// Upsert seeds a client, assigning an id when absent.
func (r *FakeClientRepo) Upsert(client *clients.Client) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	r.clients[client.ID] = client
}

// Authorize marks a client as authorized for a user.
func (r *FakeClientRepo) Authorize(userID, clientID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.authorized[userID]; !ok {
		r.authorized[userID] = make(map[string]struct{})
	}
	r.authorized[userID][clientID] = struct{}{}
}

func (r *FakeClientRepo) Get(_ context.Context, id string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	cp := *client
	return &cp, nil
}

func (r *FakeClientRepo) ListOwnedBy(_ context.Context, userID string) ([]clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var owned []clients.Client
	for _, client := range r.clients {
		if client.OwnerID == userID {
			owned = append(owned, *client)
		}
	}
	sortClients(owned)
	return owned, nil
}

func (r *FakeClientRepo) ListAuthorizedFor(_ context.Context, userID string) ([]clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var granted []clients.Client
	for id := range r.authorized[userID] {
		if client, ok := r.clients[id]; ok {
			granted = append(granted, *client)
		}
	}
	sortClients(granted)
	return granted, nil
}

func sortClients(list []clients.Client) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
