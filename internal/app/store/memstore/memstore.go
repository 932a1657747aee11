/*
Package memstore is an in-process implementation of store.Store.

It backs STORE_DRIVER=memory for local development and the chat engine tests. State lives only as long
as the process; every method copies values in and out so callers never share memory with the store.
*/
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"propchat/internal/app/store"
)

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu sync.RWMutex

	users  map[string]*store.User
	guests map[string]*store.Guest // keyed by client guest ID
	chats  []store.Chat

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:  make(map[string]*store.User),
		guests: make(map[string]*store.Guest),
		now:    time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// CreateUser inserts a user, enforcing unique IDs and a single admin.
func (s *Store) CreateUser(_ context.Context, id string, role store.Role) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return store.User{}, store.ErrUserExists
	}

	if role == store.RoleAdmin {
		for _, u := range s.users {
			if u.IsAdmin() {
				return store.User{}, store.ErrAdminExists
			}
		}
	}

	u := &store.User{ID: id, Role: role, CreatedAt: s.now()}
	s.users[id] = u

	return copyUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetAdmin(ctx context.Context, id string) (store.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return store.User{}, err
	}
	if !u.IsAdmin() {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// FirstAdmin returns the earliest-created admin.
func (s *Store) FirstAdmin(context.Context) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first *store.User
	for _, u := range s.users {
		if !u.IsAdmin() {
			continue
		}
		if first == nil || u.CreatedAt.Before(first.CreatedAt) {
			first = u
		}
	}

	if first == nil {
		return store.User{}, store.ErrNotFound
	}
	return copyUser(first), nil
}

func (s *Store) SetUserSocket(_ context.Context, id, socket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Socket = &socket
	return nil
}

func (s *Store) GetGuest(_ context.Context, guestID string) (store.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guests[guestID]
	if !ok {
		return store.Guest{}, store.ErrNotFound
	}
	return copyGuest(g), nil
}

func (s *Store) GetGuestByID(_ context.Context, id string) (store.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.guests {
		if g.ID == id {
			return copyGuest(g), nil
		}
	}
	return store.Guest{}, store.ErrNotFound
}

func (s *Store) CreateGuest(_ context.Context, guestID, socket string) (store.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.guests[guestID]; ok {
		return store.Guest{}, store.ErrGuestExists
	}

	now := s.now()
	g := &store.Guest{
		ID:        uuid.New().String(),
		GuestID:   guestID,
		Socket:    &socket,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.guests[guestID] = g

	return copyGuest(g), nil
}

func (s *Store) SetGuestSocket(_ context.Context, guestID, socket string) (store.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guests[guestID]
	if !ok {
		return store.Guest{}, store.ErrNotFound
	}
	g.Socket = &socket
	g.UpdatedAt = s.now()

	return copyGuest(g), nil
}

func (s *Store) ClearSocket(_ context.Context, socket string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for _, u := range s.users {
		if u.Socket != nil && *u.Socket == socket {
			u.Socket = nil
			cleared++
		}
	}
	for _, g := range s.guests {
		if g.Socket != nil && *g.Socket == socket {
			g.Socket = nil
			g.UpdatedAt = s.now()
			cleared++
		}
	}
	return cleared, nil
}

func (s *Store) ClearAllSockets(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for _, u := range s.users {
		if u.Socket != nil {
			u.Socket = nil
			cleared++
		}
	}
	for _, g := range s.guests {
		if g.Socket != nil {
			g.Socket = nil
			g.UpdatedAt = s.now()
			cleared++
		}
	}
	return cleared, nil
}

func (s *Store) ListGuests(context.Context) ([]store.GuestSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]store.GuestSummary, 0, len(s.guests))
	for _, g := range s.guests {
		summary := store.GuestSummary{Guest: copyGuest(g)}
		for i := len(s.chats) - 1; i >= 0; i-- {
			c := s.chats[i]
			if refersTo(c.FromGuestID, g.ID) || refersTo(c.ToGuestID, g.ID) {
				msg, at := c.Msg, c.CreatedAt
				summary.LastMessage, summary.LastMessageAt = &msg, &at
				break
			}
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return lastActivity(summaries[i]).After(lastActivity(summaries[j]))
	})

	return summaries, nil
}

func (s *Store) CreateChat(_ context.Context, chat store.NewChat) (store.Chat, error) {
	if err := chat.Validate(); err != nil {
		return store.Chat{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := store.Chat{
		ID:          chat.ID,
		Msg:         chat.Msg,
		FromUserID:  optional(chat.FromUserID),
		FromGuestID: optional(chat.FromGuestID),
		ToUserID:    optional(chat.ToUserID),
		ToGuestID:   optional(chat.ToGuestID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.chats = append(s.chats, c)

	return c, nil
}

func (s *Store) ListChatsForGuest(_ context.Context, guestInternalID string) ([]store.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Chat
	for _, c := range s.chats {
		if refersTo(c.FromGuestID, guestInternalID) || refersTo(c.ToGuestID, guestInternalID) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func copyUser(u *store.User) store.User {
	out := *u
	if u.Socket != nil {
		socket := *u.Socket
		out.Socket = &socket
	}
	return out
}

func copyGuest(g *store.Guest) store.Guest {
	out := *g
	if g.Socket != nil {
		socket := *g.Socket
		out.Socket = &socket
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func refersTo(ref *string, id string) bool {
	return ref != nil && *ref == id
}

func lastActivity(g store.GuestSummary) time.Time {
	if g.LastMessageAt != nil && g.LastMessageAt.After(g.UpdatedAt) {
		return *g.LastMessageAt
	}
	return g.UpdatedAt
}
