/*
Package transcript provides the read side of the chat system: chat histories rendered for a viewer,
the admin's guest list and transcript archives in object storage.

All reads go straight to the store; presence is never cached.
*/
package transcript

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"propchat/internal/app/store"
)

// Entry is one chat in a history view. Guest references carry the client-facing guest ID, and Self
// is true for messages sent by the viewer.
type Entry struct {
	ID          string    `json:"id"`
	Msg         string    `json:"msg"`
	FromUserID  string    `json:"fromUserId,omitempty"`
	FromGuestID string    `json:"fromGuestId,omitempty"`
	ToUserID    string    `json:"toUserId,omitempty"`
	ToGuestID   string    `json:"toGuestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Self        bool      `json:"self"`
}

// GuestView is a guest row as shown in the admin's guest list.
type GuestView struct {
	ID            string     `json:"id"`
	GuestID       string     `json:"guestId"`
	Connected     bool       `json:"connected"`
	LastMessage   *string    `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Service answers history and listing queries.
type Service struct {
	presence store.PresenceStore
	chats    store.ChatStore
}

// NewService constructs a Service.
func NewService(presence store.PresenceStore, chats store.ChatStore) *Service {
	return &Service{presence: presence, chats: chats}
}

// AdminID returns the ID of the admin account, or store.ErrNotFound when none is provisioned.
func (s *Service) AdminID(ctx context.Context) (string, error) {
	admin, err := s.presence.FirstAdmin(ctx)
	if err != nil {
		return "", err
	}
	return admin.ID, nil
}

// GuestHistory returns the transcript of the guest with the given client-supplied ID, oldest first,
// from the guest's point of view. An unknown guest has an empty history.
func (s *Service) GuestHistory(ctx context.Context, guestID string) ([]Entry, error) {
	guest, err := s.presence.GetGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, err
	}

	chats, err := s.chats.ListChatsForGuest(ctx, guest.ID)
	if err != nil {
		return nil, fmt.Errorf("guest history: %w", err)
	}

	return render(chats, guest, func(c store.Chat) bool { return c.FromGuestID != nil }), nil
}

// AdminHistory returns the transcript of the guest with the given internal ID from the point of view
// of adminID.
func (s *Service) AdminHistory(ctx context.Context, adminID, guestInternalID string) ([]Entry, error) {
	guest, err := s.presence.GetGuestByID(ctx, guestInternalID)
	if err != nil {
		return nil, err
	}

	chats, err := s.chats.ListChatsForGuest(ctx, guest.ID)
	if err != nil {
		return nil, fmt.Errorf("admin history: %w", err)
	}

	return render(chats, guest, func(c store.Chat) bool {
		return c.FromUserID != nil && *c.FromUserID == adminID
	}), nil
}

// ListGuests returns every guest, most recently active first, with its connectivity.
func (s *Service) ListGuests(ctx context.Context) ([]GuestView, error) {
	summaries, err := s.presence.ListGuests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}

	views := make([]GuestView, 0, len(summaries))
	for _, g := range summaries {
		views = append(views, GuestView{
			ID:            g.ID,
			GuestID:       g.GuestID,
			Connected:     g.Socket != nil,
			LastMessage:   g.LastMessage,
			LastMessageAt: g.LastMessageAt,
			CreatedAt:     g.CreatedAt,
			UpdatedAt:     g.UpdatedAt,
		})
	}
	return views, nil
}

// render converts chats of one guest into entries, sorted by creation time.
func render(chats []store.Chat, guest store.Guest, self func(store.Chat) bool) []Entry {
	entries := make([]Entry, 0, len(chats))
	for _, c := range chats {
		e := Entry{
			ID:        c.ID,
			Msg:       c.Msg,
			CreatedAt: c.CreatedAt,
			Self:      self(c),
		}
		if c.FromUserID != nil {
			e.FromUserID = *c.FromUserID
		}
		if c.ToUserID != nil {
			e.ToUserID = *c.ToUserID
		}
		if c.FromGuestID != nil {
			e.FromGuestID = guest.GuestID
		}
		if c.ToGuestID != nil {
			e.ToGuestID = guest.GuestID
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}
