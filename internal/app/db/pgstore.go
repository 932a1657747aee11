package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"propchat/internal/app/store"
)

// PgStore implements store.Store on a pgx pool.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PgStore)(nil)

// NewPgStore wraps an open pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) Close() {
	s.pool.Close()
}

const userColumns = `id, role, socket, created_at`

func scanUser(row pgx.Row) (store.User, error) {
	var (
		u      store.User
		role   string
		socket pgtype.Text
	)

	if err := row.Scan(&u.ID, &role, &socket, &u.CreatedAt); err != nil {
		if IsNoRows(err) {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, err
	}

	u.Role = store.Role(role)
	u.Socket = textPtr(socket)
	return u, nil
}

func (s *PgStore) CreateUser(ctx context.Context, id string, role store.Role) (store.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, role) VALUES ($1, $2) RETURNING `+userColumns,
		id, string(role))

	u, err := scanUser(row)
	if err != nil {
		if IsUniqueViolation(err) {
			if violatedConstraint(err) == singleAdminIndex {
				return store.User{}, store.ErrAdminExists
			}
			return store.User{}, store.ErrUserExists
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PgStore) GetUser(ctx context.Context, id string) (store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

func (s *PgStore) GetAdmin(ctx context.Context, id string) (store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND role = $2`, id, string(store.RoleAdmin)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("get admin: %w", err)
	}
	return u, err
}

func (s *PgStore) FirstAdmin(ctx context.Context) (store.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at, id LIMIT 1`, string(store.RoleAdmin)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("first admin: %w", err)
	}
	return u, err
}

func (s *PgStore) SetUserSocket(ctx context.Context, id, socket string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET socket = $2 WHERE id = $1`, id, socket)
	if err != nil {
		return fmt.Errorf("set user socket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const guestColumns = `id::text, guest_id, socket, created_at, updated_at`

func scanGuest(row pgx.Row) (store.Guest, error) {
	var (
		g      store.Guest
		socket pgtype.Text
	)

	if err := row.Scan(&g.ID, &g.GuestID, &socket, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return store.Guest{}, store.ErrNotFound
		}
		return store.Guest{}, err
	}

	g.Socket = textPtr(socket)
	return g, nil
}

func (s *PgStore) GetGuest(ctx context.Context, guestID string) (store.Guest, error) {
	g, err := scanGuest(s.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE guest_id = $1`, guestID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Guest{}, fmt.Errorf("get guest: %w", err)
	}
	return g, err
}

func (s *PgStore) GetGuestByID(ctx context.Context, id string) (store.Guest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return store.Guest{}, store.ErrNotFound
	}

	g, err := scanGuest(s.pool.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = $1::uuid`, id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Guest{}, fmt.Errorf("get guest by id: %w", err)
	}
	return g, err
}

func (s *PgStore) CreateGuest(ctx context.Context, guestID, socket string) (store.Guest, error) {
	g, err := scanGuest(s.pool.QueryRow(ctx,
		`INSERT INTO guests (id, guest_id, socket) VALUES ($1::uuid, $2, $3) RETURNING `+guestColumns,
		uuid.New().String(), guestID, socket))
	if err != nil {
		if IsUniqueViolation(err) {
			return store.Guest{}, store.ErrGuestExists
		}
		return store.Guest{}, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

func (s *PgStore) SetGuestSocket(ctx context.Context, guestID, socket string) (store.Guest, error) {
	g, err := scanGuest(s.pool.QueryRow(ctx,
		`UPDATE guests SET socket = $2, updated_at = now() WHERE guest_id = $1 RETURNING `+guestColumns,
		guestID, socket))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Guest{}, fmt.Errorf("set guest socket: %w", err)
	}
	return g, err
}

// ClearSocket clears both participant tables in one statement.
func (s *PgStore) ClearSocket(ctx context.Context, socket string) (int64, error) {
	const q = `
WITH cleared_users AS (
    UPDATE users SET socket = NULL WHERE socket = $1 RETURNING 1
), cleared_guests AS (
    UPDATE guests SET socket = NULL, updated_at = now() WHERE socket = $1 RETURNING 1
)
SELECT (SELECT count(*) FROM cleared_users) + (SELECT count(*) FROM cleared_guests)`

	var cleared int64
	if err := s.pool.QueryRow(ctx, q, socket).Scan(&cleared); err != nil {
		return 0, fmt.Errorf("clear socket: %w", err)
	}
	return cleared, nil
}

func (s *PgStore) ClearAllSockets(ctx context.Context) (int64, error) {
	const q = `
WITH cleared_users AS (
    UPDATE users SET socket = NULL WHERE socket IS NOT NULL RETURNING 1
), cleared_guests AS (
    UPDATE guests SET socket = NULL, updated_at = now() WHERE socket IS NOT NULL RETURNING 1
)
SELECT (SELECT count(*) FROM cleared_users) + (SELECT count(*) FROM cleared_guests)`

	var cleared int64
	if err := s.pool.QueryRow(ctx, q).Scan(&cleared); err != nil {
		return 0, fmt.Errorf("clear all sockets: %w", err)
	}
	return cleared, nil
}

func (s *PgStore) ListGuests(ctx context.Context) ([]store.GuestSummary, error) {
	const q = `
SELECT g.id::text, g.guest_id, g.socket, g.created_at, g.updated_at, lm.msg, lm.created_at
FROM guests g
LEFT JOIN LATERAL (
    SELECT c.msg, c.created_at
    FROM chats c
    WHERE c.from_guest_id = g.id OR c.to_guest_id = g.id
    ORDER BY c.created_at DESC
    LIMIT 1
) lm ON true
ORDER BY GREATEST(g.updated_at, COALESCE(lm.created_at, g.updated_at)) DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	var out []store.GuestSummary
	for rows.Next() {
		var (
			summary store.GuestSummary
			socket  pgtype.Text
			lastMsg pgtype.Text
			lastAt  pgtype.Timestamptz
		)

		if err := rows.Scan(&summary.ID, &summary.GuestID, &socket, &summary.CreatedAt, &summary.UpdatedAt, &lastMsg, &lastAt); err != nil {
			return nil, fmt.Errorf("scan guest summary: %w", err)
		}

		summary.Socket = textPtr(socket)
		summary.LastMessage = textPtr(lastMsg)
		if lastAt.Valid {
			at := lastAt.Time
			summary.LastMessageAt = &at
		}
		out = append(out, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return out, nil
}

const chatColumns = `id::text, msg, from_user_id, from_guest_id::text, to_user_id, to_guest_id::text, created_at, updated_at`

func scanChat(row pgx.Row) (store.Chat, error) {
	var (
		c                                    store.Chat
		fromUser, fromGuest, toUser, toGuest pgtype.Text
	)

	if err := row.Scan(&c.ID, &c.Msg, &fromUser, &fromGuest, &toUser, &toGuest, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return store.Chat{}, err
	}

	c.FromUserID = textPtr(fromUser)
	c.FromGuestID = textPtr(fromGuest)
	c.ToUserID = textPtr(toUser)
	c.ToGuestID = textPtr(toGuest)
	return c, nil
}

func (s *PgStore) CreateChat(ctx context.Context, chat store.NewChat) (store.Chat, error) {
	if err := chat.Validate(); err != nil {
		return store.Chat{}, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO chats (id, msg, from_user_id, from_guest_id, to_user_id, to_guest_id)
VALUES ($1::uuid, $2, $3, $4::uuid, $5, $6::uuid)
RETURNING `+chatColumns,
		chat.ID, chat.Msg,
		toText(chat.FromUserID), toText(chat.FromGuestID),
		toText(chat.ToUserID), toText(chat.ToGuestID))

	c, err := scanChat(row)
	if err != nil {
		return store.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

func (s *PgStore) ListChatsForGuest(ctx context.Context, guestInternalID string) ([]store.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chatColumns+` FROM chats
WHERE from_guest_id = $1::uuid OR to_guest_id = $1::uuid
ORDER BY created_at, id`, guestInternalID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []store.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
