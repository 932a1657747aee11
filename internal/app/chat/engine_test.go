package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"propchat/internal/app/store"
	"propchat/internal/app/store/memstore"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/limiter"
)

type emitted struct {
	handle  string
	event   EventKind
	payload any
}

// recordingEmitter captures every frame the engine emits.
type recordingEmitter struct {
	mu         sync.Mutex
	frames     []emitted
	broadcasts []emitted
	rooms      map[string]map[string]struct{}
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{rooms: make(map[string]map[string]struct{})}
}

func (r *recordingEmitter) Emit(handle string, event EventKind, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, emitted{handle: handle, event: event, payload: payload})
	return true
}

func (r *recordingEmitter) Join(handle, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][handle] = struct{}{}
	return true
}

func (r *recordingEmitter) Broadcast(room string, event EventKind, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, emitted{handle: room, event: event, payload: payload})
	return len(r.rooms[room])
}

func (r *recordingEmitter) inRoom(room, handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[room][handle]
	return ok
}

func (r *recordingEmitter) ofKind(kind EventKind) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, f := range r.frames {
		if f.event == kind {
			out = append(out, f)
		}
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.broadcasts = nil
}

type fakeConn struct {
	handle string
	id     Identity
}

func (f *fakeConn) Handle() string      { return f.handle }
func (f *fakeConn) Identity() Identity  { return f.id }
func (f *fakeConn) BindGuest(id string) { f.id.GuestID = id }

func guestConn(handle, guestID string) *fakeConn {
	return &fakeConn{handle: handle, id: Identity{GuestID: guestID}}
}

func userConn(handle, userID string) *fakeConn {
	return &fakeConn{handle: handle, id: Identity{UserID: userID}}
}

type engineFixture struct {
	store   *memstore.Store
	emitter *recordingEmitter
	engine  *Engine
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()

	st := memstore.New()
	em := newRecordingEmitter()

	return &engineFixture{
		store:   st,
		emitter: em,
		engine:  NewEngine(EngineConfig{Presence: st, Chats: st, Emitter: em}),
	}
}

func (f *engineFixture) user(t *testing.T, id string, role store.Role) {
	t.Helper()
	_, err := f.store.CreateUser(context.Background(), id, role)
	require.NoError(t, err)
}

func frame(t *testing.T, event EventKind, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	return raw
}

func socketErrorCode(t *testing.T, f emitted) int {
	t.Helper()
	p, ok := f.payload.(ErrorPayload)
	require.True(t, ok, "socket_error payload type")
	return p.Code
}

func TestEngine_GuestPresenceRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, guestID := range []string{"g1", "guest_AbC123xyz", "a-b_c"} {
		t.Run(guestID, func(t *testing.T) {
			f := newFixture(t)
			conn := guestConn("conn-"+guestID, guestID)

			f.engine.OnConnect(ctx, conn)

			g, err := f.store.GetGuest(ctx, guestID)
			require.NoError(t, err)
			require.NotNil(t, g.Socket)
			assert.Equal(t, conn.handle, *g.Socket)

			assert.True(t, f.emitter.inRoom(CustomerRoom(guestID), conn.handle))
			joins := f.emitter.ofKind(EventJoinRoom)
			require.Len(t, joins, 1)
			assert.Equal(t, "customer_"+guestID, joins[0].payload)

			f.engine.OnDisconnect(ctx, conn)

			g, err = f.store.GetGuest(ctx, guestID)
			require.NoError(t, err)
			assert.Nil(t, g.Socket)
		})
	}
}

func TestEngine_GuestReconnectReusesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.OnConnect(ctx, guestConn("c1", "g1"))
	first, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)

	f.engine.OnConnect(ctx, guestConn("c2", "g1"))
	second, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "c2", *second.Socket)
}

func TestEngine_StaleDisconnectKeepsNewerPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := guestConn("old", "g1")
	fresh := guestConn("fresh", "g1")

	f.engine.OnConnect(ctx, old)
	f.engine.OnConnect(ctx, fresh)
	f.engine.OnDisconnect(ctx, old)

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, g.Socket)
	assert.Equal(t, "fresh", *g.Socket)
}

func TestEngine_AdminRoomMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.user(t, "u2", store.RoleUser)

	admin := userConn("a", "u1")
	plain := userConn("p", "u2")

	f.engine.OnConnect(ctx, admin)
	f.engine.OnConnect(ctx, plain)

	assert.True(t, f.emitter.inRoom(AdminRoom, "a"))
	assert.False(t, f.emitter.inRoom(AdminRoom, "p"))

	u2, err := f.store.GetUser(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, u2.Socket, "non-admin users still record presence")
	assert.Equal(t, "p", *u2.Socket)
}

func TestEngine_UnknownUserKeepsPresenceUnset(t *testing.T) {
	f := newFixture(t)

	f.engine.OnConnect(context.Background(), userConn("x", "ghost"))

	assert.Empty(t, f.emitter.ofKind(EventJoinRoom))
	assert.Empty(t, f.emitter.ofKind(EventSocketError), "user lookup failures are only logged")
}

func TestEngine_MissingIdentity(t *testing.T) {
	f := newFixture(t)

	f.engine.OnConnect(context.Background(), &fakeConn{handle: "anon"})

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 1)
	assert.Equal(t, errs.ErrIdentityMissing, socketErrorCode(t, errsOut[0]))
}

func TestEngine_InvalidGuestID(t *testing.T) {
	f := newFixture(t)

	f.engine.OnConnect(context.Background(), guestConn("c", "bad id!"))

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 1)
	assert.Equal(t, errs.ErrGuestIDInvalid, socketErrorCode(t, errsOut[0]))

	_, err := f.store.GetGuest(context.Background(), "bad id!")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngine_InvalidGuestIDCanBeReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conn := guestConn("c", "bad id!")
	f.engine.OnConnect(ctx, conn)
	f.emitter.reset()

	f.engine.Dispatch(ctx, conn, frame(t, EventCustomerConnection, map[string]string{"guestId": "g1"}))

	assert.Empty(t, f.emitter.ofKind(EventSocketError))
	assert.Equal(t, "g1", conn.Identity().GuestID)
	assert.True(t, f.emitter.inRoom(CustomerRoom("g1"), "c"))

	connected, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, connected.Socket)
	assert.Equal(t, "c", *connected.Socket)

	f.engine.Dispatch(ctx, conn, frame(t, EventCustomerConnection, map[string]string{"guestId": "g2"}))
	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 1, "a valid bound guest cannot be swapped")
	assert.Equal(t, errs.ErrGuestRegistrationFailed, socketErrorCode(t, errsOut[0]))
}

func TestEngine_DualDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	guest := guestConn("gc", "g1")
	admin := userConn("ac", "u1")
	f.engine.OnConnect(ctx, guest)
	f.engine.OnConnect(ctx, admin)
	f.emitter.reset()

	f.engine.Dispatch(ctx, guest, frame(t, EventChatToAdmin, map[string]string{"toUserId": "u1", "msg": "Hello"}))

	pushes := f.emitter.ofKind(EventChatToAdmin)
	require.Len(t, pushes, 2)

	byHandle := map[string]ChatMessage{}
	for _, p := range pushes {
		byHandle[p.handle] = p.payload.(ChatMessage)
	}

	toAdmin, ok := byHandle["ac"]
	require.True(t, ok)
	assert.False(t, toAdmin.Self)
	assert.Equal(t, "g1", toAdmin.FromGuestID)
	assert.Equal(t, "u1", toAdmin.ToUserID)
	assert.Equal(t, "Hello", toAdmin.Msg)

	echo, ok := byHandle["gc"]
	require.True(t, ok)
	assert.True(t, echo.Self)
	assert.Equal(t, toAdmin.ID, echo.ID)

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	chats, err := f.store.ListChatsForGuest(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, toAdmin.ID, chats[0].ID)
	assert.Equal(t, g.ID, *chats[0].FromGuestID)
	assert.Equal(t, "u1", *chats[0].ToUserID)
	assert.Nil(t, chats[0].FromUserID)
	assert.Nil(t, chats[0].ToGuestID)
}

func TestEngine_PersistWithoutDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	guest := guestConn("gc", "g1")
	f.engine.OnConnect(ctx, guest)
	f.emitter.reset()

	d, err := f.engine.ChatToAdmin(ctx, guest, ChatToAdmin{ToUserID: "u1", Msg: "anyone there?"})
	require.NoError(t, err)
	assert.False(t, d.ToRecipient)
	assert.True(t, d.ToSender)

	pushes := f.emitter.ofKind(EventChatToAdmin)
	require.Len(t, pushes, 1)
	assert.Equal(t, "gc", pushes[0].handle)

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	chats, err := f.store.ListChatsForGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestEngine_IdempotentDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	admin := userConn("ac", "u1")
	g1 := guestConn("c1", "g1")
	g2 := guestConn("c2", "g2")
	f.engine.OnConnect(ctx, admin)
	f.engine.OnConnect(ctx, g1)
	f.engine.OnConnect(ctx, g2)

	f.engine.OnDisconnect(ctx, g1)
	f.engine.OnDisconnect(ctx, g1)
	f.engine.OnDisconnect(ctx, &fakeConn{handle: "never-seen"})

	gone, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, gone.Socket)

	other, err := f.store.GetGuest(ctx, "g2")
	require.NoError(t, err)
	require.NotNil(t, other.Socket)
	assert.Equal(t, "c2", *other.Socket)

	u, err := f.store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.Socket)
	assert.Equal(t, "ac", *u.Socket)
}

func TestEngine_NonAdminTargetRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.user(t, "u2", store.RoleUser)
	guest := guestConn("gc", "g1")
	f.engine.OnConnect(ctx, guest)
	f.engine.OnConnect(ctx, userConn("pc", "u2"))
	f.emitter.reset()

	_, err := f.engine.ChatToAdmin(ctx, guest, ChatToAdmin{ToUserID: "u2", Msg: "psst"})
	assert.ErrorIs(t, err, ErrDropped)

	f.engine.Dispatch(ctx, guest, frame(t, EventChatToAdmin, map[string]string{"toUserId": "u2", "msg": "psst"}))

	assert.Empty(t, f.emitter.ofKind(EventChatToAdmin))
	assert.Empty(t, f.emitter.ofKind(EventSocketError), "resolution failures are not surfaced")

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	chats, err := f.store.ListChatsForGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestEngine_ChatToCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	guest := guestConn("gc", "g1")
	admin := userConn("ac", "u1")
	f.engine.OnConnect(ctx, guest)
	f.engine.OnConnect(ctx, admin)
	f.emitter.reset()

	f.engine.Dispatch(ctx, admin, frame(t, EventChatToCustomer, map[string]string{
		"fromUserId": "u1", "toGuestId": "g1", "msg": "Welcome",
	}))

	pushes := f.emitter.ofKind(EventChatToCustomer)
	require.Len(t, pushes, 2)
	for _, p := range pushes {
		msg := p.payload.(ChatMessage)
		assert.Equal(t, "u1", msg.FromUserID)
		assert.Equal(t, "g1", msg.ToGuestID)
		assert.Equal(t, p.handle == "ac", msg.Self)
	}

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	chats, err := f.store.ListChatsForGuest(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "u1", *chats[0].FromUserID)
	assert.Equal(t, g.ID, *chats[0].ToGuestID)
}

func TestEngine_ChatToCustomerDefaultsSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.engine.OnConnect(ctx, guestConn("gc", "g1"))
	admin := userConn("ac", "u1")

	d, err := f.engine.ChatToCustomer(ctx, admin, ChatToCustomer{ToGuestID: "g1", Msg: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "u1", d.Message.FromUserID)
	assert.True(t, d.ToRecipient)
	assert.False(t, d.ToSender, "admin never registered presence")
}

func TestEngine_ChatDropsForMismatchedConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.engine.OnConnect(ctx, guestConn("gc", "g1"))

	_, err := f.engine.ChatToAdmin(ctx, userConn("ac", "u1"), ChatToAdmin{ToUserID: "u1", Msg: "hi"})
	assert.ErrorIs(t, err, ErrDropped, "users cannot send chat_to_admin")

	_, err = f.engine.ChatToCustomer(ctx, guestConn("gc", "g1"), ChatToCustomer{FromUserID: "u1", ToGuestID: "g1", Msg: "hi"})
	assert.ErrorIs(t, err, ErrDropped, "guests cannot impersonate the admin")

	_, err = f.engine.ChatToCustomer(ctx, userConn("ac", "u1"), ChatToCustomer{ToGuestID: "nobody", Msg: "hi"})
	assert.ErrorIs(t, err, ErrDropped)
}

func TestEngine_ChatToCustomerRequiresAdminConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.user(t, "u2", store.RoleUser)
	f.engine.OnConnect(ctx, guestConn("gc", "g1"))
	f.emitter.reset()

	tests := []struct {
		name string
		conn *fakeConn
		p    ChatToCustomer
	}{
		{name: "anonymous connection", conn: &fakeConn{handle: "anon"}, p: ChatToCustomer{FromUserID: "u1", ToGuestID: "g1", Msg: "hi"}},
		{name: "non-admin user naming the admin", conn: userConn("uc", "u2"), p: ChatToCustomer{FromUserID: "u1", ToGuestID: "g1", Msg: "hi"}},
		{name: "non-admin user as itself", conn: userConn("uc", "u2"), p: ChatToCustomer{ToGuestID: "g1", Msg: "hi"}},
		{name: "admin naming another user", conn: userConn("ac", "u1"), p: ChatToCustomer{FromUserID: "u2", ToGuestID: "g1", Msg: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.engine.ChatToCustomer(ctx, tt.conn, tt.p)
			assert.ErrorIs(t, err, ErrDropped)
			assert.False(t, d.ToRecipient)
		})
	}

	assert.Empty(t, f.emitter.ofKind(EventChatToCustomer))

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)
	chats, err := f.store.ListChatsForGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, chats, "dropped messages are not persisted")
}

func TestEngine_MessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	guest := guestConn("gc", "g1")
	f.engine.OnConnect(ctx, guest)
	f.emitter.reset()

	f.engine.Dispatch(ctx, guest, frame(t, EventChatToAdmin, map[string]string{"toUserId": "u1", "msg": "   "}))
	f.engine.Dispatch(ctx, guest, frame(t, EventChatToAdmin, map[string]string{
		"toUserId": "u1", "msg": strings.Repeat("x", MaxContentBytes+1),
	}))

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 2)
	assert.Equal(t, errs.ErrMessageEmpty, socketErrorCode(t, errsOut[0]))
	assert.Equal(t, errs.ErrMessageContentTooLong, socketErrorCode(t, errsOut[1]))
	assert.Empty(t, f.emitter.ofKind(EventChatToAdmin))

	_, err := f.engine.ChatToAdmin(ctx, guest, ChatToAdmin{ToUserID: "u1", Msg: strings.Repeat("x", MaxContentBytes)})
	assert.NoError(t, err, "a body of exactly the maximum size is accepted")
}

func TestEngine_MessageRateLimit(t *testing.T) {
	st := memstore.New()
	em := newRecordingEmitter()
	lim := limiter.NewKeyedLimiter(rate.Limit(0.001), 2)
	t.Cleanup(lim.Stop)

	e := NewEngine(EngineConfig{Presence: st, Chats: st, Emitter: em, MessageLimiter: lim})
	ctx := context.Background()

	_, err := st.CreateUser(ctx, "u1", store.RoleAdmin)
	require.NoError(t, err)
	guest := guestConn("gc", "g1")
	e.OnConnect(ctx, guest)

	for range 3 {
		e.Dispatch(ctx, guest, frame(t, EventChatToAdmin, map[string]string{"toUserId": "u1", "msg": "spam"}))
	}

	errsOut := em.ofKind(EventSocketError)
	require.Len(t, errsOut, 1)
	assert.Equal(t, errs.ErrRateLimitExceeded, socketErrorCode(t, errsOut[0]))

	e.OnDisconnect(ctx, guest)
	assert.Zero(t, lim.Len(), "disconnect forgets the connection's bucket")
}

func TestEngine_UnknownAndMalformedFrames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := guestConn("gc", "g1")

	f.engine.Dispatch(ctx, conn, []byte(`{"event":"delete_everything","data":{}}`))
	f.engine.Dispatch(ctx, conn, []byte(`not json`))
	f.engine.Dispatch(ctx, conn, []byte(`{"event":"chat_to_admin","data":"oops"}`))

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 3)
	assert.Equal(t, errs.ErrUnsupportedEvent, socketErrorCode(t, errsOut[0]))
	assert.Contains(t, errsOut[0].payload.(ErrorPayload).Message, "delete_everything")
	assert.Equal(t, errs.ErrInvalidJSONFormat, socketErrorCode(t, errsOut[1]))
	assert.Equal(t, errs.ErrInvalidJSONFormat, socketErrorCode(t, errsOut[2]))
}

func TestEngine_CustomerConnectionFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conn := &fakeConn{handle: "late"}
	f.engine.Dispatch(ctx, conn, frame(t, EventCustomerConnection, map[string]string{"guestId": "g9"}))

	assert.Equal(t, "g9", conn.id.GuestID)
	g, err := f.store.GetGuest(ctx, "g9")
	require.NoError(t, err)
	assert.Equal(t, "late", *g.Socket)
	assert.True(t, f.emitter.inRoom(CustomerRoom("g9"), "late"))

	f.engine.Dispatch(ctx, conn, frame(t, EventCustomerConnection, map[string]string{"guestId": "other"}))
	f.engine.Dispatch(ctx, conn, frame(t, EventCustomerConnection, map[string]string{}))

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 2)
	assert.Equal(t, errs.ErrGuestRegistrationFailed, socketErrorCode(t, errsOut[0]))
	assert.Equal(t, errs.ErrGuestIDMissing, socketErrorCode(t, errsOut[1]))
}

func TestEngine_AdminConnectionFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	admin := userConn("ac", "u1")

	f.engine.Dispatch(ctx, admin, frame(t, EventAdminConnection, nil))
	assert.True(t, f.emitter.inRoom(AdminRoom, "ac"))

	f.engine.Dispatch(ctx, guestConn("gc", "g1"), frame(t, EventAdminConnection, nil))
	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 1)
	assert.Equal(t, errs.ErrIdentityMissing, socketErrorCode(t, errsOut[0]))
}

func TestEngine_GuestPresenceBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest := guestConn("gc", "g1")
	f.engine.OnConnect(ctx, guest)
	f.engine.OnDisconnect(ctx, guest)
	f.engine.OnDisconnect(ctx, guest)

	require.Len(t, f.emitter.broadcasts, 2, "the repeated disconnect clears nothing and stays silent")
	assert.Equal(t, GuestPresence{GuestID: "g1", Connected: true}, f.emitter.broadcasts[0].payload)
	assert.Equal(t, GuestPresence{GuestID: "g1", Connected: false}, f.emitter.broadcasts[1].payload)
	assert.Equal(t, AdminRoom, f.emitter.broadcasts[1].handle)
}

func TestEngine_ConnectivityChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "u1", store.RoleAdmin)
	f.user(t, "u2", store.RoleUser)

	admin := userConn("ac", "u1")
	f.engine.OnConnect(ctx, admin)
	f.engine.OnConnect(ctx, userConn("pc", "u2"))
	guest := guestConn("gc", "g1")
	f.engine.OnConnect(ctx, guest)

	ok, err := f.engine.AdminConnected(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.AdminConnected(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok, "non-admins are reported disconnected")

	ok, err = f.engine.AdminConnected(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	g, err := f.store.GetGuest(ctx, "g1")
	require.NoError(t, err)

	ok, err = f.engine.GuestConnected(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	f.engine.OnDisconnect(ctx, guest)
	f.engine.OnDisconnect(ctx, admin)

	ok, err = f.engine.GuestConnected(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.engine.AdminConnected(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.engine.GuestConnected(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type unroutedEvent struct{}

func (unroutedEvent) Kind() EventKind { return "unrouted" }
func (unroutedEvent) inbound()        {}

func TestEngine_UnroutedEventIsNotFatal(t *testing.T) {
	f := newFixture(t)
	guest := guestConn("gc", "g1")

	require.NotPanics(t, func() {
		f.engine.route(context.Background(), guest, unroutedEvent{})
	})

	errsOut := f.emitter.ofKind(EventSocketError)
	require.Len(t, errsOut, 1)
	assert.Equal(t, "gc", errsOut[0].handle)
	assert.Equal(t, errs.ErrUnsupportedEvent, socketErrorCode(t, errsOut[0]))
}
