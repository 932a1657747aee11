package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Inbound
		wantErr bool
	}{
		{
			name: "customer connection",
			raw:  `{"event":"customer_connection","data":{"guestId":"g1"}}`,
			want: CustomerConnection{GuestID: "g1"},
		},
		{
			name: "admin connection without data",
			raw:  `{"event":"admin_connection"}`,
			want: AdminConnection{},
		},
		{
			name: "chat to admin",
			raw:  `{"event":"chat_to_admin","data":{"toUserId":"u1","msg":"Hello"}}`,
			want: ChatToAdmin{ToUserID: "u1", Msg: "Hello"},
		},
		{
			name: "chat to customer",
			raw:  `{"event":"chat_to_customer","data":{"fromUserId":"u1","toGuestId":"g1","msg":"Hi"}}`,
			want: ChatToCustomer{FromUserID: "u1", ToGuestID: "g1", Msg: "Hi"},
		},
		{name: "server-only event", raw: `{"event":"join_room","data":"x"}`, wantErr: true},
		{name: "bad payload", raw: `{"event":"chat_to_admin","data":[1]}`, wantErr: true},
		{name: "not json", raw: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestEncodeFrame_ChatMessageShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	raw, err := EncodeFrame(EventChatToAdmin, ChatMessage{
		ID: "m1", FromGuestID: "g1", ToUserID: "u1", Msg: "Hello", CreatedAt: at,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"event": "chat_to_admin",
		"data": {"id":"m1","fromGuestId":"g1","toUserId":"u1","msg":"Hello","createdAt":"2026-03-01T10:00:00Z","self":false}
	}`, string(raw))

	var back struct {
		Data ChatMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Data.CreatedAt.Equal(at))
}
