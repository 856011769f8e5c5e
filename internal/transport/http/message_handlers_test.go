package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/config"
	"roomchat/internal/store"
)

func TestSendAndPollFlow(t *testing.T) {
	engine, st := newTestRouter(t, nil)

	_, err := st.EnsureRoom(context.Background(), "ABC123", "")
	require.NoError(t, err)

	var sendResp struct {
		Message MessageResponse `json:"message"`
	}
	rec := doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "abc123", "nickname": "  alice  ", "text": "  hello  "}, nil, &sendResp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABC123", sendResp.Message.RoomCode)
	assert.Equal(t, "alice", sendResp.Message.Nickname)
	assert.Equal(t, "hello", sendResp.Message.Text)
	assert.False(t, sendResp.Message.IsSystem)
	assert.NotEmpty(t, sendResp.Message.ID)

	first := sendResp.Message

	rec = doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "ABC123", "nickname": "bob", "text": "hi alice"}, nil, &sendResp)
	require.Equal(t, http.StatusOK, rec.Code)

	// Initial load returns everything in order.
	var listResp struct {
		Messages []MessageResponse `json:"messages"`
	}
	rec = doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=abc123", nil, nil, &listResp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listResp.Messages, 2)
	assert.Equal(t, first.ID, listResp.Messages[0].ID)

	// Polling with the last seen stamp returns only the newer message.
	url := fmt.Sprintf("/api/messages/list?roomCode=ABC123&after=%d", first.CreatedAt)
	rec = doJSON(t, engine, http.MethodGet, url, nil, nil, &listResp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listResp.Messages, 1)
	assert.Equal(t, "bob", listResp.Messages[0].Nickname)

	// Caught up: nothing newer.
	url = fmt.Sprintf("/api/messages/list?roomCode=ABC123&after=%d", listResp.Messages[0].CreatedAt)
	rec = doJSON(t, engine, http.MethodGet, url, nil, nil, &listResp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, listResp.Messages)
}

func TestSendValidation(t *testing.T) {
	engine, st := newTestRouter(t, nil)

	_, err := st.EnsureRoom(context.Background(), "ABC123", "")
	require.NoError(t, err)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing room code", map[string]string{"nickname": "alice", "text": "hi"}},
		{"blank room code", map[string]string{"roomCode": "  ", "nickname": "alice", "text": "hi"}},
		{"missing nickname", map[string]string{"roomCode": "ABC123", "text": "hi"}},
		{"missing text", map[string]string{"roomCode": "ABC123", "nickname": "alice"}},
		{"whitespace text", map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": "   "}},
		{"text too long", map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": strings.Repeat("x", store.MaxTextLen+1)}},
		{"reserved nickname", map[string]string{"roomCode": "ABC123", "nickname": "server", "text": "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, engine, http.MethodPost, "/api/messages/send", tc.body, nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// A message at exactly the limit is fine.
	rec := doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": strings.Repeat("x", store.MaxTextLen)}, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendUnknownRoom(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "NOPE", "nickname": "alice", "text": "hi"}, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendAutoCreatesRoomWhenEnabled(t *testing.T) {
	engine, st := newTestRouter(t, func(cfg *config.Config) { cfg.AutoCreateOnSend = true })

	rec := doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "fresh1", "nickname": "alice", "text": "hi"}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	room, err := st.GetRoom(context.Background(), "FRESH1")
	require.NoError(t, err)
	assert.Equal(t, 1, room.MessageCount)
}

func TestSendMasksBlockedWords(t *testing.T) {
	engine, st := newTestRouter(t, func(cfg *config.Config) {
		cfg.BlockedWords = []string{"badword"}
	})

	_, err := st.EnsureRoom(context.Background(), "ABC123", "")
	require.NoError(t, err)

	var resp struct {
		Message MessageResponse `json:"message"`
	}
	rec := doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": "such a BadWord here"}, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "such a ******* here", resp.Message.Text)

	// The stored copy is masked too.
	msgs, err := st.ListMessages(context.Background(), "ABC123", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "such a ******* here", msgs[0].Text)
}

func TestListValidation(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodGet, "/api/messages/list", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=ABC123&after=abc", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=ABC123&limit=0", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=ABC123&limit=-5", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUnknownRoomIsEmpty(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	var resp struct {
		Messages []MessageResponse `json:"messages"`
	}
	rec := doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=NOPE", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Messages)
}

func TestListHonorsLimit(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := st.AppendMessage(ctx, store.NewMessage{
			RoomCode: "ABC123",
			Nickname: "alice",
			Text:     fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	var resp struct {
		Messages []MessageResponse `json:"messages"`
	}

	// Without a cursor the tail wins.
	rec := doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=ABC123&limit=2", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "message 3", resp.Messages[0].Text)
	assert.Equal(t, "message 4", resp.Messages[1].Text)

	// With a cursor the oldest undelivered messages win.
	rec = doJSON(t, engine, http.MethodGet, "/api/messages/list?roomCode=ABC123&after=0&limit=2", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "message 0", resp.Messages[0].Text)
	assert.Equal(t, "message 1", resp.Messages[1].Text)
}

func TestListCapsOversizedLimit(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := st.AppendMessage(ctx, store.NewMessage{
			RoomCode: "ABC123",
			Nickname: "alice",
			Text:     fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	// A limit above the server cap is accepted, not rejected; the response
	// is simply bounded by DefaultMessageLimit.
	var resp struct {
		Messages []MessageResponse `json:"messages"`
	}
	url := fmt.Sprintf("/api/messages/list?roomCode=ABC123&limit=%d", DefaultMessageLimit*10)
	rec := doJSON(t, engine, http.MethodGet, url, nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Messages, 3)
}
