package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/config"
	"roomchat/internal/store"
)

func TestJoinReportsExistence(t *testing.T) {
	engine, st := newTestRouter(t, nil)

	var resp struct {
		OK       bool   `json:"ok"`
		RoomCode string `json:"roomCode"`
		Exists   bool   `json:"exists"`
	}
	rec := doJSON(t, engine, http.MethodPost, "/api/rooms/join", map[string]string{"roomCode": " abc123 "}, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.OK)
	assert.Equal(t, "ABC123", resp.RoomCode)
	assert.False(t, resp.Exists)

	_, err := st.EnsureRoom(context.Background(), "ABC123", "")
	require.NoError(t, err)

	rec = doJSON(t, engine, http.MethodPost, "/api/rooms/join", map[string]string{"roomCode": "abc123"}, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Exists)
}

func TestJoinRequiresRoomCode(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/rooms/join", map[string]string{"roomCode": "   "}, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnsureCreatesRoomOnce(t *testing.T) {
	engine, st := newTestRouter(t, nil)

	var resp struct {
		Room RoomInfoResponse `json:"room"`
	}
	rec := doJSON(t, engine, http.MethodPost, "/api/rooms/ensure", map[string]string{"roomCode": "abc123", "name": "Lobby"}, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABC123", resp.Room.Code)
	assert.True(t, resp.Room.Exists)

	room, err := st.GetRoom(context.Background(), "ABC123")
	require.NoError(t, err)
	created := room.CreatedAt

	rec = doJSON(t, engine, http.MethodPost, "/api/rooms/ensure", map[string]string{"roomCode": "ABC123"}, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	room, err = st.GetRoom(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, created, room.CreatedAt)
	assert.Equal(t, "Lobby", room.Name)
}

func TestInfoDoesNotLeak404(t *testing.T) {
	engine, st := newTestRouter(t, nil)

	var resp RoomInfoResponse
	rec := doJSON(t, engine, http.MethodGet, "/api/rooms/info?roomCode=zzz999", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ZZZ999", resp.Code)
	assert.False(t, resp.Exists)

	_, err := st.EnsureRoom(context.Background(), "ZZZ999", "Hidden")
	require.NoError(t, err)

	rec = doJSON(t, engine, http.MethodGet, "/api/rooms/info?roomCode=zzz999", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Exists)
	assert.Equal(t, "Hidden", resp.Name)
}

func TestAdminEndpointsRequireSecret(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodGet, "/api/admin/rooms/list", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/admin/rooms/list", nil, map[string]string{AdminSecretHeader: "wrong"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/admin/rooms/list", nil, adminHeaders(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	engine, _ := newTestRouter(t, func(cfg *config.Config) { cfg.AdminSecretHash = "" })

	rec := doJSON(t, engine, http.MethodGet, "/api/admin/rooms/list", nil, adminHeaders(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRenamePostsNotice(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "Old")
	require.NoError(t, err)

	rec := doJSON(t, engine, http.MethodPost, "/api/admin/rooms/name",
		map[string]string{"roomCode": "abc123", "name": "New Name"}, adminHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	room, err := st.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "New Name", room.Name)

	msgs, err := st.ListMessages(ctx, "ABC123", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystem)
	assert.Equal(t, store.SystemNickname, msgs[0].Nickname)
	assert.Contains(t, msgs[0].Text, "New Name")
}

func TestAdminRenameUnknownRoom(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/admin/rooms/name",
		map[string]string{"roomCode": "NOPE", "name": "X"}, adminHeaders(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSuspendBlocksSendsAndPostsNotice(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "")
	require.NoError(t, err)

	rec := doJSON(t, engine, http.MethodPost, "/api/admin/rooms/suspend",
		map[string]any{"roomCode": "ABC123", "suspended": true}, adminHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// User sends are rejected while suspended.
	rec = doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": "hi"}, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// But the suspension notice itself made it through.
	msgs, err := st.ListMessages(ctx, "ABC123", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystem)

	rec = doJSON(t, engine, http.MethodPost, "/api/admin/rooms/suspend",
		map[string]any{"roomCode": "ABC123", "suspended": false}, adminHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/messages/send",
		map[string]string{"roomCode": "ABC123", "nickname": "alice", "text": "hi"}, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminClearLeavesSingleNotice(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "")
	require.NoError(t, err)
	for n := 0; n < 3; n++ {
		_, err := st.AppendMessage(ctx, store.NewMessage{RoomCode: "ABC123", Nickname: "alice", Text: "hi"})
		require.NoError(t, err)
	}

	rec := doJSON(t, engine, http.MethodPost, "/api/admin/rooms/clear",
		map[string]string{"roomCode": "ABC123"}, adminHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := st.ListMessages(ctx, "ABC123", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystem)
}

func TestAdminDeleteRoom(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "ABC123", "")
	require.NoError(t, err)

	rec := doJSON(t, engine, http.MethodPost, "/api/admin/rooms/delete",
		map[string]string{"roomCode": "ABC123"}, adminHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = st.GetRoom(ctx, "ABC123")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)

	rec = doJSON(t, engine, http.MethodPost, "/api/admin/rooms/delete",
		map[string]string{"roomCode": "ABC123"}, adminHeaders(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListRooms(t *testing.T) {
	engine, st := newTestRouter(t, nil)
	ctx := context.Background()

	_, err := st.EnsureRoom(ctx, "AAA111", "First")
	require.NoError(t, err)
	_, err = st.EnsureRoom(ctx, "BBB222", "Second")
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, store.NewMessage{RoomCode: "AAA111", Nickname: "alice", Text: "hi"})
	require.NoError(t, err)

	var resp struct {
		Rooms []RoomResponse `json:"rooms"`
	}
	rec := doJSON(t, engine, http.MethodGet, "/api/admin/rooms/list", nil, adminHeaders(), &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "AAA111", resp.Rooms[0].Code)
	assert.Equal(t, 1, resp.Rooms[0].MessageCount)
}

func TestHealth(t *testing.T) {
	engine, _ := newTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodGet, "/health", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
