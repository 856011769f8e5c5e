package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"roomchat/internal/metrics"
	"roomchat/internal/store"
)

// RoomHandlers provides HTTP handlers for room endpoints, public and admin.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// RoomRequest is the shared body for room endpoints keyed by code.
type RoomRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

// SuspendRequest toggles a room's suspension.
type SuspendRequest struct {
	RoomCode  string `json:"roomCode"`
	Suspended bool   `json:"suspended"`
}

// Join confirms a room code is well-formed and reports whether it exists.
// POST /api/rooms/join
func (h *RoomHandlers) Join(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}

	exists := true
	if _, err := h.store.GetRoom(c.Request.Context(), req.RoomCode); err != nil {
		if !errors.Is(err, store.ErrRoomNotFound) {
			writeStoreError(c, h.log, err, "join room")
			return
		}
		exists = false
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "roomCode": req.RoomCode, "exists": exists})
}

// Ensure creates the room if it does not exist yet and returns its info.
// POST /api/rooms/ensure
func (h *RoomHandlers) Ensure(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}

	created := false
	if _, err := h.store.GetRoom(c.Request.Context(), req.RoomCode); err != nil {
		if !errors.Is(err, store.ErrRoomNotFound) {
			writeStoreError(c, h.log, err, "ensure room")
			return
		}
		created = true
	}

	room, err := h.store.EnsureRoom(c.Request.Context(), req.RoomCode, req.Name)
	if err != nil {
		writeStoreError(c, h.log, err, "ensure room")
		return
	}
	if created {
		metrics.RoomCreated()
		h.log.Info().Str("room_code", room.Code).Msg("room created")
	}

	c.JSON(http.StatusOK, gin.H{"room": roomToInfoResponse(room)})
}

// Info returns room metadata without a 404 for unknown codes.
// GET /api/rooms/info?roomCode=X
func (h *RoomHandlers) Info(c *gin.Context) {
	code := store.NormalizeCode(c.Query("roomCode"))
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomCode is required"})
		return
	}

	room, err := h.store.GetRoom(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			c.JSON(http.StatusOK, absentRoomInfo(code))
			return
		}
		writeStoreError(c, h.log, err, "room info")
		return
	}

	c.JSON(http.StatusOK, roomToInfoResponse(room))
}

// List returns all rooms, most recently active first.
// GET /api/rooms/list (admin)
func (h *RoomHandlers) List(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		writeStoreError(c, h.log, err, "list rooms")
		return
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomToResponse(room))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

// Create creates (or updates the name of) a room with the given code.
// POST /api/rooms/create (admin)
func (h *RoomHandlers) Create(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}

	created := false
	if _, err := h.store.GetRoom(c.Request.Context(), req.RoomCode); err != nil {
		if !errors.Is(err, store.ErrRoomNotFound) {
			writeStoreError(c, h.log, err, "create room")
			return
		}
		created = true
	}

	room, err := h.store.EnsureRoom(c.Request.Context(), req.RoomCode, req.Name)
	if err != nil {
		writeStoreError(c, h.log, err, "create room")
		return
	}
	if created {
		metrics.RoomCreated()
		h.log.Info().Str("room_code", room.Code).Msg("room created by admin")
	}

	c.JSON(http.StatusOK, gin.H{"room": roomToResponse(room)})
}

// Rename updates a room's display name and posts a system notice.
// POST /api/rooms/name (admin)
func (h *RoomHandlers) Rename(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}

	room, err := h.store.RenameRoom(c.Request.Context(), req.RoomCode, req.Name)
	if err != nil {
		writeStoreError(c, h.log, err, "rename room")
		return
	}

	h.postSystemNotice(c, room.Code, `Room name changed to "`+room.Name+`"`)
	h.log.Info().Str("room_code", room.Code).Str("name", room.Name).Msg("room renamed")
	c.JSON(http.StatusOK, gin.H{"room": roomToResponse(room)})
}

// Suspend toggles a room's suspension flag and posts a system notice.
// POST /api/rooms/suspend (admin)
func (h *RoomHandlers) Suspend(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	code := store.NormalizeCode(req.RoomCode)
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomCode is required"})
		return
	}

	room, err := h.store.SetSuspended(c.Request.Context(), code, req.Suspended)
	if err != nil {
		writeStoreError(c, h.log, err, "suspend room")
		return
	}

	notice := "This room has been suspended"
	if !req.Suspended {
		notice = "This room has been resumed"
	}
	h.postSystemNotice(c, room.Code, notice)

	h.log.Info().Str("room_code", room.Code).Bool("suspended", room.Suspended).Msg("room suspension updated")
	c.JSON(http.StatusOK, roomToInfoResponse(room))
}

// Clear wipes a room's messages and posts a single system notice.
// POST /api/rooms/clear (admin)
func (h *RoomHandlers) Clear(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}

	if err := h.store.ClearMessages(c.Request.Context(), req.RoomCode); err != nil {
		writeStoreError(c, h.log, err, "clear room")
		return
	}

	h.postSystemNotice(c, req.RoomCode, "All messages in this room were removed by an administrator")

	h.log.Info().Str("room_code", req.RoomCode).Msg("room cleared")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a room and all of its messages.
// POST /api/rooms/delete (admin)
func (h *RoomHandlers) Delete(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}

	existed, err := h.store.DeleteRoom(c.Request.Context(), req.RoomCode)
	if err != nil {
		writeStoreError(c, h.log, err, "delete room")
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	h.log.Info().Str("room_code", req.RoomCode).Msg("room deleted")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// postSystemNotice appends an administrative notice to the room. Failures
// are logged and do not fail the admin action itself.
func (h *RoomHandlers) postSystemNotice(c *gin.Context, code, text string) {
	_, err := h.store.AppendMessage(c.Request.Context(), store.NewMessage{
		RoomCode: code,
		Nickname: store.SystemNickname,
		Text:     text,
		IsSystem: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("room_code", code).Msg("failed to post system notice")
		return
	}
	metrics.MessageAppended(true)
}

func bindRoomRequest(c *gin.Context) (RoomRequest, bool) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return req, false
	}
	req.RoomCode = store.NormalizeCode(req.RoomCode)
	if req.RoomCode == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomCode is required"})
		return req, false
	}
	return req, true
}
