package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"roomchat/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse represents a room in API responses. Timestamps are epoch
// milliseconds; lastMessageAt is omitted while the room has no messages.
type RoomResponse struct {
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	Suspended     bool   `json:"suspended"`
	CreatedAt     int64  `json:"createdAt"`
	LastMessageAt *int64 `json:"lastMessageAt,omitempty"`
	MessageCount  int    `json:"messageCount"`
}

// RoomInfoResponse is RoomResponse plus an existence flag, for lookups that
// must not 404 (a client checking a code before joining).
type RoomInfoResponse struct {
	Exists        bool   `json:"exists"`
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	Suspended     bool   `json:"suspended"`
	CreatedAt     *int64 `json:"createdAt,omitempty"`
	LastMessageAt *int64 `json:"lastMessageAt,omitempty"`
	MessageCount  int    `json:"messageCount"`
}

// MessageResponse represents a message in API responses. createdAt doubles
// as the polling cursor.
type MessageResponse struct {
	ID        string `json:"id"`
	RoomCode  string `json:"roomCode"`
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	IsSystem  bool   `json:"isSystem"`
	CreatedAt int64  `json:"createdAt"`
}

func roomToResponse(room *store.Room) RoomResponse {
	resp := RoomResponse{
		Code:         room.Code,
		Name:         room.Name,
		Suspended:    room.Suspended,
		CreatedAt:    room.CreatedAt.UnixMilli(),
		MessageCount: room.MessageCount,
	}
	if room.LastMessageAt != nil {
		ms := room.LastMessageAt.UnixMilli()
		resp.LastMessageAt = &ms
	}
	return resp
}

func roomToInfoResponse(room *store.Room) RoomInfoResponse {
	created := room.CreatedAt.UnixMilli()
	resp := RoomInfoResponse{
		Exists:       true,
		Code:         room.Code,
		Name:         room.Name,
		Suspended:    room.Suspended,
		CreatedAt:    &created,
		MessageCount: room.MessageCount,
	}
	if room.LastMessageAt != nil {
		ms := room.LastMessageAt.UnixMilli()
		resp.LastMessageAt = &ms
	}
	return resp
}

func absentRoomInfo(code string) RoomInfoResponse {
	return RoomInfoResponse{Exists: false, Code: code}
}

func messageToResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		RoomCode:  msg.RoomCode,
		Nickname:  msg.Nickname,
		Text:      msg.Text,
		IsSystem:  msg.IsSystem,
		CreatedAt: msg.CreatedAt.UnixMilli(),
	}
}

func messagesToResponse(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	return out
}

// writeStoreError maps store failures onto HTTP statuses: NotFound -> 404,
// Suspended -> 403, anything else -> 500.
func writeStoreError(c *gin.Context, logger *zerolog.Logger, err error, action string) {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, store.ErrRoomSuspended):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "room is suspended"})
	default:
		logger.Error().Err(err).Str("action", action).Msg("store operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
