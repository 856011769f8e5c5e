package http

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"roomchat/internal/filter"
	"roomchat/internal/metrics"
	"roomchat/internal/store"
)

// DefaultMessageLimit bounds a poll response when the client doesn't ask
// for a specific page size.
const DefaultMessageLimit = 200

// MessageHandlers provides HTTP handlers for sending and polling messages.
type MessageHandlers struct {
	store      store.Store
	masker     *filter.Masker
	log        *zerolog.Logger
	autoCreate bool
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, masker *filter.Masker, logger *zerolog.Logger, autoCreate bool) *MessageHandlers {
	return &MessageHandlers{
		store:      st,
		masker:     masker,
		log:        logger,
		autoCreate: autoCreate,
	}
}

// SendRequest is the body for posting a user message.
type SendRequest struct {
	RoomCode string `json:"roomCode"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// Send validates, masks and appends a user message to a room.
// POST /api/messages/send
func (h *MessageHandlers) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	code := store.NormalizeCode(req.RoomCode)
	nickname := strings.TrimSpace(req.Nickname)
	text := strings.TrimSpace(req.Text)

	switch {
	case code == "":
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomCode is required"})
		return
	case nickname == "":
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nickname is required"})
		return
	case text == "":
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	case utf8.RuneCountInString(text) > store.MaxTextLen:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is too long"})
		return
	case strings.EqualFold(nickname, store.SystemNickname):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nickname is reserved"})
		return
	}

	if h.autoCreate {
		if _, err := h.store.EnsureRoom(c.Request.Context(), code, ""); err != nil {
			writeStoreError(c, h.log, err, "ensure room")
			return
		}
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), store.NewMessage{
		RoomCode: code,
		Nickname: store.TruncateName(nickname, store.MaxNicknameLen),
		Text:     h.masker.Mask(text),
	})
	if err != nil {
		writeStoreError(c, h.log, err, "send message")
		return
	}
	metrics.MessageAppended(false)

	c.JSON(http.StatusOK, gin.H{"message": messageToResponse(msg)})
}

// List polls a room for messages. With an `after` cursor it returns the
// oldest messages newer than the cursor; without one it returns the most
// recent tail of the room.
// GET /api/messages/list?roomCode=X&after=N&limit=M
func (h *MessageHandlers) List(c *gin.Context) {
	code := store.NormalizeCode(c.Query("roomCode"))
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomCode is required"})
		return
	}

	limit := DefaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	var (
		msgs []*store.Message
		err  error
	)
	if raw := c.Query("after"); raw != "" {
		after, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || after < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "after must be a non-negative integer"})
			return
		}
		msgs, err = h.store.ListMessages(c.Request.Context(), code, after, limit)
	} else {
		msgs, err = h.store.ListRecentMessages(c.Request.Context(), code, limit)
	}
	if err != nil {
		writeStoreError(c, h.log, err, "list messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messagesToResponse(msgs)})
}
