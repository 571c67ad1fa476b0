package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/relaychat/relaychat-server/internal/blob"
	"github.com/relaychat/relaychat-server/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// MessageHandlers provides HTTP handlers for message history and uploads.
type MessageHandlers struct {
	store store.MessageStore
	blobs *blob.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, blobs *blob.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		blobs: blobs,
		log:   logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	SenderID  string   `json:"senderId"`
	Message   string   `json:"message"`
	RoomID    string   `json:"roomId,omitempty"`
	To        string   `json:"to,omitempty"`
	IsPrivate bool     `json:"isPrivate"`
	FileURL   string   `json:"fileUrl,omitempty"`
	Reactions []string `json:"reactions"`
	ReadBy    []string `json:"readBy"`
	Timestamp string   `json:"timestamp"`
}

// ListMessages handles public message history with pagination and search.
// GET /api/messages?page=1&limit=20&search=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), store.MessageFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(msgs, func(m *store.Message, _ int) MessageResponse {
		return messageResponse(m)
	}))
}

// UploadFile handles attachment uploads: it stores the blob, persists a file
// message, and returns the record so the client can announce it over the
// socket.
// POST /api/messages/upload (multipart form: file, sender, senderId, to, isPrivate, roomId)
func (h *MessageHandlers) UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	fileURL, err := h.blobs.Save(fileHeader)
	if err != nil {
		h.log.Error().Err(err).Str("file", fileHeader.Filename).Msg("failed to store upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	isPrivate := c.PostForm("isPrivate") == "true" || c.PostForm("to") != ""
	msg := &store.Message{
		ID:        uuid.NewString(),
		Sender:    c.PostForm("sender"),
		SenderID:  c.PostForm("senderId"),
		Body:      fileHeader.Filename,
		Room:      c.PostForm("roomId"),
		To:        c.PostForm("to"),
		IsPrivate: isPrivate,
		FileURL:   fileURL,
		CreatedAt: time.Now().UTC(),
	}
	if msg.Sender == "" {
		msg.Sender = "Anonymous"
	}

	if err := h.store.CreateMessage(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("file", fileHeader.Filename).Msg("failed to persist file message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("file", fileHeader.Filename).Str("url", fileURL).Msg("file uploaded")
	c.JSON(http.StatusCreated, messageResponse(msg))
}

func messageResponse(m *store.Message) MessageResponse {
	reactions := m.Reactions
	if reactions == nil {
		reactions = []string{}
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return MessageResponse{
		ID:        m.ID,
		Sender:    m.Sender,
		SenderID:  m.SenderID,
		Message:   m.Body,
		RoomID:    m.Room,
		To:        m.To,
		IsPrivate: m.IsPrivate,
		FileURL:   m.FileURL,
		Reactions: reactions,
		ReadBy:    readBy,
		Timestamp: m.CreatedAt.Format(time.RFC3339),
	}
}
