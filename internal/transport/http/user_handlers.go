package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/relaychat/relaychat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user endpoints.
type UserHandlers struct {
	store store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	SocketID string `json:"socketId,omitempty"`
}

// ListOnline handles listing online users.
// GET /api/users
func (h *UserHandlers) ListOnline(c *gin.Context) {
	users, err := h.store.ListOnline(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list online users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(users, func(u *store.User, _ int) UserResponse {
		return UserResponse{Username: u.Username, Online: u.Online, SocketID: u.LastSocketID}
	}))
}
