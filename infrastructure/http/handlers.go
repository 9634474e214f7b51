package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"studyrooms/contract"
	"studyrooms/domain"
)

var validate = validator.New()

type Handler struct {
	service    contract.ICollabService
	bufferSize int
	log        *slog.Logger
}

func NewHandler(log *slog.Logger, service contract.ICollabService, bufferSize int) *Handler {
	return &Handler{service: service, bufferSize: bufferSize, log: log}
}

func roomKey(c echo.Context) domain.RoomKey {
	return domain.RoomKey{Type: c.Param("type"), ID: c.Param("id")}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// OpenSession creates a session for the authenticated identity.
func (h *Handler) OpenSession(c echo.Context) error {
	claims := identity(c)
	sessionID, err := h.service.OpenSession(claims.UserID, claims.EstablishmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sessionResponse{SessionID: sessionID})
}

// CloseSession is idempotent: closing an unknown session is still a 204.
func (h *Handler) CloseSession(c echo.Context) error {
	h.service.CloseSession(c.Param("session_id"))
	return c.NoContent(http.StatusNoContent)
}

// Touch refreshes the session heartbeat.
func (h *Handler) Touch(c echo.Context) error {
	if err := h.service.Touch(c.Param("session_id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type joinRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type joinResponse struct {
	Sequence    uint64 `json:"sequence"`
	MemberCount int    `json:"member_count"`
}

func (h *Handler) JoinRoom(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.JoinRoom(req.SessionID, roomKey(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, joinResponse{Sequence: state.Sequence, MemberCount: state.MemberCount})
}

func (h *Handler) LeaveRoom(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.LeaveRoom(req.SessionID, roomKey(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type membersResponse struct {
	Members []string `json:"members"`
}

func (h *Handler) ListMembers(c echo.Context) error {
	key := roomKey(c)
	if err := h.guardRoom(c, key); err != nil {
		return err
	}
	members, err := h.service.ListMembers(key)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, membersResponse{Members: members})
}

// guardRoom rejects reads of a room bound to another establishment.
// Writes are already scoped: joining checks the establishment and every
// other mutation requires membership.
func (h *Handler) guardRoom(c echo.Context, key domain.RoomKey) error {
	establishmentID, err := h.service.RoomEstablishment(key)
	if err != nil {
		return httpError(err)
	}
	if establishmentID != identity(c).EstablishmentID {
		return echo.NewHTTPError(http.StatusForbidden, "room belongs to another establishment")
	}
	return nil
}

type sendRequest struct {
	SessionID   string          `json:"session_id" validate:"required"`
	MessageType string          `json:"message_type" validate:"required"`
	Payload     json.RawMessage `json:"payload"`
}

type messageResponse struct {
	ID          string          `json:"id"`
	RoomType    string          `json:"room_type"`
	RoomID      string          `json:"room_id"`
	Sequence    uint64          `json:"sequence"`
	SenderID    string          `json:"sender_session_id"`
	MessageType string          `json:"message_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.service.SendMessage(c.Request().Context(), req.SessionID, roomKey(c),
		domain.MessageType(req.MessageType), req.Payload)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, toMessageResponse(msg))
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
}

// GetHistory reads one page of the room's log, newest first.
// "before" is an exclusive sequence cursor.
func (h *Handler) GetHistory(c echo.Context) error {
	var before *uint64
	if raw := c.QueryParam("before"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "before must be a sequence number")
		}
		before = &parsed
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}

	key := roomKey(c)
	if err := h.guardRoom(c, key); err != nil {
		return err
	}
	messages, err := h.service.GetHistory(key, before, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, historyResponse{Messages: toMessageResponses(messages)})
}

// DrainPending hands the caller every message queued while they were
// disconnected. The fetch is destructive: a second call returns an empty
// list.
func (h *Handler) DrainPending(c echo.Context) error {
	claims := identity(c)
	messages, err := h.service.DrainPending(claims.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, historyResponse{Messages: toMessageResponses(messages)})
}

type statsResponse struct {
	EstablishmentID   string `json:"establishment_id"`
	ActiveRooms       int    `json:"active_rooms"`
	TotalParticipants int    `json:"total_participants"`
	MessagesLast24h   int    `json:"messages_last_24h"`
}

func (h *Handler) GetStats(c echo.Context) error {
	claims := identity(c)
	establishmentID := c.Param("establishment_id")
	if establishmentID != claims.EstablishmentID {
		return echo.NewHTTPError(http.StatusForbidden, "stats are scoped to your establishment")
	}

	stats, err := h.service.GetStats(establishmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, statsResponse{
		EstablishmentID:   stats.EstablishmentID,
		ActiveRooms:       stats.ActiveRooms,
		TotalParticipants: stats.TotalParticipants,
		MessagesLast24h:   stats.MessagesLast24h,
	})
}

// Stream attaches a live delivery sink to the session and pushes every
// routed message as a server-sent event until the client disconnects.
// While the stream is up the session counts as live; messages sent to its
// rooms reach it here instead of the pending queue.
func (h *Handler) Stream(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	sink := NewChannelSink(h.bufferSize)
	if err := h.service.AttachSink(sessionID, sink); err != nil {
		return httpError(err)
	}
	defer h.service.DetachSink(sessionID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stream client disconnected", "session_id", sessionID)
			return nil
		case <-heartbeat.C:
			// The open stream doubles as the heartbeat.
			if err := h.service.Touch(sessionID); err != nil {
				return nil
			}
			if _, err := fmt.Fprint(resp, ": ping\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		case msg := <-sink.Events:
			data, err := json.Marshal(toMessageResponse(msg))
			if err != nil {
				h.log.Error("Failed to encode streamed message", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

func toMessageResponse(msg domain.Message) messageResponse {
	return messageResponse{
		ID:          msg.ID.String(),
		RoomType:    msg.Room.Type,
		RoomID:      msg.Room.ID,
		Sequence:    msg.Sequence,
		SenderID:    msg.SenderSessionID,
		MessageType: string(msg.Type),
		Payload:     msg.Payload,
		CreatedAt:   msg.CreatedAt,
	}
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(msg domain.Message, _ int) messageResponse {
		return toMessageResponse(msg)
	})
}
