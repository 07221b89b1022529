package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	ws "github.com/examgate/examgate-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one attempt over WebSocket: autosave, violation
// reporting, submit, and clock-sync pings share the connection so the
// client does not pay an HTTP round trip per keystroke.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Ownership check before the upgrade so an IDOR never holds a socket.
	state, err := h.attemptService.GetState(c.Request.Context(), claims.StudentID, attemptID)
	if err != nil {
		code, status := wsAuthFailure(err)
		c.JSON(status, gin.H{"error": code})
		return
	}
	showClock := state.RemainingSeconds != nil

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", claims.StudentID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, claims.StudentID, attemptID, &msg)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, claims.StudentID, attemptID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, claims.StudentID, attemptID)
		case ws.ActionPing:
			h.handlePing(conn, attemptID, showClock)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrValidation), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, studentID string, attemptID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QID == "" || msg.Answer == "" {
		ws.WriteError(conn, string(response.ErrValidation), "q_id and ans are required")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		ws.WriteError(conn, string(response.ErrInvalidID), "invalid q_id format")
		return
	}

	if err := h.attemptService.SaveAnswer(context.Background(), studentID, attemptID, questionID, msg.Answer); err != nil {
		code, errMsg := wsErrCode(err)
		ws.WriteError(conn, code, errMsg)
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID})
}

func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, studentID string, attemptID uuid.UUID, msg *ws.RequestPayload) {
	if !model.ValidViolationType(model.ViolationType(msg.ViolationType)) {
		ws.WriteError(conn, string(response.ErrValidation), "unknown violation type: "+msg.ViolationType)
		return
	}

	occurredAt := msg.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	outcome, err := h.attemptService.RecordViolation(context.Background(), studentID, attemptID, &model.ReportViolationRequest{
		Type:       msg.ViolationType,
		OccurredAt: occurredAt,
	})
	if err != nil {
		code, errMsg := wsErrCode(err)
		ws.WriteError(conn, code, errMsg)
		return
	}

	ws.WriteTyped(conn, ws.ViolationResponse{
		Event:             ws.EventViolation,
		Accepted:          outcome.Accepted,
		ThresholdBreached: outcome.ThresholdBreached,
	})

	if outcome.ThresholdBreached {
		// The attempt was auto-submitted; push the outcome on the same socket.
		if state, serr := h.attemptService.GetState(context.Background(), studentID, attemptID); serr == nil && state.Attempt.Result != nil {
			h.writeFinalized(conn, state.Attempt)
		} else if serr != nil {
			wsLog.Warn().Err(serr).Msg("Failed to load finalized state after threshold breach")
		}
	}
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, studentID string, attemptID uuid.UUID) {
	attempt, err := h.attemptService.Submit(context.Background(), studentID, attemptID)
	if err != nil {
		code, errMsg := wsErrCode(err)
		ws.WriteError(conn, code, errMsg)
		return
	}

	wsLog.Info().Str("status", string(attempt.Status)).Msg("Attempt submitted over websocket")
	h.writeFinalized(conn, attempt)
}

func (h *WSHandler) handlePing(conn *websocket.Conn, attemptID uuid.UUID, showClock bool) {
	pong := ws.PongResponse{
		Event:      ws.EventPong,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	}
	if showClock {
		if remaining, err := h.attemptService.RemainingSeconds(context.Background(), attemptID); err == nil {
			pong.RemainingSeconds = remaining
		}
	}
	ws.WriteTyped(conn, pong)
}

func (h *WSHandler) writeFinalized(conn *websocket.Conn, attempt *model.Attempt) {
	resp := ws.FinalizedResponse{
		Event:  ws.EventFinalized,
		Status: string(attempt.Status),
	}
	if attempt.Result != nil {
		resp.Score = attempt.Result.Score
		resp.Percentage = attempt.Result.Percentage
		resp.Passed = attempt.Result.Passed
	}
	ws.WriteTyped(conn, resp)
}

// wsAuthFailure maps pre-upgrade state errors to an HTTP rejection.
func wsAuthFailure(err error) (string, int) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return string(response.ErrNotFound), http.StatusNotFound
	case errors.Is(err, service.ErrNotAttemptOwner):
		return string(response.ErrForbidden), http.StatusForbidden
	default:
		return string(response.ErrInternal), http.StatusInternalServerError
	}
}

// wsErrCode maps attempt service errors to envelope error codes for
// in-stream error events.
func wsErrCode(err error) (string, string) {
	var code response.ErrCode
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		code = response.ErrNotFound
	case errors.Is(err, service.ErrNotAttemptOwner):
		code = response.ErrForbidden
	case errors.Is(err, service.ErrAttemptClosed):
		code = response.ErrInvalidTransition
	case errors.Is(err, service.ErrAttemptExpired):
		code = response.ErrExpiredWrite
	case errors.Is(err, service.ErrUnknownQuestion):
		code = response.ErrUnknownQuestion
	case errors.Is(err, service.ErrScoringFailed):
		code = response.ErrScoringFailed
	default:
		code = response.ErrInternal
	}
	return string(code), response.GetMessage(code)
}
