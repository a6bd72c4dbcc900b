package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
	httperrors "github.com/hnrs/adaptive-quiz/pkg/http/errors"
	ws "github.com/hnrs/adaptive-quiz/pkg/http/ws"
)

const incidentTimeout = 10 * time.Second

// ProctorStream accepts incident frames over a websocket and pushes the auto-submit
// notice to every stream open on the session, however the final incident arrived.
type ProctorStream struct {
	proctor  IncidentLogger
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

func NewProctorStream(proctor IncidentLogger, hub *ws.Hub, upgrader *websocket.Upgrader, logger zerolog.Logger) *ProctorStream {
	return &ProctorStream{
		proctor:  proctor,
		hub:      hub,
		upgrader: upgrader,
		logger:  logger.With().Str("component", "proctor_ws").Logger(),
	}
}

// HandleWebSocket handles GET /ws/proctor?session_id=
func (p *ProctorStream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Missing session_id")
		return
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := ws.NewConnection(conn, p.logger.With().Str("session_id", sessionID).Logger())
	p.hub.Register(sessionID, c)
	go c.WritePump()

	c.ReadPump(func(raw json.RawMessage) error {
		return p.handleFrame(sessionID, c, raw)
	})
	p.hub.Unregister(sessionID, c)
}

func (p *ProctorStream) handleFrame(sessionID string, c *ws.Connection, raw json.RawMessage) error {
	var frame ws.IncidentFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return c.Send(ws.ErrorFrame{Error: httperrors.ErrCodeInvalidPayload, Message: "Invalid incident frame"})
	}
	violation := strings.TrimSpace(frame.ViolationType)
	if violation == "" {
		return c.Send(ws.ErrorFrame{Error: httperrors.ErrCodeInvalidPayload, Message: "violation_type is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), incidentTimeout)
	defer cancel()

	res, err := p.proctor.LogIncident(ctx, sessionID, violation)
	if errors.Is(err, quiz.ErrSessionInvalid) {
		_ = c.Send(ws.ErrorFrame{Error: httperrors.ErrCodeSessionInvalid, Message: quiz.ErrSessionInvalid.Error()})
		c.CloseWith(websocket.ClosePolicyViolation, "session is not active")
		return nil
	}
	if err != nil {
		p.logger.Error().Err(err).Str("session_id", sessionID).Msg("log incident")
		return c.Send(ws.ErrorFrame{Error: httperrors.ErrCodeInternalError, Message: "Could not record incident"})
	}

	if res.Status == quiz.StatusAutoSubmitted {
		// a no-op when the monitor already notified this stream
		p.AutoSubmitted(sessionID, res.Count)
		return nil
	}
	return c.Send(ws.IncidentReply{ViolationCount: res.Count, Status: string(res.Status)})
}

// AutoSubmitted tells every open stream of the session and then closes them.
func (p *ProctorStream) AutoSubmitted(sessionID string, count int) {
	n := p.hub.Broadcast(sessionID, ws.IncidentReply{ViolationCount: count, Status: string(quiz.StatusAutoSubmitted)})
	p.hub.CloseSession(sessionID, websocket.CloseNormalClosure, "auto-submitted")
	if n > 0 {
		p.logger.Info().Str("session_id", sessionID).Int("streams", n).Msg("auto-submit pushed")
	}
}
