// Package ws implements the session gateway: it upgrades the streaming
// connection at `/duels/ws/{duelId}`, authenticates it via the
// `?token=` query parameter (the WebSocket handshake carries no
// Authorization header), binds it to a duel/participant through
// internal/eventfabric, and relays the client message taxonomy into
// the duel engine and event fabric.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"codeduel/internal/auth"
	"codeduel/internal/config"
	"codeduel/internal/duelengine"
	"codeduel/internal/eventfabric"
	"codeduel/internal/metrics"
	"codeduel/internal/models"
	"codeduel/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// pongWait is how long a connection may stay silent before it is
// considered stale; the gateway's ping ticker fires well inside this
// window.
const pongWait = 70 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway wires an authenticated WebSocket connection into the duel
// engine and event fabric.
type Gateway struct {
	repo   *repository.Repository
	fabric *eventfabric.Fabric
	engine *duelengine.Engine
	cfg    config.DuelConfig
}

func New(repo *repository.Repository, fabric *eventfabric.Fabric, engine *duelengine.Engine, cfg config.DuelConfig) *Gateway {
	return &Gateway{repo: repo, fabric: fabric, engine: engine, cfg: cfg}
}

// Handle upgrades the request, authenticates and validates the caller's
// membership, then relays messages until the connection drops.
func (g *Gateway) Handle(c *gin.Context) {
	duelID, err := uuid.Parse(c.Param("duelId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return
	}

	claims, authErr := auth.ValidateTokenString(c.Query("token"))

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	if authErr != nil {
		closeWithCode(wsConn, eventfabric.CloseAuthFailed, "invalid or expired token")
		return
	}

	ctx := c.Request.Context()
	duel, err := g.repo.GetDuelByID(ctx, duelID)
	if err == gorm.ErrRecordNotFound {
		closeWithCode(wsConn, eventfabric.CloseDuelNotFound, "duel not found")
		return
	}
	if err != nil {
		closeWithCode(wsConn, eventfabric.CloseInternalError, "lookup failed")
		return
	}

	participant := duel.ParticipantFor(claims.UserID)
	if participant == nil {
		closeWithCode(wsConn, eventfabric.CloseNotParticipant, "not a participant of this duel")
		return
	}

	sender := newConn(wsConn)
	session := g.fabric.Attach(duelID, participant.ID, sender)
	metrics.WSConnectionsActive.Inc()
	defer metrics.WSConnectionsActive.Dec()
	defer g.fabric.Detach(session)

	g.sendDuelState(ctx, duel, participant.ID)

	pingStop := g.startPing(wsConn, session)
	defer close(pingStop)

	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		session.Touch()
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	g.readLoop(ctx, wsConn, duelID, claims.UserID, participant.ID)
}

func closeWithCode(wsConn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = wsConn.Close()
}

// sendDuelState delivers the full reconnect snapshot (duel status, bound
// problem and each participant's most recent code, drawn from the
// append-only snapshot audit trail) to the reconnecting participant
// only — the other side doesn't need a restate of data it already has.
func (g *Gateway) sendDuelState(ctx context.Context, duel *models.Duel, toParticipant uuid.UUID) {
	snapshots, err := g.repo.LatestSnapshotsForDuel(ctx, duel.ID)
	if err != nil {
		log.Printf("ws: load snapshots for duel %s: %v", duel.ID, err)
	}

	byUser := make(map[string]string, len(snapshots))
	for _, s := range snapshots {
		byUser[s.UserRef.String()] = s.Code
	}

	payload := eventfabric.DuelStatePayload{
		DuelID:    duel.ID,
		Status:    string(duel.Status),
		ProblemID: duel.ProblemRef,
		StartedAt: duel.StartedAt,
		Snapshots: byUser,
	}
	if err := g.fabric.SendToParticipant(duel.ID, toParticipant, eventfabric.DuelStateMessage(payload)); err != nil {
		log.Printf("ws: send duel state to participant %s: %v", toParticipant, err)
	}
}

// startPing keeps the connection alive with periodic WS ping control
// frames, independent of the ping/pong JSON envelopes the taxonomy also
// carries for application-level health checks.
func (g *Gateway) startPing(wsConn *websocket.Conn, session *eventfabric.Session) chan struct{} {
	stop := make(chan struct{})
	interval := g.cfg.WSTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				wsConn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	return stop
}

// clientEnvelope is the subset of eventfabric.Envelope fields the
// gateway needs to decode a client-originated message.
type clientEnvelope struct {
	Type    eventfabric.MessageType `json:"type"`
	Payload json.RawMessage         `json:"payload"`
}

// readLoop pumps frames off wsConn until it errors or closes, dispatching
// each client message by type. Per-source ordering falls out of reading
// one connection in a single goroutine.
func (g *Gateway) readLoop(ctx context.Context, wsConn *websocket.Conn, duelID, userRef, participantID uuid.UUID) {
	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}

		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		metrics.WSMessagesTotal.WithLabelValues(string(env.Type), "inbound").Inc()
		switch env.Type {
		case eventfabric.TypeCodeUpdate:
			g.handleCodeUpdate(duelID, userRef, env.Payload)
		case eventfabric.TypeTypingStatus:
			g.handleTypingStatus(duelID, participantID, env.Payload)
		case eventfabric.TypeTestCode:
			g.handleTestCode(ctx, duelID, userRef, participantID, env.Payload)
		case eventfabric.TypePing:
			_ = g.fabric.SendToParticipant(duelID, participantID, eventfabric.PongMessage())
		}
	}
}

func (g *Gateway) handleCodeUpdate(duelID, userRef uuid.UUID, raw json.RawMessage) {
	var p eventfabric.CodeUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	g.fabric.SendCodeUpdate(duelID, userRef, eventfabric.CodeUpdateMessage(userRef, p.Code, p.Language, p.CursorPosition))
}

func (g *Gateway) handleTypingStatus(duelID, participantID uuid.UUID, raw json.RawMessage) {
	var p eventfabric.TypingStatusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	g.fabric.Broadcast(duelID, eventfabric.TypingStatusMessage(p.UserID, p.IsTyping), participantID)
}

type testCodePayload struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// handleTestCode runs the visible-case grade through C6 and reports
// back to the caller only — other sessions don't see scratch runs.
func (g *Gateway) handleTestCode(ctx context.Context, duelID, userRef, participantID uuid.UUID, raw json.RawMessage) {
	var p testCodePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	result, err := g.engine.TestCode(ctx, duelID, userRef, p.Code, p.Language)
	if err != nil {
		log.Printf("ws: test_code for duel %s: %v", duelID, err)
		return
	}

	progress := 0
	if result.Total > 0 {
		progress = result.Passed * 100 / result.Total
	}
	payload := eventfabric.TestResultPayload{
		UserID:          userRef,
		Passed:          result.Passed,
		Failed:          result.Failed,
		Total:           result.Total,
		ExecutionTimeMs: result.ExecutionTimeMs,
		ProgressPercent: progress,
		IsCorrect:       result.AllPassed(),
	}
	if result.Error != "" {
		payload.Error = string(result.Error)
	}
	_ = g.fabric.SendToParticipant(duelID, participantID, eventfabric.TestResultMessage(payload))
}
