package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mission-quiz-service/internal/app"
	"mission-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.MissionService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.MissionService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice *int `json:"choice"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request, creates an attempt for the player and drives it from client messages.
// The attempt is abandoned when the connection goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	missionID := r.URL.Query().Get("missionId")
	playerID := r.URL.Query().Get("playerId")
	if missionID == "" || playerID == "" {
		http.Error(w, "missing missionId or playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	snap, err := h.service.StartAttempt(ctx, missionID, playerID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	c := &wsConn{
		h:          h,
		conn:       conn,
		send:       make(chan outboundMessage, 16),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go c.write()

	attemptID := snap.AttemptID
	defer func() { h.service.Abandon(context.Background(), attemptID) }()
	cancel, err := c.follow(ctx, attemptID)
	if err != nil {
		c.emit(errorMessage(err))
		c.shutdown()
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var opErr error
		switch inbound.Type {
		case "start":
			_, opErr = h.service.Begin(ctx, attemptID)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Choice == nil {
				c.emit(outboundMessage{Type: "error", Payload: errorPayload{Code: "bad_payload", Message: "invalid answer payload"}})
				continue
			}
			_, opErr = h.service.Answer(ctx, attemptID, *payload.Choice)
		case "timeout":
			_, opErr = h.service.Timeout(ctx, attemptID)
		case "advance":
			_, opErr = h.service.Advance(ctx, attemptID)
		case "redeem":
			_, opErr = h.service.RedeemBonus(ctx, attemptID)
		case "decline":
			_, opErr = h.service.Decline(ctx, attemptID)
		case "retry":
			next, err := h.service.Retry(ctx, attemptID)
			if err != nil {
				opErr = err
				break
			}
			cancel()
			attemptID = next.AttemptID
			if cancel, opErr = c.follow(ctx, attemptID); opErr != nil {
				cancel = func() {}
			}
		default:
			c.emit(outboundMessage{Type: "error", Payload: errorPayload{Code: "unsupported", Message: "unsupported message type"}})
			continue
		}
		if opErr != nil {
			c.emit(errorMessage(opErr))
		}
	}

	cancel()
	c.shutdown()
}

// wsConn serializes writes to one websocket; every outbound message goes through send.
type wsConn struct {
	h    *WSHandler
	conn *websocket.Conn

	send       chan outboundMessage
	closing    chan struct{}
	writerDone chan struct{}
	forwarders sync.WaitGroup
}

func (c *wsConn) write() {
	defer close(c.writerDone)
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.h.log.Debug().Err(err).Msg("ws write error")
			// Unblocks the read loop.
			_ = c.conn.Close()
			return
		}
	}
}

// emit queues a message unless the writer has already stopped.
func (c *wsConn) emit(msg outboundMessage) {
	select {
	case c.send <- msg:
	case <-c.writerDone:
	}
}

// follow subscribes to an attempt and forwards its snapshots until the subscription ends.
func (c *wsConn) follow(ctx context.Context, attemptID string) (func(), error) {
	updates, cancel, err := c.h.service.Subscribe(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				c.forward(outboundMessage{Type: "attempt", Payload: snap})
				if snap.Phase == domain.PhasePassed {
					if result, err := c.h.service.Result(ctx, snap.AttemptID); err == nil {
						c.forward(outboundMessage{Type: "result", Payload: result})
					}
				}
			case <-c.closing:
				return
			}
		}
	}()
	return cancel, nil
}

func (c *wsConn) forward(msg outboundMessage) {
	select {
	case c.send <- msg:
	case <-c.closing:
	case <-c.writerDone:
	}
}

func (c *wsConn) shutdown() {
	close(c.closing)
	c.forwarders.Wait()
	close(c.send)
	<-c.writerDone
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		return "attempt_not_found"
	case errors.Is(err, domain.ErrAttemptClosed):
		return "attempt_closed"
	case errors.Is(err, domain.ErrPhaseRejected):
		return "phase_rejected"
	case errors.Is(err, domain.ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, domain.ErrInsufficientBonus):
		return "insufficient_bonus"
	case errors.Is(err, domain.ErrResultNotRecorded):
		return "result_not_recorded"
	case errors.Is(err, domain.ErrInsufficientQuestions):
		return "insufficient_questions"
	case errors.Is(err, domain.ErrContentUnavailable):
		return "content_unavailable"
	case errors.Is(err, domain.ErrInvalidRules), errors.Is(err, domain.ErrInvalidQuestion), errors.Is(err, domain.ErrUnknownPreset):
		return "invalid_content"
	default:
		return "internal"
	}
}
