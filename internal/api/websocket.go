package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/gate"
)

// Outbound message types on the control channel.
const (
	msgTypeGateStatus = "gate_status"
	msgTypeResponse   = "response"
	msgTypeError      = "error"
)

// wsWriteTimeout bounds a single write to the peer.
const wsWriteTimeout = 10 * time.Second

// wsCommand is one incoming control-channel message.
type wsCommand struct {
	Command             string   `json:"command"`
	TransactionID       *string  `json:"transaction_id,omitempty"`
	VehiclePlate        *string  `json:"vehicle_plate,omitempty"`
	OpenDurationSeconds *float64 `json:"open_duration_seconds,omitempty"`
}

// wsStatusMessage carries a gate snapshot to the peer.
type wsStatusMessage struct {
	Type string `json:"type"`
	gate.Snapshot
}

// wsResponseMessage acknowledges a submitted command.
type wsResponseMessage struct {
	Type string `json:"type"`
	dispatch.Ack
}

// wsErrorMessage reports a rejected or malformed command.
type wsErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsClient is one connected control-channel peer.
//
// Each client owns a read pump (commands in) and a write pump
// (snapshots, acks and pings out). All writes to the connection go
// through the outbound channel so the gorilla connection sees a single
// writer.
type wsClient struct {
	server *Server
	conn   *websocket.Conn

	// outbound carries serialised frames to the write pump.
	outbound chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Operator panels are served from other origins on the local
		// network; the deployment perimeter handles access control.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		server:   s,
		conn:     conn,
		outbound: make(chan []byte, 32),
		done:     make(chan struct{}),
	}
	s.registerClient(client)

	go client.writePump()
	go client.readPump()
}

// shutdown closes the connection and releases the client.
func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.server.unregisterClient(c)
	})
}

// enqueue serialises a message onto the outbound channel. Frames are
// dropped rather than blocking when the peer cannot keep up; the next
// status broadcast supersedes anything lost.
func (c *wsClient) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("marshalling websocket message", "error", err)
		return
	}
	select {
	case c.outbound <- data:
	case <-c.done:
	default:
		c.server.logger.Warn("websocket outbound buffer full, dropping frame")
	}
}

// readPump reads commands from the peer until the connection drops.
func (c *wsClient) readPump() {
	defer c.shutdown()

	cfg := c.server.wsCfg
	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}

	pongWait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	if pongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump sends outbound frames and keepalive pings until shutdown.
func (c *wsClient) writePump() {
	pingInterval := time.Duration(c.server.wsCfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	obs := c.server.broadcaster.Subscribe(0)
	defer c.server.broadcaster.Unsubscribe(obs)

	// First frame is the current status. Subscribing before reading it
	// means any transition racing the connect lands in the observer
	// buffer; the version check below discards the ones the initial
	// frame already covered, so the peer never sees state go backwards.
	initial := c.server.broadcaster.Current()
	if !c.writeJSON(wsStatusMessage{Type: msgTypeGateStatus, Snapshot: initial}) {
		c.shutdown()
		return
	}
	lastSentVersion := initial.SequenceVersion

	for {
		select {
		case <-c.done:
			return

		case snap, ok := <-obs.Snapshots():
			if !ok {
				return
			}
			if snap.SequenceVersion <= lastSentVersion {
				continue
			}
			if !c.writeJSON(wsStatusMessage{Type: msgTypeGateStatus, Snapshot: snap}) {
				c.shutdown()
				return
			}
			lastSentVersion = snap.SequenceVersion

		case data := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// writeJSON marshals and writes one frame directly from the write pump.
func (c *wsClient) writeJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("marshalling websocket message", "error", err)
		return true
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data) == nil
}

// handleMessage parses and dispatches one control-channel command.
func (c *wsClient) handleMessage(data []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.enqueue(wsErrorMessage{Type: msgTypeError, Code: ErrCodeBadRequest, Message: "invalid JSON message"})
		return
	}

	parsed, err := dispatch.ParseCommand(cmd.Command)
	if err != nil {
		c.enqueue(wsErrorMessage{Type: msgTypeError, Code: ErrCodeUnknownCommand, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := c.server.dispatcher.Submit(ctx, dispatch.Request{
		Command:             parsed,
		TransactionID:       cmd.TransactionID,
		VehiclePlate:        cmd.VehiclePlate,
		OpenDurationSeconds: cmd.OpenDurationSeconds,
		Source:              dispatch.SourceControlChannel,
	})
	if err != nil {
		c.enqueue(wsErrorMessage{Type: msgTypeError, Code: dispatchErrorCode(err), Message: err.Error()})
		return
	}

	c.enqueue(wsResponseMessage{Type: msgTypeResponse, Ack: ack})
}

// dispatchErrorCode maps dispatcher errors onto wire error codes.
func dispatchErrorCode(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrGateBusy):
		return ErrCodeGateBusy
	case errors.Is(err, dispatch.ErrInvalidParameter):
		return ErrCodeBadRequest
	case errors.Is(err, gate.ErrInvalidTransition):
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}
