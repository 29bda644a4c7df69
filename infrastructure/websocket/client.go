package websocket

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

var (
	_ contract.EventSink = (*Client)(nil)
	_ io.Closer          = (*Client)(nil)
)

// Client is one upgraded websocket and the engine sink behind it.
// Only the write pump writes to the socket, everything else goes through
// the bounded send queue.
type Client struct {
	log       *slog.Logger
	conn      *ws.Conn
	config    Config
	userID    domain.UserID
	connID    domain.ConnectionID
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// set once before done is closed
	closeCode   int
	closeReason string
}

func newClient(log *slog.Logger, conn *ws.Conn, userID domain.UserID, config Config) *Client {
	return &Client{
		log:    log,
		conn:   conn,
		config: config,
		userID: userID,
		send:   make(chan []byte, config.SendBufferSize),
		done:   make(chan struct{}),
	}
}

// Consume never blocks. A full queue means a slow consumer: the connection is
// closed with CloseTryAgainLater so the client reconnects and backfills from
// history instead of silently missing messages.
func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	payload, err := encodeEvent(e)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, payload)
}

func (c *Client) enqueue(_ context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	c.log.Warn("Closing slow consumer", "connection_id", c.connID, "user_id", c.userID,
		"send_buffer_size", cap(c.send))
	c.closeWith(ws.CloseTryAgainLater, "slow consumer")
	return errors.ErrSlowConsumer
}

// reply answers the connection that issued requestID.
func (c *Client) reply(ctx context.Context, frameType, requestID string, payload any) {
	raw, err := encodeFrame(frameType, requestID, payload)
	if err != nil {
		c.log.Error("Cannot encode reply", "connection_id", c.connID, "type", frameType, "error", err)
		return
	}
	if err = c.enqueue(ctx, raw); err != nil {
		c.log.Warn("Reply dropped", "connection_id", c.connID, "type", frameType,
			"request_id", requestID, "error", err)
	}
}

func (c *Client) replyError(ctx context.Context, requestID string, err error) {
	c.reply(ctx, TypeError, requestID, errorPayload(err))
}

// Close stops the write pump, which closes the socket. Safe to call many times.
func (c *Client) Close() error {
	c.closeWith(ws.CloseNormalClosure, "")
	return nil
}

// closeWith only keeps the first code, later closes are no-ops.
func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
}

// readPump feeds every frame to handle until the socket fails.
// Any inbound frame or pong counts as activity for the liveness reaper.
func (c *Client) readPump(handle func(raw []byte), touch func()) {
	c.conn.SetReadLimit(c.config.MaxFrameSize)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		touch()
		c.extendReadDeadline()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.extendReadDeadline()
		touch()
		handle(raw)
	}
}

func (c *Client) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.log.Debug("Cannot set read deadline", "connection_id", c.connID, "error", err)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, ws.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "connection_id", c.connID, "max_frame_size", c.config.MaxFrameSize)
	case ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway):
		c.log.Debug("Client closed connection", "connection_id", c.connID)
	case ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseAbnormalClosure):
		c.log.Warn("Unexpected websocket close", "connection_id", c.connID, "error", err)
	default:
		c.log.Debug("Websocket read ended", "connection_id", c.connID, "error", err)
	}
}

// writePump owns every write on the socket and the keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Websocket close failed", "connection_id", c.connID, "error", err)
		}
	}()

	for {
		select {
		case payload := <-c.send:
			if !c.write(ws.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.write(ws.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.flush()
			c.write(ws.CloseMessage, ws.FormatCloseMessage(c.closeCode, c.closeReason))
			return
		}
	}
}

// flush writes what was queued before Close.
func (c *Client) flush() {
	for range len(c.send) {
		if !c.write(ws.TextMessage, <-c.send) {
			return
		}
	}
}

func (c *Client) write(messageType int, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		c.log.Debug("Cannot set write deadline", "connection_id", c.connID, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		c.log.Debug("Websocket write failed", "connection_id", c.connID, "error", err)
		return false
	}
	return true
}
