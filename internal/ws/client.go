// Package ws is the gorilla/websocket transport for the live risk feed. It
// upgrades connections, pairs each one with a stream subscription, and runs
// the usual read/write pump pair per connection.
package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aistm7/riskstream/internal/config"
	"github.com/aistm7/riskstream/internal/stream"
)

// Handler upgrades HTTP requests into live risk feed connections.
type Handler struct {
	cfg      config.WSConfig
	logger   *zap.Logger
	svc      *stream.Service
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler over the streaming service.
func NewHandler(cfg config.WSConfig, logger *zap.Logger, svc *stream.Service) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: logger,
		svc:    svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and subscribes the account to the risk feed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, accountID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub, err := h.svc.Subscribe(accountID)
	if err != nil {
		h.logger.Warn("subscription rejected",
			zap.String("account_id", accountID), zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(h.cfg.WriteTimeout))
		conn.Close()
		return
	}

	connID := uuid.NewString()
	c := &client{
		id:     connID,
		conn:   conn,
		sub:    sub,
		svc:    h.svc,
		cfg:    h.cfg,
		logger: h.logger.With(zap.String("conn_id", connID), zap.String("account_id", accountID)),
	}
	go c.writePump()
	go c.readPump()
}

// client is a single live connection.
type client struct {
	id     string
	conn   *websocket.Conn
	sub    *stream.Subscription
	svc    *stream.Service
	cfg    config.WSConfig
	logger *zap.Logger
}

// readPump consumes inbound messages and hands them to the stream service.
// On any read error the subscription is dropped and the connection closed.
func (c *client) readPump() {
	defer func() {
		c.svc.Drop(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.svc.HandleMessage(c.sub.AccountID(), raw)
	}
}

// writePump drains the subscription's push channel to the connection and
// keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Out():
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
