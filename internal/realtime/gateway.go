package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/csssit/club-api/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxInboundSize = 512
)

type GatewayConfig struct {
	SendBuffer     int      `mapstructure:"send_buffer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Gateway accepts long-lived websocket connections, resolves the principal
// from the handshake and subscribes each connection to its per-user
// broadcast group. Anonymous connections are kept open but join no group.
type Gateway struct {
	hub      *Hub
	resolver *Resolver
	upgrader websocket.Upgrader
	cfg      GatewayConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewGateway(hub *Hub, resolver *Resolver, cfg GatewayConfig, logger zerolog.Logger, m *metrics.Metrics) *Gateway {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}

	g := &Gateway{
		hub:      hub,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", g.HandleConnection)
}

func (g *Gateway) HandleConnection(c *gin.Context) {
	principal := g.resolver.Resolve(c.Request)

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		g.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &connection{
		ws:   ws,
		send: make(chan []byte, g.cfg.SendBuffer),
	}

	group := principal.GroupKey()
	if group != "" {
		g.hub.Join(group, conn)
	}
	g.metrics.ConnectionsActive.Inc()

	g.logger.Debug().
		Str("group", group).
		Bool("anonymous", principal.Anonymous).
		Msg("websocket connection opened")

	go conn.writePump()
	go g.readPump(conn, group)
}

// readPump discards inbound frames; the push channel is one-way. It exists
// to run the pong handler and to notice the peer going away.
func (g *Gateway) readPump(conn *connection, group string) {
	defer func() {
		if group != "" {
			g.hub.Leave(group, conn)
		}
		g.metrics.ConnectionsActive.Dec()
		conn.close()
		g.logger.Debug().Str("group", group).Msg("websocket connection closed")
	}()

	conn.ws.SetReadLimit(maxInboundSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug().Err(err).Str("group", group).Msg("websocket read failed")
			}
			return
		}
	}
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range g.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// connection is one websocket subscriber. Send never blocks; a full buffer
// means the hub drops the message for this connection only.
type connection struct {
	ws   *websocket.Conn
	send chan []byte
}

func (c *connection) Send(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	c.ws.Close()
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
