// Package ws is the connection gateway: it upgrades authenticated HTTP
// requests to websockets and runs one read loop and one writer per
// connection.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"travelmate/internal/domain"
	"travelmate/internal/presence"
	"travelmate/internal/service"
)

// Options tunes connection lifecycles.
type Options struct {
	AllowedOrigins  []string
	AuthTimeout     time.Duration
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxFrameBytes   int64
	EventsPerSecond float64
	EventBurst      int
	StoreTimeout    time.Duration
}

// pingPeriod must stay below IdleTimeout so a healthy peer's pong always
// lands before the read deadline.
func (o Options) pingPeriod() time.Duration {
	return o.IdleTimeout * 9 / 10
}

// Gateway accepts websocket connections on /api/ws.
type Gateway struct {
	auth     domain.Authenticator
	registry *presence.Registry
	messages *service.MessageService
	presence *service.PresenceService
	location domain.LocationSink
	opts     Options
	log      *slog.Logger

	checkOrigin func(r *http.Request) bool
	upgrader    websocket.Upgrader
	announcer   *announcer

	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
}

// NewGateway builds the gateway and subscribes it to presence transitions
// so interested peers hear about them. location may be nil.
func NewGateway(
	auth domain.Authenticator,
	registry *presence.Registry,
	messages *service.MessageService,
	presenceSvc *service.PresenceService,
	location domain.LocationSink,
	opts Options,
	log *slog.Logger,
) *Gateway {
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	g := &Gateway{
		auth:        auth,
		registry:    registry,
		messages:    messages,
		presence:    presenceSvc,
		location:    location,
		opts:        opts,
		log:         log,
		checkOrigin: checkOrigin,
		upgrader: websocket.Upgrader{
			CheckOrigin:  checkOrigin,
			Subprotocols: []string{"bearer"},
		},
		clients: make(map[*Client]struct{}),
	}
	g.announcer = newAnnouncer(g.announce)
	registry.Subscribe(g.announcer.enqueue)
	return g
}

func (g *Gateway) announce(t presence.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.StoreTimeout)
	defer cancel()
	n := g.presence.Announce(ctx, t.UserID, t.Online)
	g.log.Debug("presence changed", "user_id", t.UserID, "online", t.Online, "notified", n)
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits requests without an Origin header (native and
// server-side clients) and browser requests from an allowed origin.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, wildcard := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" || wildcard {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken reads a bearer token from the Authorization header or from
// the "bearer, <token>" subprotocol pair browsers can set. It returns ""
// when neither is present; the client must then send an auth event.
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

func (g *Gateway) track(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

func (g *Gateway) untrack(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, c)
}

// ServeHTTP authenticates (if a token came with the request), upgrades, and
// runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var userID string
	if token := extractToken(r); token != "" {
		id, err := g.auth.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("upgrade failed", "error", err)
		return
	}

	c := newClient(g, conn)
	if !g.track(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(g.opts.WriteTimeout))
		conn.Close()
		return
	}
	defer g.untrack(c)

	go c.writePump()
	defer c.close()

	ctx := r.Context()
	if userID != "" {
		c.authenticated(userID)
		c.activate(ctx, "")
	}
	c.readPump(ctx)
}

// Shutdown closes every open connection with "going away".
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closing = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
}
