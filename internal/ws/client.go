package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"travelmate/internal/domain"
	"travelmate/internal/service"
)

type state int32

const (
	stateConnecting state = iota
	stateAuthenticated
	stateActive
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticated:
		return "authenticated"
	case stateActive:
		return "active"
	default:
		return "closed"
	}
}

// Client is one gateway connection. The read loop runs on the HTTP handler
// goroutine; writePump owns every write to conn.
type Client struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway
	// baseLog is safe from any goroutine; log gains user_id on
	// authentication and is only used by the read loop.
	baseLog *slog.Logger
	log     *slog.Logger

	userID  string
	state   atomic.Int32
	send    chan domain.Event
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
	closeMsg  []byte
}

func newClient(g *Gateway, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		id:      id,
		conn:    conn,
		gateway: g,
		baseLog: g.log.With("conn_id", id),
		log:     g.log.With("conn_id", id),
		send:    make(chan domain.Event, g.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(g.opts.EventsPerSecond), g.opts.EventBurst),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) currentState() state { return state(c.state.Load()) }

// Send queues ev without blocking. A client whose buffer is full is too slow
// to keep up and gets disconnected.
func (c *Client) Send(ev domain.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		c.baseLog.Warn("send buffer full, closing connection", "event", ev.Type)
		c.shutdown(websocket.ClosePolicyViolation, "send buffer full")
		return false
	}
}

// shutdown stops the writer, which sends a close frame and closes the
// socket. The read loop then fails and runs cleanup.
func (c *Client) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeMsg = websocket.FormatCloseMessage(code, reason)
		close(c.done)
	})
}

func (c *Client) sendError(ref string, err error) {
	c.Send(domain.NewErrorEvent(ref, domain.ErrorCode(err), errorMessage(err)))
}

// writePump pumps queued events to the socket and keeps the peer alive with
// pings.
func (c *Client) writePump() {
	opts := c.gateway.opts
	ticker := time.NewTicker(opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				c.baseLog.Debug("write failed", "error", err)
				c.shutdown(websocket.CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
				c.shutdown(websocket.CloseGoingAway, "")
				return
			}
		case <-c.done:
			c.flush()
			c.conn.WriteControl(websocket.CloseMessage, c.closeMsg, time.Now().Add(opts.WriteTimeout))
			return
		}
	}
}

func (c *Client) write(ev domain.Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.gateway.opts.WriteTimeout))
	return c.conn.WriteJSON(ev)
}

// flush writes whatever was queued before shutdown, such as the error
// explaining why the connection is being closed.
func (c *Client) flush() {
	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump reads frames until the socket fails or the client is shut down.
func (c *Client) readPump(ctx context.Context) {
	opts := c.gateway.opts
	c.conn.SetReadLimit(opts.MaxFrameBytes)
	c.conn.SetPongHandler(func(string) error {
		if c.currentState() == stateActive {
			return c.conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		}
		return nil
	})
	if c.currentState() == stateConnecting {
		c.conn.SetReadDeadline(time.Now().Add(opts.AuthTimeout))
	} else {
		c.conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if c.currentState() == stateConnecting && errors.As(err, &netErr) && netErr.Timeout() {
				c.log.Info("authentication timed out")
				c.shutdown(websocket.ClosePolicyViolation, "authentication timeout")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		if c.currentState() == stateActive {
			c.conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		}
		c.handleFrame(ctx, data)
		if c.currentState() == stateClosed {
			return
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		c.sendError("", fmt.Errorf("%w: malformed event", domain.ErrValidation))
		return
	}

	if c.currentState() == stateConnecting {
		c.handleUnauthenticated(ctx, env)
		return
	}

	if !c.limiter.Allow() {
		c.sendError(env.Ref, fmt.Errorf("%w: slow down", domain.ErrRateLimited))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.gateway.opts.StoreTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case domain.EventSendMessage:
		err = c.handleSendMessage(callCtx, env)
	case domain.EventTyping:
		err = c.handleTyping(env)
	case domain.EventMarkRead:
		err = c.handleMarkRead(callCtx, env)
	case domain.EventUpdateLocation:
		err = c.handleUpdateLocation(callCtx, env)
	case domain.EventAuth:
		err = fmt.Errorf("%w: already authenticated", domain.ErrValidation)
	default:
		err = fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, env.Type)
	}
	if err != nil {
		c.log.Debug("event rejected", "event", env.Type, "ref", env.Ref, "error", err)
		c.sendError(env.Ref, err)
	}
}

func (c *Client) handleUnauthenticated(ctx context.Context, env domain.Envelope) {
	if env.Type != domain.EventAuth {
		c.sendError(env.Ref, fmt.Errorf("%w: authenticate first", domain.ErrUnauthenticated))
		return
	}
	var p authPayload
	if err := decodePayload(env.Payload, &p); err != nil {
		c.sendError(env.Ref, err)
		return
	}
	userID, err := c.gateway.auth.Authenticate(ctx, p.Token)
	if err != nil {
		c.sendError(env.Ref, err)
		c.shutdown(websocket.ClosePolicyViolation, "authentication failed")
		c.state.Store(int32(stateClosed))
		return
	}
	c.authenticated(userID)
	c.activate(ctx, env.Ref)
	c.conn.SetReadDeadline(time.Now().Add(c.gateway.opts.IdleTimeout))
}

func (c *Client) authenticated(userID string) {
	c.userID = userID
	c.log = c.log.With("user_id", userID)
	c.state.Store(int32(stateAuthenticated))
}

// activate registers the connection, pushes ready and the presence snapshot.
func (c *Client) activate(ctx context.Context, ref string) {
	g := c.gateway
	g.registry.Register(c.userID, c)
	c.state.Store(int32(stateActive))
	c.log.Info("connection active")

	c.Send(domain.Event{Type: domain.EventReady, Ref: ref, Payload: domain.ReadyPayload{UserID: c.userID, ConnID: c.id}})

	snapCtx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	online, err := g.presence.OnlineContacts(snapCtx, c.userID)
	if err != nil {
		c.log.Warn("presence snapshot failed", "error", err)
		return
	}
	for _, id := range online {
		c.Send(domain.Event{Type: domain.EventPresenceChanged, Payload: domain.PresencePayload{UserID: id, Online: true}})
	}
}

func (c *Client) close() {
	prev := state(c.state.Swap(int32(stateClosed)))
	if prev == stateActive {
		c.gateway.registry.Unregister(c.userID, c)
		c.log.Info("connection closed")
	}
	c.shutdown(websocket.CloseNormalClosure, "")
}

func (c *Client) handleSendMessage(ctx context.Context, env domain.Envelope) error {
	var p sendMessagePayload
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}
	msg, err := c.gateway.messages.Send(ctx, service.SendInput{
		SenderID:     c.userID,
		ReceiverID:   p.ReceiverID,
		Body:         p.Body,
		Attachment:   p.Attachment,
		ClientID:     p.ClientID,
		OriginConnID: c.id,
	})
	if err != nil {
		return err
	}
	c.Send(domain.Event{Type: domain.EventNewMessage, Ref: env.Ref, Payload: msg})
	return nil
}

func (c *Client) handleTyping(env domain.Envelope) error {
	var p typingPayload
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}
	if p.ToUserID == c.userID {
		return fmt.Errorf("%w: cannot type to yourself", domain.ErrValidation)
	}
	c.gateway.registry.SendToUser(p.ToUserID, domain.Event{
		Type:    domain.EventTyping,
		Payload: domain.TypingPayload{FromUserID: c.userID, IsTyping: p.IsTyping},
	})
	return nil
}

func (c *Client) handleMarkRead(ctx context.Context, env domain.Envelope) error {
	var p markReadPayload
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}
	_, err := c.gateway.messages.MarkConversationRead(ctx, c.userID, p.OtherUserID)
	return err
}

func (c *Client) handleUpdateLocation(ctx context.Context, env domain.Envelope) error {
	var p locationPayload
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}
	if c.gateway.location == nil {
		return nil
	}
	if err := c.gateway.location.UpdateLocation(ctx, c.userID, *p.Lat, *p.Lng); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}
