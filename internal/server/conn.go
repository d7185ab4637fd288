package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/types"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 16 * 1024
)

// conn is one websocket client attached to a crop.
type conn struct {
	id      string
	crop    *cropper.Crop
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	lastMessages string

	// owned by the read loop: the drag this connection started and whether
	// a move of it was dropped by the limiter
	session string
	dropped bool
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	crop, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, "crop not found", http.StatusNotFound)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Error("websocket accept", "error", err)
		return
	}

	limit := rate.Inf
	if s.cfg.EventRate > 0 {
		limit = rate.Limit(s.cfg.EventRate)
	}
	c := &conn{
		id:      uuid.New().String(),
		crop:    crop,
		ws:      ws,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(limit, max(s.cfg.EventBurst, 1)),
	}
	c.logger = s.logger.With("crop", id, "conn", c.id)

	s.track(id, c)
	defer s.untrack(id, c)

	var unsubscribe []func()
	for _, name := range []string{cropper.EventStarted, cropper.EventMoving, cropper.EventStopped} {
		unsubscribe = append(unsubscribe, crop.Listen(name, c.pushEvent))
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	st, err := stateOf(crop)
	if err != nil {
		ws.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	if raw, err := json.Marshal(st.Messages); err == nil {
		c.lastMessages = string(raw)
	}
	c.push(TypeWelcome, WelcomePayload{ConnectionID: c.id, State: st})
	c.logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.writePump(ctx)
	c.readPump(ctx)
	if c.session != "" && crop.CancelSession(c.session) {
		c.logger.Debug("drag cancelled on disconnect", "session", c.session)
	}
	c.logger.Info("websocket disconnected")
}

func (c *conn) readPump(ctx context.Context) {
	defer c.ws.Close(websocket.StatusNormalClosure, "")
	c.ws.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid message", "error", err)
			c.push(TypeError, ErrorPayload{Error: "invalid message"})
			continue
		}
		if err := c.handle(ctx, &msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.push(TypeError, ErrorPayload{Error: err.Error()})
		}
		c.syncMessages()
	}
}

func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.ws.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// handle applies one client message to the crop. Pointer moves beyond the
// rate limit are dropped, the other pointer phases are never limited, and
// every other message waits for the limiter.
func (c *conn) handle(ctx context.Context, msg *Message) error {
	if msg.Type == TypePointer {
		var p PointerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid pointer payload: %w", err)
		}
		if p.Phase == PhaseMove && !c.limiter.Allow() {
			c.dropped = true
			return nil
		}
		return c.pointer(p)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	switch msg.Type {
	case TypeZoom:
		var z ZoomPayload
		if err := json.Unmarshal(msg.Payload, &z); err != nil {
			return fmt.Errorf("invalid zoom payload: %w", err)
		}
		if z.DeltaY == 0 || math.IsNaN(z.DeltaY) {
			return nil
		}
		scale, err := c.crop.Zoom(z.DeltaY)
		if err != nil {
			return err
		}
		c.push(TypeScale, ScalePayload{Scale: scale})

	case TypeResize:
		var rs ResizePayload
		if err := json.Unmarshal(msg.Payload, &rs); err != nil {
			return fmt.Errorf("invalid resize payload: %w", err)
		}
		if err := c.crop.Resize(rs.Width, rs.Height); err != nil {
			return err
		}
		return c.pushState()

	case TypeTarget:
		var t TargetPayload
		if err := json.Unmarshal(msg.Payload, &t); err != nil {
			return fmt.Errorf("invalid target payload: %w", err)
		}
		if err := c.crop.SetTarget(t.Target); err != nil {
			return err
		}
		return c.pushState()

	case TypeState:
		return c.pushState()

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (c *conn) pointer(p PointerPayload) error {
	pt := types.Pointer{X: p.ClientX, Y: p.ClientY}
	switch p.Phase {
	case PhaseStart:
		id, err := c.crop.StartSession(p.Target, pt)
		if err != nil {
			return err
		}
		c.session, c.dropped = id, false
		return nil
	case PhaseMove:
		_, err := c.crop.Move(pt)
		if err == nil {
			c.dropped = false
		}
		return err
	case PhaseStop:
		// the last rate-limited move is applied before the commit
		if c.dropped {
			c.dropped = false
			if _, err := c.crop.Move(pt); err != nil {
				return err
			}
		}
		_, err := c.crop.Stop(pt)
		c.session = ""
		return err
	case PhaseCancel:
		c.crop.Cancel()
		c.session, c.dropped = "", false
		return c.pushState()
	}
	return fmt.Errorf("unknown pointer phase %q", p.Phase)
}

// pushEvent forwards a widget event. It may run on any goroutine.
func (c *conn) pushEvent(ev cropper.Event) {
	data, err := ev.Crop.Data()
	if err != nil {
		return
	}
	c.push(TypeEvent, EventPayload{
		Name:    ev.Name,
		Session: ev.Session,
		Pointer: ev.Pointer,
		Data:    data,
		Visual:  ev.Crop.Visual(),
	})
	if ev.Name == cropper.EventStopped {
		c.syncMessages()
	}
}

func (c *conn) pushState() error {
	st, err := stateOf(c.crop)
	if err != nil {
		return err
	}
	c.push(TypeState, st)
	return nil
}

// syncMessages pushes the advisory list when it changed since the last push.
func (c *conn) syncMessages() {
	msgs := messagesOf(c.crop)
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	c.mu.Lock()
	changed := string(raw) != c.lastMessages
	c.lastMessages = string(raw)
	c.mu.Unlock()

	if changed {
		c.push(TypeMessages, MessagesPayload{Messages: msgs})
	}
}

func (c *conn) push(typ string, payload any) {
	data, err := encode(typ, payload)
	if err != nil {
		c.logger.Error("marshal message", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", typ)
	}
}
