package api

import (
	"context"
	"net/http"
	"time"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/service"
	"campus-found/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// FeedFrame is one snapshot pushed over a feed socket
type FeedFrame struct {
	Type          string                 `json:"type"`
	Messages      []MessageResponse      `json:"messages,omitempty"`
	Conversations []ConversationResponse `json:"conversations,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// FeedHandler serves the live sync feed over WebSockets
type FeedHandler struct {
	messenger      *service.Messenger
	allowedOrigins []string
	upgrader       websocket.Upgrader
	log            *logger.Logger
}

// NewFeedHandler creates a FeedHandler. An empty or "*" origin list accepts
// any origin.
func NewFeedHandler(messenger *service.Messenger, allowedOrigins []string, log *logger.Logger) *FeedHandler {
	h := &FeedHandler{
		messenger:      messenger,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *FeedHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// WatchMessages handles GET /conversations/:id/ws
func (h *FeedHandler) WatchMessages(c *gin.Context) {
	self := caller(c)
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))

	// subscribe before upgrading so that auth and membership errors are
	// still plain HTTP responses
	stream, err := h.messenger.WatchMessages(ctx, self, c.Param("id"))
	if err != nil {
		cancel()
		c.Error(err)
		return
	}

	serve(ctx, cancel, h, c, stream, func(snapshot []models.Message) FeedFrame {
		return FeedFrame{Type: "messages", Messages: toMessageList(snapshot)}
	})
}

// WatchConversations handles GET /ws/conversations
func (h *FeedHandler) WatchConversations(c *gin.Context) {
	self := caller(c)
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))

	stream, err := h.messenger.WatchConversations(ctx, self)
	if err != nil {
		cancel()
		c.Error(err)
		return
	}

	serve(ctx, cancel, h, c, stream, func(snapshot []models.Conversation) FeedFrame {
		return FeedFrame{Type: "conversations", Conversations: toConversationList(snapshot, self)}
	})
}

// serve upgrades the request and pumps snapshots until either side goes
// away. The stream is always closed before serve's goroutines finish.
func serve[T any](ctx context.Context, cancel context.CancelFunc, h *FeedHandler, c *gin.Context, stream *feed.Stream[T], frame func([]T) FeedFrame) {
	log := logger.FromGin(c, h.log)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		stream.Close()
		log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	go readPump(conn, cancel)
	go func() {
		defer cancel()
		defer stream.Close()
		writePump(ctx, conn, stream, frame, log)
	}()
}

// readPump discards client frames and cancels the feed once the peer is gone
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump[T any](ctx context.Context, conn *websocket.Conn, stream *feed.Stream[T], frame func([]T) FeedFrame, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseNormalClosure, "")
			return
		case snapshot, ok := <-stream.Updates():
			if !ok {
				reason := ""
				if err := stream.Err(); err != nil {
					reason = err.Error()
					_ = write(conn, FeedFrame{Type: "error", Error: reason})
				}
				closeWith(conn, websocket.CloseGoingAway, reason)
				return
			}
			if err := write(conn, frame(snapshot)); err != nil {
				log.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, f FeedFrame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
