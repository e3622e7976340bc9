package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"QullaScan/internal/service/metrics"
	"QullaScan/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	transportSSE  = "sse"
	transportWS   = "ws"
	transportJSON = "json"
)

// sseEmitter writes events as text/event-stream frames and flushes each one.
// Writes are serialized with the heartbeat.
type sseEmitter struct {
	mu   sync.Mutex
	res  *echo.Response
	done chan struct{}
}

func newSSEEmitter(res *echo.Response) *sseEmitter {
	h := res.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	res.WriteHeader(200)
	res.Flush()
	return &sseEmitter{res: res, done: make(chan struct{})}
}

func (s *sseEmitter) Emit(ctx context.Context, e usecase.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.res, "event: %s\ndata: %s\n\n", e.Name, b); err != nil {
		return err
	}
	s.res.Flush()
	metrics.StreamEvents.WithLabelValues(transportSSE, e.Name).Inc()
	return nil
}

// heartbeat writes an SSE comment every interval so idle proxies keep the
// connection open while a slow batch is being fetched.
func (s *sseEmitter) heartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-t.C:
				s.mu.Lock()
				_, err := fmt.Fprint(s.res, ": ping\n\n")
				if err == nil {
					s.res.Flush()
				}
				s.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

func (s *sseEmitter) close() {
	close(s.done)
}

// wsEmitter sends each event as one JSON text message {event, data}.
type wsEmitter struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsEmitter) Emit(ctx context.Context, e usecase.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := w.conn.WriteJSON(e); err != nil {
		return err
	}
	metrics.StreamEvents.WithLabelValues(transportWS, e.Name).Inc()
	return nil
}

// watchClose cancels the scan when the peer closes or the socket breaks.
// Inbound messages are ignored.
func watchClose(conn *websocket.Conn, cancel context.CancelFunc) {
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
