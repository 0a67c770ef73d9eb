// Package gateway delivers messages through an SMS gateway reached over a
// WebSocket. Requests and delivery reports are JSON text frames
// dispatched on their "op" field.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConnected is returned by deliveries before Connect succeeds.
	ErrNotConnected = errors.New("gateway not connected")
	// ErrConnectionLost is reported for segments outstanding when the
	// connection drops.
	ErrConnectionLost = errors.New("gateway connection lost")
)

// wsConn abstracts the WebSocket connection. *websocket.Conn satisfies it.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type sendFrame struct {
	Op      string `json:"op"`
	ID      string `json:"id"`
	Token   string `json:"token"`
	Segment int    `json:"segment"`
	Total   int    `json:"total"`
	To      string `json:"to"`
	Body    string `json:"body"`
}

type sendMultimediaFrame struct {
	Op          string `json:"op"`
	ID          string `json:"id"`
	Token       string `json:"token"`
	To          string `json:"to"`
	Body        string `json:"body,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

type segmentKey struct {
	token   string
	segment int
}

// Gateway is an outbox transport over one WebSocket connection.
type Gateway struct {
	url     string
	limiter *rate.Limiter
	logger  *zap.Logger

	mu          sync.Mutex
	conn        wsConn
	confirmer   outbox.Confirmer
	outstanding map[segmentKey]struct{}
	connCancel  context.CancelFunc
	done        chan struct{}
}

// New creates a gateway client for url. Segments are written at most
// perSecond per second with the given burst.
func New(url string, perSecond float64, burst int, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		url:         url,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:      logger,
		outstanding: make(map[segmentKey]struct{}),
	}
}

// Bind sets where delivery reports go.
func (g *Gateway) Bind(c outbox.Confirmer) {
	g.mu.Lock()
	g.confirmer = c
	g.mu.Unlock()
}

// Connect dials the gateway and starts reading reports.
func (g *Gateway) Connect(ctx context.Context) error {
	g.logger.Debug("connecting to gateway", zap.String("url", g.url))
	conn, _, err := websocket.Dial(ctx, g.url, nil) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	g.attach(conn)
	g.logger.Info("gateway connected", zap.String("url", g.url))
	return nil
}

func (g *Gateway) attach(conn wsConn) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.mu.Lock()
	g.conn = conn
	g.connCancel = cancel
	g.done = done
	g.mu.Unlock()
	go g.readLoop(ctx, conn, done)
}

// Close ends the connection. Outstanding segments are reported failed.
func (g *Gateway) Close() error {
	g.mu.Lock()
	conn, cancel, done := g.conn, g.connCancel, g.done
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "bye")
	cancel()
	<-done
	return err
}

// Connected reports whether a connection is up.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil
}

// Deliver writes one request per segment, throttled by the rate limiter.
func (g *Gateway) Deliver(ctx context.Context, d outbox.Delivery) error {
	for i, seg := range d.Segments {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttle %s: %w", d.Token, err)
		}
		frame := sendFrame{
			Op:      "send",
			ID:      uuid.NewString(),
			Token:   d.Token,
			Segment: i,
			Total:   len(d.Segments),
			To:      d.Address,
			Body:    seg,
		}
		if err := g.submit(ctx, segmentKey{d.Token, i}, frame); err != nil {
			return err
		}
	}
	return nil
}

// DeliverMultimedia writes one request carrying the attachment.
func (g *Gateway) DeliverMultimedia(ctx context.Context, d outbox.MultimediaDelivery) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle %s: %w", d.Token, err)
	}
	return g.submit(ctx, segmentKey{d.Token, 0}, sendMultimediaFrame{
		Op:          "send_mms",
		ID:          uuid.NewString(),
		Token:       d.Token,
		To:          d.Address,
		Body:        d.Body,
		Name:        d.Attachment.Name,
		ContentType: d.Attachment.ContentType,
		Data:        d.Attachment.Data,
	})
}

func (g *Gateway) submit(ctx context.Context, key segmentKey, v any) error {
	g.mu.Lock()
	conn := g.conn
	if conn != nil {
		g.outstanding[key] = struct{}{}
	}
	g.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := writeJSON(ctx, conn, v); err != nil {
		g.mu.Lock()
		delete(g.outstanding, key)
		g.mu.Unlock()
		return fmt.Errorf("submit %s segment %d: %w", key.token, key.segment, err)
	}
	return nil
}

func (g *Gateway) readLoop(ctx context.Context, conn wsConn, done chan struct{}) {
	defer close(done)
	defer g.drop(conn)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Warn("gateway read failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		switch op := gjson.GetBytes(data, "op").Str; op {
		case "report":
			g.handleReport(data)
		case "ping":
			if err := writeJSON(ctx, conn, map[string]string{"op": "pong"}); err != nil {
				g.logger.Warn("gateway pong failed", zap.Error(err))
			}
		default:
			g.logger.Debug("ignoring gateway frame", zap.String("op", op))
		}
	}
}

func (g *Gateway) handleReport(data []byte) {
	res := gjson.GetManyBytes(data, "token", "segment", "status", "error")
	key := segmentKey{token: res[0].Str, segment: int(res[1].Int())}

	g.mu.Lock()
	_, known := g.outstanding[key]
	delete(g.outstanding, key)
	c := g.confirmer
	g.mu.Unlock()
	if !known {
		g.logger.Debug("report for unknown segment", zap.String("token", key.token), zap.Int("segment", key.segment))
		return
	}
	if c == nil {
		return
	}

	var err error
	if status := res[2].Str; status != "delivered" {
		msg := res[3].Str
		if msg == "" {
			msg = status
		}
		err = fmt.Errorf("gateway: %s", msg)
	}
	c.Confirm(key.token, key.segment, err)
}

// drop forgets conn and fails every segment still awaiting a report.
func (g *Gateway) drop(conn wsConn) {
	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
	}
	lost := make([]segmentKey, 0, len(g.outstanding))
	for k := range g.outstanding {
		lost = append(lost, k)
	}
	clear(g.outstanding)
	c := g.confirmer
	g.mu.Unlock()

	if len(lost) > 0 {
		g.logger.Warn("gateway disconnected with outstanding segments", zap.Int("segments", len(lost)))
	}
	if c == nil {
		return
	}
	for _, k := range lost {
		c.Confirm(k.token, k.segment, ErrConnectionLost)
	}
}

// writeJSON marshals v to JSON and writes it as a text frame.
func writeJSON(ctx context.Context, conn wsConn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling frame: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
