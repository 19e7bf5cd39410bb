package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mini-jsonrpc/protocol"
)

// WebSocket exchanges one text message per call over a single lazily dialed
// connection. Exchanges are serialized by a mutex; the connection is dropped after
// any failure and redialed by the next exchange.
type WebSocket struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	auth    Auth
	timeout time.Duration
	maxMsg  int64
	logger  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates a WebSocket transport for rawURL ("ws://host:port/path").
func NewWebSocket(rawURL string, opts ...Option) (*WebSocket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	o := buildOptions(opts)
	return &WebSocket{
		url: u.String(),
		dialer: &websocket.Dialer{
			NetDialContext:   o.dialer.DialContext,
			HandshakeTimeout: 30 * time.Second,
		},
		header:  o.header.Clone(),
		auth:    o.auth,
		timeout: o.timeout,
		maxMsg:  o.maxMessage,
		logger:  o.logger.With(zap.String("url", u.Redacted())),
	}, nil
}

func (w *WebSocket) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	conn, err := w.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := exchangeDeadline(ctx, w.timeout)
	if !ok {
		deadline = time.Time{}
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		w.drop(err)
		return nil, w.classify(ctx, "write", err)
	}

	if NoReply(ctx) {
		// Any answer the server sends anyway must not reach the next exchange.
		w.drop(nil)
		return nil, nil
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			w.drop(err)
			return nil, w.classify(ctx, "read", err)
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close closes the underlying connection, if any.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *WebSocket) connect(ctx context.Context) (*websocket.Conn, error) {
	if w.conn != nil {
		return w.conn, nil
	}

	header := w.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	user, password, err := w.auth.Credentials()
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "auth", Addr: w.url, Err: err}
	}
	if user != "" || password != "" {
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+password)))
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header) //nolint:bodyclose // websocket connection, not HTTP response
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &Error{Kind: KindStatus, Op: "dial", Addr: w.url, Status: resp.StatusCode, Err: fmt.Errorf("bad status %s: %w", resp.Status, err)}
		}
		return nil, w.classify(ctx, "dial", err)
	}

	conn.SetReadLimit(w.maxMsg)
	w.logger.Debug("websocket connected")
	w.conn = conn
	return conn, nil
}

// drop discards the connection after a failure. Must be called with mu held.
func (w *WebSocket) drop(err error) {
	if w.conn != nil {
		w.logger.Debug("websocket connection discarded", zap.Error(err))
		w.conn.Close()
		w.conn = nil
	}
}

func (w *WebSocket) classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		return &Error{Kind: KindIO, Op: op, Addr: w.url, Err: fmt.Errorf("%w: %w", protocol.ErrMessageTooLarge, err)}
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return &Error{Kind: KindClosed, Op: op, Addr: w.url, Err: err}
	}
	return Classify(op, w.url, err)
}
