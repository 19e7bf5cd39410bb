// Package transport implements the byte channels a JSON-RPC client talks over.
//
// Every variant satisfies one contract: deliver a request payload, return the reply
// payload. Framing, correlation and envelope validation live above this layer.
//
//	client ──payload──▶ Transport.Exchange ──▶ HTTP POST / TCP / Unix / SOCKS5 / WebSocket
//	client ◀──reply──── Transport.Exchange ◀──
//
// Transports acquire and release their channel inside Exchange (every exit path releases
// it) and never retry: only the caller knows whether a method is idempotent.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mini-jsonrpc/protocol"
)

// Transport is the capability the client requires from any channel.
// Implementations must be safe for concurrent use and must never interleave bytes of
// two exchanges on one physical connection.
type Transport interface {
	Exchange(ctx context.Context, payload []byte) ([]byte, error)
}

// Dialer opens a raw connection. *net.Dialer and the SOCKS5 dialer satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type noReplyKey struct{}

// WithoutReply marks ctx so that Exchange sends the payload and does not wait for a
// reply. Used for notifications, which servers never answer.
func WithoutReply(ctx context.Context) context.Context {
	return context.WithValue(ctx, noReplyKey{}, true)
}

// NoReply reports whether ctx was marked by WithoutReply.
func NoReply(ctx context.Context) bool {
	v, _ := ctx.Value(noReplyKey{}).(bool)
	return v
}

type options struct {
	timeout    time.Duration
	dialer     Dialer
	auth       Auth
	header     http.Header
	httpClient *http.Client
	framing    protocol.Framing
	poolSize   int
	maxMessage int64
	logger     *zap.Logger
}

// Option configures a transport. Options that do not apply to a variant are ignored.
type Option func(*options)

// WithTimeout bounds each exchange, including connection setup.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialer replaces the default net.Dialer, e.g. with a SOCKS5 dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithAuth sets the credentials sent with HTTP and WebSocket requests.
func WithAuth(a Auth) Option {
	return func(o *options) { o.auth = a }
}

// WithHeader adds a header to HTTP and WebSocket requests.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithHTTPClient uses c instead of a client built from the other options.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithFraming selects the stream framing (raw JSON by default).
func WithFraming(f protocol.Framing) Option {
	return func(o *options) { o.framing = f }
}

// WithPoolSize sets how many stream connections may be open at once.
// A size of 1 serializes all exchanges over a single connection.
func WithPoolSize(n int) Option {
	return func(o *options) { o.poolSize = n }
}

// WithLogger receives connection lifecycle events at debug level.
// WithMaxMessageSize bounds a single reply; larger replies fail with
// protocol.ErrMessageTooLarge. The default is protocol.MaxMessageSize.
func WithMaxMessageSize(n int64) Option {
	return func(o *options) { o.maxMessage = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) *options {
	o := &options{poolSize: 1, maxMessage: protocol.MaxMessageSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.poolSize < 1 {
		o.poolSize = 1
	}
	if o.maxMessage < 1 {
		o.maxMessage = protocol.MaxMessageSize
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.dialer == nil {
		o.dialer = &net.Dialer{Timeout: o.timeout, KeepAlive: 30 * time.Second}
	}
	return o
}

// Kind classifies a transport failure.
type Kind uint8

const (
	KindIO         Kind = iota // Generic read/write failure
	KindTimeout                // Deadline exceeded (transport timeout or ctx deadline)
	KindCanceled               // ctx canceled by the caller
	KindRefused                // Connection refused by the peer
	KindClosed                 // Peer closed the channel mid-exchange
	KindStatus                 // HTTP status outside 2xx without a JSON body
	KindNoEndpoint             // No endpoint available to send to
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindRefused:
		return "connection refused"
	case KindClosed:
		return "closed"
	case KindStatus:
		return "bad status"
	case KindNoEndpoint:
		return "no endpoint"
	}
	return "i/o"
}

// Error is a channel-level failure. It is surfaced to the caller uninterpreted.
type Error struct {
	Kind   Kind
	Op     string // "dial", "write", "read", "post", ...
	Addr   string
	Status int // HTTP status for KindStatus
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transport %s", e.Op)
	if e.Addr != "" {
		msg += " " + e.Addr
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (" + e.Kind.String() + ")"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Timeout() bool {
	return e.Kind == KindTimeout
}

// Temporary reports whether resending could plausibly succeed without side effects:
// only a refused connection guarantees the request never reached the server.
func (e *Error) Temporary() bool {
	return e.Kind == KindRefused
}

// Classify wraps err in an *Error of the matching Kind. Errors that already are
// *Error are returned unchanged.
func Classify(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Addr: addr, Err: err}
}

func kindOf(err error) Kind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE), errors.Is(err, ErrPoolClosed):
		return KindClosed
	}
	return KindIO
}

// exchangeDeadline combines the transport timeout with the ctx deadline.
func exchangeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		if t := time.Now().Add(timeout); !ok || t.Before(deadline) {
			return t, true
		}
	}
	return deadline, ok
}
