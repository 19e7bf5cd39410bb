package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"mini-jsonrpc/protocol"
)

// Stream exchanges payloads over a byte stream: TCP, a Unix domain socket, or either
// behind a proxy dialer.
//
// Each exchange borrows one pooled connection, writes the framed payload and reads
// exactly one framed reply before the connection is returned, so bytes of two
// exchanges never interleave on a socket.
type Stream struct {
	network string
	addr    string
	timeout time.Duration
	framing protocol.Framing
	pool    *ConnPool
	logger  *zap.Logger
}

// NewStream creates a stream transport for network "tcp" or "unix".
// Connections are dialed lazily on the first exchange.
func NewStream(network, addr string, opts ...Option) (*Stream, error) {
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return nil, fmt.Errorf("unsupported stream network %q", network)
	}
	if addr == "" {
		return nil, fmt.Errorf("missing %s address", network)
	}

	o := buildOptions(opts)
	s := &Stream{
		network: network,
		addr:    addr,
		timeout: o.timeout,
		framing: o.framing,
		logger:  o.logger.With(zap.String("network", network), zap.String("addr", addr)),
	}
	s.pool = NewConnPool(addr, o.poolSize, o.framing, func(ctx context.Context) (net.Conn, error) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		conn, err := o.dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("stream connection opened", zap.String("local", conn.LocalAddr().String()))
		return conn, nil
	})
	s.pool.maxMsg = o.maxMessage
	return s, nil
}

// TCP is shorthand for NewStream("tcp", addr, opts...).
func TCP(addr string, opts ...Option) (*Stream, error) {
	return NewStream("tcp", addr, opts...)
}

// Unix is shorthand for NewStream("unix", path, opts...).
func Unix(path string, opts ...Option) (*Stream, error) {
	return NewStream("unix", path, opts...)
}

func (s *Stream) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := s.pool.Get(ctx)
	if err != nil {
		return nil, s.classify(ctx, "dial", err)
	}
	defer s.pool.Put(conn)

	// Deadlines bound both the transport timeout and the ctx deadline; a ctx cancel
	// without deadline interrupts blocked I/O by expiring the deadline immediately.
	if deadline, ok := exchangeDeadline(ctx, s.timeout); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			// The cancel hook already fired: the deadline state is unknown.
			conn.MarkUnusable()
			return
		}
		conn.SetDeadline(time.Time{})
	}()

	if err := protocol.Encode(conn, s.framing, payload); err != nil {
		conn.MarkUnusable()
		return nil, s.classify(ctx, "write", err)
	}

	if NoReply(ctx) {
		// A server may still answer, e.g. with a null-id error; that reply must not
		// be read by the next exchange on this socket.
		conn.MarkUnusable()
		return nil, nil
	}

	reply, err := conn.ReadMessage()
	if err != nil {
		// The reader's position is unknown after a failed read: never reuse the socket.
		conn.MarkUnusable()
		s.logger.Debug("stream connection discarded", zap.Error(err))
		return nil, s.classify(ctx, "read", err)
	}
	return reply, nil
}

// Close closes all idle connections. Exchanges after Close fail with KindClosed.
func (s *Stream) Close() error {
	return s.pool.Close()
}

func (s *Stream) classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return Classify(op, s.network+" "+s.addr, err)
}
