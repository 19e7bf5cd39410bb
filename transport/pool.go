// Connection pool for stream transports.
//
// Pool design: uses a buffered channel of idle connections as a natural FIFO queue.
// Each exchange borrows a connection exclusively (Get), so two in-flight exchanges
// never share a socket, and returns it afterwards (Put). A connection that saw an
// error is marked unusable and discarded instead of being returned.
package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"mini-jsonrpc/protocol"
)

var ErrPoolClosed = errors.New("connection pool closed")

// ConnPool manages a pool of reusable connections to a single address.
type ConnPool struct {
	mu       sync.Mutex
	conns    chan *PoolConn // Idle connections, FIFO, goroutine-safe
	done     chan struct{}  // Closed by Close to wake blocked Get calls
	addr     string
	maxConns int
	curConns int // Currently created connections (idle + borrowed)
	closed   bool
	framing  protocol.Framing
	maxMsg   int64 // bound for one framed reply
	factory  func(ctx context.Context) (net.Conn, error)
}

// PoolConn wraps a net.Conn with pool metadata and the connection's frame reader.
type PoolConn struct {
	net.Conn
	frames   protocol.Reader
	unusable bool // Marked true when the connection encounters an error
}

// MarkUnusable makes Put close the connection instead of returning it.
func (c *PoolConn) MarkUnusable() {
	c.unusable = true
}

// ReadMessage reads one framed payload from the connection.
func (c *PoolConn) ReadMessage() ([]byte, error) {
	return c.frames.ReadMessage()
}

// NewConnPool creates a connection pool with the given max size.
// Connections are created lazily: the pool starts empty and grows on demand.
func NewConnPool(addr string, maxConns int, framing protocol.Framing, factory func(ctx context.Context) (net.Conn, error)) *ConnPool {
	if maxConns < 1 {
		maxConns = 1
	}
	return &ConnPool{
		conns:    make(chan *PoolConn, maxConns),
		done:     make(chan struct{}),
		addr:     addr,
		maxConns: maxConns,
		framing:  framing,
		maxMsg:   protocol.MaxMessageSize,
		factory:  factory,
	}
}

// Get retrieves a connection from the pool.
// Strategy:
//  1. Take an idle connection if one is available
//  2. If none is idle but the pool is under its limit, dial a new one
//  3. Otherwise block until a connection is returned, the pool closes or ctx ends
func (p *ConnPool) Get(ctx context.Context) (*PoolConn, error) {
	select {
	case conn := <-p.conns:
		return conn, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.curConns < p.maxConns {
		// Reserve the slot before dialing so concurrent Gets cannot exceed maxConns
		p.curConns++
		p.mu.Unlock()
		return p.createNew(ctx)
	}
	p.mu.Unlock()

	select {
	case conn := <-p.conns:
		return conn, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a connection to the pool.
// If the connection is marked unusable, or the pool is closed, it is closed and discarded.
func (p *ConnPool) Put(conn *PoolConn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn.unusable || p.closed {
		conn.Close()
		p.curConns--
		return
	}
	// Never blocks: at most maxConns connections exist.
	p.conns <- conn
}

// Len returns the number of open connections, idle or borrowed.
func (p *ConnPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curConns
}

// Close shuts down the pool and closes all idle connections. Borrowed connections are
// closed when they are returned.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	for {
		select {
		case conn := <-p.conns:
			conn.Close()
			p.curConns--
		default:
			return nil
		}
	}
}

// createNew dials a connection for a slot already reserved by Get.
func (p *ConnPool) createNew(ctx context.Context) (*PoolConn, error) {
	netConn, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return nil, err
	}

	return &PoolConn{
		Conn:   netConn,
		frames: protocol.NewLimitedReader(p.framing, netConn, p.maxMsg),
	}, nil
}
