// Package rpctest provides an in-process JSON-RPC 2.0 server for tests.
//
// Services are registered by reflection, like net/rpc: every exported method of
// the form Name(*Args, *Reply) error is served as the lowercased method name.
// The same Server answers over a byte stream (TCP/Unix), HTTP and WebSocket:
//
//	Accept conn → serveConn (one reader per connection)
//	  → for each message: go handleMessage
//	    → HandlePayload → single or batch dispatch → reflect.Call → write reply
//
// Options make the server misbehave on purpose (shuffled batches, rewritten
// replies, bitcoind-style HTTP error statuses) to exercise client error paths.
package rpctest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/message"
	"mini-jsonrpc/protocol"
)

// HandlerFunc serves one ad-hoc method registered with Handle.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Server struct {
	mu           sync.RWMutex
	methods      map[string]HandlerFunc
	codec        codec.Codec
	logger       *zap.Logger
	shuffle      bool
	httpStatuses bool
	replyHook    func(request, reply []byte) []byte

	payloads      atomic.Int64 // payloads received, over any transport
	notifications chan string

	listeners []net.Listener
	wg        sync.WaitGroup // in-flight messages, for Shutdown
	shutdown  atomic.Bool
}

type Option func(*Server)

// WithShuffledBatches returns batch replies in random order.
func WithShuffledBatches() Option {
	return func(s *Server) { s.shuffle = true }
}

// WithReplyHook lets a test rewrite each serialized reply before it is sent. The
// hook sees the raw request too; returning nil sends nothing.
func WithReplyHook(hook func(request, reply []byte) []byte) Option {
	return func(s *Server) { s.replyHook = hook }
}

// WithHTTPErrorStatus answers single error responses over HTTP with 404 for unknown
// methods and 500 otherwise, with the JSON body intact, as bitcoind does.
func WithHTTPErrorStatus() Option {
	return func(s *Server) { s.httpStatuses = true }
}

func WithCodec(c codec.Codec) Option {
	return func(s *Server) { s.codec = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		methods:       make(map[string]HandlerFunc),
		codec:         codec.Default,
		logger:        zap.NewNop(),
		notifications: make(chan string, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register serves every method of rcvr that matches Name(*Args, *Reply) error.
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, mt := range svc.method {
		s.methods[name] = func(_ context.Context, params json.RawMessage) (any, error) {
			return svc.call(mt, params)
		}
	}
	return nil
}

// Handle serves method with fn.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = fn
}

// Payloads returns how many payloads the server has received.
func (s *Server) Payloads() int64 {
	return s.payloads.Load()
}

// Notifications delivers the method name of every notification received.
func (s *Server) Notifications() <-chan string {
	return s.notifications
}

// HandlePayload answers one raw payload: a single request or a batch. It returns
// nil when nothing must be sent back (notifications only).
func (s *Server) HandlePayload(ctx context.Context, payload []byte) []byte {
	s.payloads.Add(1)

	var reply any
	if message.IsBatch(payload) {
		if resps := s.handleBatch(ctx, payload); resps != nil {
			reply = resps
		}
	} else if resp := s.handleSingle(ctx, payload); resp != nil {
		reply = resp
	}

	var out []byte
	if reply != nil {
		var err error
		out, err = s.codec.Encode(reply)
		if err != nil {
			s.logger.Error("encode reply", zap.Error(err))
			out = nil
		}
	}
	if s.replyHook != nil {
		out = s.replyHook(payload, out)
	}
	return out
}

func (s *Server) handleBatch(ctx context.Context, payload []byte) any {
	var members []json.RawMessage
	if err := s.codec.Decode(payload, &members); err != nil {
		return message.NewErrorResponse(message.NullID(), message.NewError(message.ParseError, "Parse error"))
	}
	if len(members) == 0 {
		return message.NewErrorResponse(message.NullID(), message.NewError(message.InvalidRequest, "Invalid Request"))
	}

	resps := make([]*message.Response, 0, len(members))
	for _, m := range members {
		if resp := s.handleSingle(ctx, m); resp != nil {
			resps = append(resps, resp)
		}
	}
	if len(resps) == 0 {
		return nil
	}
	if s.shuffle {
		rand.Shuffle(len(resps), func(i, j int) { resps[i], resps[j] = resps[j], resps[i] })
	}
	return resps
}

func (s *Server) handleSingle(ctx context.Context, raw []byte) *message.Response {
	req, err := message.ParseRequest(s.codec, raw)
	if err != nil {
		code := message.InvalidRequest
		msg := "Invalid Request"
		if !json.Valid(raw) {
			code, msg = message.ParseError, "Parse error"
		}
		return message.NewErrorResponse(requestID(raw), message.NewError(code, msg))
	}

	if req.IsNotification() {
		s.invoke(ctx, req)
		select {
		case s.notifications <- req.Method:
		default:
		}
		return nil
	}

	result, rpcErr := s.invoke(ctx, req)
	if rpcErr != nil {
		return message.NewErrorResponse(*req.ID, rpcErr)
	}
	resp, err := message.NewResultResponse(s.codec, *req.ID, result)
	if err != nil {
		return message.NewErrorResponse(*req.ID, message.NewError(message.InternalError, err.Error()))
	}
	return resp
}

func (s *Server) invoke(ctx context.Context, req *message.Request) (any, *message.RPCError) {
	s.mu.RLock()
	fn, ok := s.methods[req.Method]
	s.mu.RUnlock()
	if !ok {
		return nil, message.NewError(message.MethodNotFound, "Method not found")
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		var rpcErr *message.RPCError
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, message.NewError(message.InternalError, err.Error())
	}
	return result, nil
}

// requestID recovers the id of a request that failed validation, or null.
func requestID(raw []byte) message.ID {
	var probe struct {
		ID *message.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == nil {
		return message.NullID()
	}
	return *probe.ID
}

// Listen starts serving framed JSON-RPC on network/address in the background and
// returns the bound listener. Use "127.0.0.1:0" for a free port.
func (s *Server) Listen(network, address string, framing protocol.Framing) (net.Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	go s.accept(ln, framing)
	return ln, nil
}

func (s *Server) accept(ln net.Listener, framing protocol.Framing) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.shutdown.Load() {
				s.logger.Debug("accept stopped", zap.Error(err))
			}
			return
		}
		go s.serveConn(conn, framing)
	}
}

// serveConn reads messages sequentially and answers each in its own goroutine;
// writeMu keeps replies from interleaving on the connection.
func (s *Server) serveConn(conn net.Conn, framing protocol.Framing) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	r := protocol.NewReader(framing, conn)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection closed", zap.Error(err))
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			reply := s.HandlePayload(context.Background(), msg)
			if reply == nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := protocol.Encode(conn, framing, reply); err != nil {
				s.logger.Debug("write reply", zap.Error(err))
			}
		}()
	}
}

// ServeHTTP answers POST requests carrying a JSON-RPC payload.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "JSON-RPC server handles only POST requests", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := s.HandlePayload(r.Context(), body)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.statusFor(reply))
	w.Write(reply)
}

func (s *Server) statusFor(reply []byte) int {
	if !s.httpStatuses || message.IsBatch(reply) {
		return http.StatusOK
	}
	var resp struct {
		Error *message.RPCError `json:"error"`
	}
	if err := json.Unmarshal(reply, &resp); err != nil || resp.Error == nil {
		return http.StatusOK
	}
	if resp.Error.Code == message.MethodNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// WebSocketHandler serves one reply per text message on an upgraded connection.
func (s *Server) WebSocketHandler() http.Handler {
	up := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := s.HandlePayload(r.Context(), msg)
			if reply == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	})
}

// Shutdown closes every listener and waits for in-flight messages.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shutdown.Store(true)

	s.mu.Lock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}
