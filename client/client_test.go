package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/idgen"
	"mini-jsonrpc/internal/rpctest"
	"mini-jsonrpc/message"
	"mini-jsonrpc/middleware"
	"mini-jsonrpc/protocol"
	"mini-jsonrpc/transport"
)

// mockTransport answers every exchange with fn and counts calls.
type mockTransport struct {
	calls atomic.Int32
	last  atomic.Value // []byte
	fn    func(ctx context.Context, payload []byte) ([]byte, error)
}

func (m *mockTransport) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	m.calls.Add(1)
	m.last.Store(append([]byte(nil), payload...))
	return m.fn(ctx, payload)
}

func replyWith(reply string) *mockTransport {
	return &mockTransport{fn: func(context.Context, []byte) ([]byte, error) {
		return []byte(reply), nil
	}}
}

func requestIDs(t *testing.T, payload []byte) []message.ID {
	t.Helper()
	reqs, err := message.ParseBatchRequest(nil, payload)
	require.NoError(t, err)
	ids := make([]message.ID, len(reqs))
	for i, r := range reqs {
		ids[i] = *r.ID
	}
	return ids
}

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

type Info struct {
	Version int    `json:"version"`
	Chain   string `json:"chain"`
}

type Node struct{}

func (n *Node) GetInfo(_ *struct{}, reply *Info) error {
	*reply = Info{Version: 1, Chain: "regtest"}
	return nil
}

func newServer(t *testing.T, opts ...rpctest.Option) *rpctest.Server {
	t.Helper()
	s := rpctest.NewServer(opts...)
	require.NoError(t, s.Register(&Arith{}))
	require.NoError(t, s.Register(&Node{}))
	return s
}

func listenTCP(t *testing.T, s *rpctest.Server) string {
	t.Helper()
	ln, err := s.Listen("tcp", "127.0.0.1:0", protocol.FramingRaw)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(time.Second) })
	return ln.Addr().String()
}

func TestCallGetInfo(t *testing.T) {
	mt := replyWith(`{"jsonrpc":"2.0","id":1,"result":{"version":1}}`)
	c := New(mt)

	result, err := c.Call(context.Background(), "getinfo", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(result))

	sent := mt.last.Load().([]byte)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"getinfo","id":1}`, string(sent))
}

func TestCallRPCError(t *testing.T) {
	mt := replyWith(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`)
	c := New(mt)

	_, err := c.Call(context.Background(), "nosuchmethod", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindRPC, ce.Kind)
	assert.Equal(t, "nosuchmethod", ce.Method)

	rpcErr, ok := IsRPC(err)
	require.True(t, ok)
	assert.Equal(t, message.MethodNotFound, rpcErr.Code)
	assert.Equal(t, "Method not found", rpcErr.Message)
	assert.False(t, IsTransport(err))
	assert.Equal(t, "jsonrpc nosuchmethod: jsonrpc error -32601: Method not found", err.Error())
}

func TestCallIDMismatch(t *testing.T) {
	mt := replyWith(`{"jsonrpc":"2.0","id":2,"result":"foo"}`)
	c := New(mt)

	_, err := c.Call(context.Background(), "getinfo", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindIDMismatch, ce.Kind)
	assert.Equal(t, message.IntID(1), ce.Want)
	assert.Equal(t, message.IntID(2), ce.Got)
	assert.ErrorIs(t, err, ErrIDMismatch)
	assert.Equal(t, "jsonrpc getinfo: id mismatch: want 1, got 2", err.Error())
}

func TestCallNullIDError(t *testing.T) {
	mt := replyWith(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`)
	c := New(mt)

	_, err := c.Call(context.Background(), "getinfo", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindRPC, ce.Kind)
	assert.True(t, ce.Got.IsNull())
	rpcErr, ok := IsRPC(err)
	require.True(t, ok)
	assert.Equal(t, message.ParseError, rpcErr.Code)
}

func TestCallNullIDResultIsMismatch(t *testing.T) {
	c := New(replyWith(`{"jsonrpc":"2.0","id":null,"result":1}`))
	_, err := c.Call(context.Background(), "getinfo", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindIDMismatch, ce.Kind)
}

func TestCallProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"not json", `<html>oops</html>`, message.ErrMalformedResponse},
		{"empty", ``, message.ErrMalformedResponse},
		{"both", `{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"x"}}`, message.ErrInvalidEnvelope},
		{"neither", `{"jsonrpc":"2.0","id":1}`, message.ErrInvalidEnvelope},
		{"version", `{"jsonrpc":"1.0","id":1,"result":1}`, message.ErrInvalidVersion},
		{"float id", `{"jsonrpc":"2.0","id":1.5,"result":1}`, message.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(replyWith(tt.reply))
			_, err := c.Call(context.Background(), "getinfo", nil)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, KindProtocol, ce.Kind)
			assert.ErrorIs(t, err, tt.want)
			var pe *message.ProtocolError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestCallTransportError(t *testing.T) {
	boom := &transport.Error{Kind: transport.KindIO, Op: "read", Err: errors.New("boom")}
	mt := &mockTransport{fn: func(context.Context, []byte) ([]byte, error) { return nil, boom }}
	c := New(mt)

	_, err := c.Call(context.Background(), "getinfo", nil)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, boom)
	_, ok := IsRPC(err)
	assert.False(t, ok)
}

func TestCallConnectionRefusedOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tcp, err := transport.TCP(addr)
	require.NoError(t, err)
	counting := &mockTransport{fn: tcp.Exchange}
	c := New(counting)

	_, err = c.Call(context.Background(), "getinfo", nil)
	var te *transport.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, transport.KindRefused, te.Kind)
	assert.True(t, IsTransport(err))
	assert.EqualValues(t, 1, counting.calls.Load())
}

func TestCallInvalidParams(t *testing.T) {
	mt := replyWith(`{}`)
	c := New(mt)

	_, err := c.Call(context.Background(), "getinfo", "scalar")
	assert.ErrorIs(t, err, message.ErrInvalidParams)
	_, err = c.Call(context.Background(), "", nil)
	assert.ErrorIs(t, err, message.ErrInvalidRequest)
	assert.Zero(t, mt.calls.Load())
}

func TestCallResult(t *testing.T) {
	c := New(replyWith(`{"jsonrpc":"2.0","id":1,"result":{"version":70016,"chain":"main"}}`))
	var info Info
	require.NoError(t, c.CallResult(context.Background(), "getinfo", nil, &info))
	assert.Equal(t, Info{Version: 70016, Chain: "main"}, info)

	c = New(replyWith(`{"jsonrpc":"2.0","id":1,"result":"not an object"}`))
	err := c.CallResult(context.Background(), "getinfo", nil, &info)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindProtocol, ce.Kind)

	c = New(replyWith(`{"jsonrpc":"2.0","id":1,"result":null}`))
	assert.NoError(t, c.CallResult(context.Background(), "ping", nil, nil))
}

func TestCallOptional(t *testing.T) {
	c := New(replyWith(`{"jsonrpc":"2.0","id":1,"result":{"version":70016,"chain":"main"}}`))
	var info Info
	found, err := c.CallOptional(context.Background(), "getinfo", nil, &info)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, Info{Version: 70016, Chain: "main"}, info)

	c = New(replyWith(`{"jsonrpc":"2.0","id":1,"result":null}`))
	info = Info{Chain: "untouched"}
	found, err = c.CallOptional(context.Background(), "getinfo", nil, &info)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "untouched", info.Chain)

	c = New(replyWith(`{"jsonrpc":"2.0","id":1,"error":{"code":-5,"message":"not found"}}`))
	found, err = c.CallOptional(context.Background(), "getinfo", nil, &info)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindRPC, ce.Kind)
	assert.False(t, found)

	c = New(replyWith(`{"jsonrpc":"2.0","id":1,"result":[1]}`))
	found, err = c.CallOptional(context.Background(), "getinfo", nil, &info)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindProtocol, ce.Kind)
	assert.True(t, found)
}

func TestNotify(t *testing.T) {
	var sawNoReply bool
	mt := &mockTransport{fn: func(ctx context.Context, _ []byte) ([]byte, error) {
		sawNoReply = transport.NoReply(ctx)
		return nil, nil
	}}
	c := New(mt)

	require.NoError(t, c.Notify(context.Background(), "ping", message.Positional(1)))
	assert.True(t, sawNoReply)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"ping","params":[1]}`, string(mt.last.Load().([]byte)))

	mt.fn = func(context.Context, []byte) ([]byte, error) {
		return nil, &transport.Error{Kind: transport.KindClosed}
	}
	assert.True(t, IsTransport(c.Notify(context.Background(), "ping", nil)))
}

func TestCallBatchEmpty(t *testing.T) {
	mt := replyWith(`[]`)
	c := New(mt)

	_, err := c.CallBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindEmptyBatch, ce.Kind)
	assert.Zero(t, mt.calls.Load())
}

func TestCallBatchOrderIndependent(t *testing.T) {
	mt := replyWith(`[
		{"jsonrpc":"2.0","id":3,"result":"third"},
		{"jsonrpc":"2.0","id":1,"result":"first"},
		{"jsonrpc":"2.0","id":2,"result":"second"}
	]`)
	c := New(mt)

	res, err := c.CallBatch(context.Background(), []BatchCall{
		{Method: "a"}, {Method: "b"}, {Method: "c"},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 3, res.Len())
	assert.Equal(t, []message.ID{message.IntID(1), message.IntID(2), message.IntID(3)}, res.IDs())

	for i, want := range []string{`"first"`, `"second"`, `"third"`} {
		o, ok := res.Get(message.IntID(int64(i + 1)))
		require.True(t, ok)
		require.NoError(t, o.Err)
		assert.Equal(t, want, string(o.Result))
		assert.Equal(t, want, string(res.At(i).Result))
	}
	assert.Equal(t, []message.ID{message.IntID(1), message.IntID(2), message.IntID(3)}, requestIDs(t, mt.last.Load().([]byte)))
}

func TestCallBatchPartialFailure(t *testing.T) {
	mt := replyWith(`[
		{"jsonrpc":"2.0","id":2,"error":{"code":-5,"message":"Invalid address"}},
		{"jsonrpc":"2.0","id":99,"result":"stray"},
		{"jsonrpc":"2.0","id":1,"result":10},
		{"jsonrpc":"2.0","id":1,"result":11}
	]`)
	c := New(mt)

	res, err := c.CallBatch(context.Background(), []BatchCall{
		{Method: "getbalance"},
		{Method: "validateaddress", Params: message.Positional("nope")},
		{Method: "getblockcount"},
	})
	require.NoError(t, err)

	assert.Equal(t, "10", string(res.At(0).Result))

	rpcErr, ok := IsRPC(res.At(1).Err)
	require.True(t, ok)
	assert.Equal(t, -5, rpcErr.Code)

	assert.ErrorIs(t, res.At(2).Err, ErrNoResponse)

	errs := res.Errors()
	require.Len(t, errs, 2)
	var unknown *Error
	require.ErrorAs(t, errs[0], &unknown)
	assert.Equal(t, KindUnknownResponseID, unknown.Kind)
	assert.Equal(t, message.IntID(99), unknown.Got)
	assert.ErrorIs(t, errs[1], ErrDuplicateID)
	assert.ErrorIs(t, res.Err(), ErrUnknownResponseID)
}

func TestCallBatchRejectedWhole(t *testing.T) {
	c := New(replyWith(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`))

	res, err := c.CallBatch(context.Background(), []BatchCall{{Method: "a"}, {Method: "b"}})
	require.NoError(t, err)
	assert.ErrorIs(t, res.At(0).Err, ErrNoResponse)
	assert.ErrorIs(t, res.At(1).Err, ErrNoResponse)

	require.Len(t, res.Errors(), 1)
	rpcErr, ok := IsRPC(res.Err())
	require.True(t, ok)
	assert.Equal(t, message.InvalidRequest, rpcErr.Code)
}

func TestCallBatchSingleObjectReply(t *testing.T) {
	c := New(replyWith(`{"jsonrpc":"2.0","id":1,"result":true}`))
	res, err := c.CallBatch(context.Background(), []BatchCall{{Method: "ping"}})
	require.NoError(t, err)
	assert.Equal(t, "true", string(res.At(0).Result))
}

func TestCallBatchWholeFailures(t *testing.T) {
	for _, reply := range []string{`"nope"`, `[{"jsonrpc":"2.0","id":1`, ``} {
		c := New(replyWith(reply))
		_, err := c.CallBatch(context.Background(), []BatchCall{{Method: "a"}})
		var ce *Error
		require.ErrorAs(t, err, &ce, reply)
		assert.Equal(t, KindProtocol, ce.Kind)
		assert.ErrorIs(t, err, message.ErrMalformedResponse)
	}

	mt := &mockTransport{fn: func(context.Context, []byte) ([]byte, error) {
		return nil, &transport.Error{Kind: transport.KindTimeout}
	}}
	_, err := New(mt).CallBatch(context.Background(), []BatchCall{{Method: "a"}})
	assert.True(t, IsTransport(err))
}

func TestCallBatchMalformedMemberFailsOnlyItsEntry(t *testing.T) {
	c := New(replyWith(`[
		{"jsonrpc":"2.0","id":1,"result":10},
		{"jsonrpc":"2.0","id":2,"result":20},
		{"jsonrpc":"2.0","id":3,"result":1,"error":{"code":-1,"message":"x"}}
	]`))

	res, err := c.CallBatch(context.Background(), []BatchCall{{Method: "a"}, {Method: "b"}, {Method: "c"}})
	require.NoError(t, err)
	assert.NoError(t, res.Err())

	assert.JSONEq(t, `10`, string(res.At(0).Result))
	assert.JSONEq(t, `20`, string(res.At(1).Result))

	bad := res.At(2)
	var ce *Error
	require.ErrorAs(t, bad.Err, &ce)
	assert.Equal(t, KindProtocol, ce.Kind)
	assert.Equal(t, "c", ce.Method)
	var pe *message.ProtocolError
	require.ErrorAs(t, bad.Err, &pe)
	assert.Equal(t, 2, pe.Index)
	assert.ErrorIs(t, bad.Err, message.ErrInvalidEnvelope)
}

func TestCallBatchUnreadableMemberID(t *testing.T) {
	c := New(replyWith(`[
		{"jsonrpc":"2.0","id":1,"result":10},
		{"jsonrpc":"2.0","id":2.5,"result":20}
	]`))

	res, err := c.CallBatch(context.Background(), []BatchCall{{Method: "a"}, {Method: "b"}})
	require.NoError(t, err)

	assert.JSONEq(t, `10`, string(res.At(0).Result))
	assert.ErrorIs(t, res.At(1).Err, ErrNoResponse)

	require.Len(t, res.Errors(), 1)
	assert.ErrorIs(t, res.Errors()[0], message.ErrInvalidID)
	var ce *Error
	require.ErrorAs(t, res.Err(), &ce)
	assert.Equal(t, KindProtocol, ce.Kind)
}

type repeating struct{}

func (repeating) Next() message.ID { return message.IntID(7) }

func TestCallBatchDuplicateIDGuard(t *testing.T) {
	mt := replyWith(`[]`)
	c := New(mt, WithGenerator(repeating{}))

	_, err := c.CallBatch(context.Background(), []BatchCall{{Method: "a"}, {Method: "b"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Zero(t, mt.calls.Load())
}

func TestEndToEndStream(t *testing.T) {
	s := newServer(t, rpctest.WithShuffledBatches())
	tcp, err := transport.TCP(listenTCP(t, s), transport.WithPoolSize(4), transport.WithTimeout(5*time.Second))
	require.NoError(t, err)
	c := New(tcp)
	defer c.Close()

	var reply Reply
	require.NoError(t, c.CallResult(context.Background(), "add", message.Named(map[string]any{"A": 1, "B": 2}), &reply))
	assert.Equal(t, 3, reply.Result)

	var info Info
	require.NoError(t, c.CallResult(context.Background(), "getinfo", nil, &info))
	assert.Equal(t, "regtest", info.Chain)

	calls := make([]BatchCall, 10)
	for i := range calls {
		calls[i] = BatchCall{Method: "add", Params: message.Positional(i, i)}
	}
	res, err := c.CallBatch(context.Background(), calls)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	for i := range calls {
		require.NoError(t, res.At(i).Err)
		assert.JSONEq(t, fmt.Sprintf(`{"Result":%d}`, 2*i), string(res.At(i).Result))
	}

	_, err = c.Call(context.Background(), "nosuchmethod", nil)
	rpcErr, ok := IsRPC(err)
	require.True(t, ok)
	assert.Equal(t, message.MethodNotFound, rpcErr.Code)

	require.NoError(t, c.Notify(context.Background(), "add", message.Positional(1, 1)))
	select {
	case m := <-s.Notifications():
		assert.Equal(t, "add", m)
	case <-time.After(time.Second):
		t.Fatal("notification not received")
	}
}

func TestEndToEndHTTPErrorStatus(t *testing.T) {
	s := newServer(t, rpctest.WithHTTPErrorStatus())
	srv := httptest.NewServer(s)
	defer srv.Close()

	h, err := transport.NewHTTP(srv.URL)
	require.NoError(t, err)
	c := New(h, WithGenerator(idgen.UUID{}), WithCodec(codec.GetCodec(codec.CodecTypeGoJSON)))

	_, err = c.Call(context.Background(), "nosuchmethod", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindRPC, ce.Kind)
	_, isString := ce.Want.Str()
	assert.True(t, isString)

	var reply Reply
	require.NoError(t, c.CallResult(context.Background(), "add", message.Positional(2, 3), &reply))
	assert.Equal(t, 5, reply.Result)

	require.NoError(t, c.Notify(context.Background(), "add", nil))
}

func TestEndToEndWebSocket(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.WebSocketHandler())
	defer srv.Close()

	ws, err := transport.NewWebSocket("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	c := New(ws)
	defer c.Close()

	var reply Reply
	require.NoError(t, c.CallResult(context.Background(), "add", message.Positional(4, 5), &reply))
	assert.Equal(t, 9, reply.Result)
}

func TestEndToEndIDMismatch(t *testing.T) {
	s := newServer(t, rpctest.WithReplyHook(func(_, reply []byte) []byte {
		return []byte(strings.Replace(string(reply), `"id":1,`, `"id":2,`, 1))
	}))
	tcp, err := transport.TCP(listenTCP(t, s))
	require.NoError(t, err)
	c := New(tcp)
	defer c.Close()

	_, err = c.Call(context.Background(), "getinfo", nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindIDMismatch, ce.Kind)
}

func TestConcurrentCalls(t *testing.T) {
	s := newServer(t)
	tcp, err := transport.TCP(listenTCP(t, s), transport.WithPoolSize(4))
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[message.ID]bool{}
	record := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := message.ParseRequest(nil, payload)
			if err == nil {
				mu.Lock()
				seen[*req.ID] = true
				mu.Unlock()
			}
			return next(ctx, payload)
		}
	}
	c := New(tcp, WithMiddleware(record))
	defer c.Close()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var reply Reply
			if err := c.CallResult(context.Background(), "add", message.Positional(i, 1), &reply); err != nil {
				errs <- err
				return
			}
			if reply.Result != i+1 {
				errs <- fmt.Errorf("call %d: got %d", i, reply.Result)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, seen, n)
}

func TestWithLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(replyWith(`{"jsonrpc":"2.0","id":1,"result":1}`),
		WithMiddleware(middleware.LoggingMiddleware(zap.New(core), false)))

	_, err := c.Call(context.Background(), "getblockcount", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("rpc request").Len())
}

func TestErrorStrings(t *testing.T) {
	err := &Error{Kind: KindTransport, Method: "getinfo", Err: errors.New("eof")}
	assert.Equal(t, "jsonrpc getinfo: transport: eof", err.Error())

	err = &Error{Kind: KindUnknownResponseID, Got: message.StringID("x"), Err: ErrUnknownResponseID}
	assert.Equal(t, `jsonrpc: unknown response id "x"`, err.Error())

	err = &Error{Kind: KindEmptyBatch, Err: ErrEmptyBatch}
	assert.Equal(t, "jsonrpc: empty batch", err.Error())
}

func TestRawParams(t *testing.T) {
	mt := replyWith(`{"jsonrpc":"2.0","id":1,"result":null}`)
	c := New(mt)
	_, err := c.Call(context.Background(), "getblock", json.RawMessage(`["00ab", 2]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"getblock","params":["00ab",2],"id":1}`, string(mt.last.Load().([]byte)))
}
