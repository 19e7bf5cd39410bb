// Package client sends JSON-RPC 2.0 calls over any transport.Transport and
// correlates the replies.
//
//	c := client.New(t)
//	raw, err := c.Call(ctx, "getblockcount", nil)
//
// A Client never retries and never logs. Both are installed by the caller, as
// middleware around the transport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/idgen"
	"mini-jsonrpc/message"
	"mini-jsonrpc/middleware"
	"mini-jsonrpc/transport"
)

// Client is safe for concurrent use when its transport is.
type Client struct {
	transport transport.Transport
	ids       idgen.Generator
	codec     codec.Codec
}

type options struct {
	ids         idgen.Generator
	codec       codec.Codec
	middlewares []middleware.Middleware
}

type Option func(*options)

// WithGenerator replaces the default counter starting at 1.
func WithGenerator(g idgen.Generator) Option {
	return func(o *options) { o.ids = g }
}

// WithCodec replaces codec.Default for requests and replies.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithMiddleware wraps the transport; the first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

func New(t transport.Transport, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.ids == nil {
		o.ids = idgen.NewCounter(1)
	}
	if o.codec == nil {
		o.codec = codec.Default
	}
	return &Client{
		transport: middleware.Wrap(t, o.middlewares...),
		ids:       o.ids,
		codec:     o.codec,
	}
}

// Call sends one request and returns the raw result.
//
// The reply must carry the request's id. A null-id error reply is the server saying
// it could not read the request; with one request outstanding it is returned as
// KindRPC rather than a mismatch.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.ids.Next()
	req, err := message.BuildRequest(c.codec, method, params, &id)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", method, err)
	}
	payload, err := req.Encode(c.codec)
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", method, err)
	}

	reply, err := c.transport.Exchange(ctx, payload)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, Err: err}
	}

	resp, err := message.ParseResponse(c.codec, reply)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Method: method, Err: err}
	}

	if resp.ID != id {
		if !(resp.ID.IsNull() && resp.Error != nil) {
			return nil, &Error{Kind: KindIDMismatch, Method: method, Want: id, Got: resp.ID, Err: ErrIDMismatch}
		}
	}
	if resp.Error != nil {
		return nil, &Error{Kind: KindRPC, Method: method, Want: id, Got: resp.ID, Err: resp.Error}
	}
	return resp.Result, nil
}

// CallResult runs Call and decodes the result into out. A nil out discards it.
func (c *Client) CallResult(ctx context.Context, method string, params any, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := c.codec.Decode(raw, out); err != nil {
		return &Error{Kind: KindProtocol, Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// CallOptional is CallResult for methods that answer null when there is nothing
// to return. found is false for a null result and out is left untouched.
func (c *Client) CallOptional(ctx context.Context, method string, params any, out any) (found bool, err error) {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return false, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := c.codec.Decode(raw, out); err != nil {
		return true, &Error{Kind: KindProtocol, Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return true, nil
}

// Notify sends a request without an id. The server does not answer notifications,
// so the only possible failures are building the request and the transport.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := message.BuildRequest(c.codec, method, params, nil)
	if err != nil {
		return fmt.Errorf("build notification %s: %w", method, err)
	}
	payload, err := req.Encode(c.codec)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", method, err)
	}
	if _, err := c.transport.Exchange(transport.WithoutReply(ctx), payload); err != nil {
		return &Error{Kind: KindTransport, Method: method, Err: err}
	}
	return nil
}

// Close closes the transport when it implements io.Closer.
func (c *Client) Close() error {
	if cl, ok := c.transport.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
