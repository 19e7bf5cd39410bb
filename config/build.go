package config

import (
	"fmt"

	"go.uber.org/zap"

	"mini-jsonrpc/client"
	"mini-jsonrpc/codec"
	"mini-jsonrpc/idgen"
	"mini-jsonrpc/loadbalance"
	"mini-jsonrpc/middleware"
	"mini-jsonrpc/protocol"
	"mini-jsonrpc/registry"
	"mini-jsonrpc/transport"
)

const defaultService = "jsonrpc"

// Build assembles the transport, middleware and client described by cfg.
// logger may be nil. Close the returned client to release its connections.
func Build(cfg *Config, logger *zap.Logger) (*client.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	t, err := buildTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	ct, _ := codec.ParseType(cfg.Client.Codec)
	ids, ok := idgen.New(cfg.Client.ID)
	if !ok {
		return nil, fmt.Errorf("invalid client.id: %q", cfg.Client.ID)
	}

	return client.New(t,
		client.WithCodec(codec.GetCodec(ct)),
		client.WithGenerator(ids),
		client.WithMiddleware(buildMiddleware(cfg.Middleware, logger)...),
	), nil
}

func buildMiddleware(cfg MiddlewareConfig, logger *zap.Logger) []middleware.Middleware {
	var mws []middleware.Middleware
	if cfg.CallTimeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.CallTimeout))
	}
	if cfg.Log {
		mws = append(mws, middleware.LoggingMiddleware(logger.Named("rpc"), cfg.Verbose))
	}
	if cfg.Retries > 0 {
		mws = append(mws, middleware.RetryMiddleware(cfg.Retries, cfg.RetryDelay, logger))
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.RateLimit, cfg.Burst))
	}
	return mws
}

func buildTransport(cfg *Config, logger *zap.Logger) (transport.Transport, error) {
	framing, err := protocol.ParseFraming(cfg.Transport.Framing)
	if err != nil {
		return nil, err
	}

	auth := authFrom(cfg.Auth)
	if cfg.Auth.Required {
		if err := transport.RequireAuth(auth); err != nil {
			return nil, fmt.Errorf("auth.required: %w", err)
		}
	}

	opts := []transport.Option{
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithPoolSize(cfg.Transport.PoolSize),
		transport.WithFraming(framing),
		transport.WithAuth(auth),
		transport.WithLogger(logger),
	}
	for k, v := range cfg.Transport.Headers {
		opts = append(opts, transport.WithHeader(k, v))
	}
	if cfg.Proxy.Address != "" {
		d, err := transport.SOCKS5(cfg.Proxy.Address, cfg.Proxy.User, cfg.Proxy.Password, cfg.Transport.Timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithDialer(d))
	}

	factory := func(addr string) (transport.Transport, error) {
		return newTransport(cfg.Transport.Kind, addr, opts)
	}
	if !cfg.Discovery.Enabled() {
		return factory(cfg.Transport.Address)
	}

	b, err := loadbalance.New(cfg.Discovery.Balancer, cfg.Discovery.HashKey)
	if err != nil {
		return nil, err
	}
	service := cfg.Discovery.Service
	if service == "" {
		service = defaultService
	}

	var reg registry.Registry
	if len(cfg.Discovery.EtcdEndpoints) > 0 {
		reg, err = registry.NewEtcdRegistry(cfg.Discovery.EtcdEndpoints, cfg.Discovery.DialTimeout, logger)
		if err != nil {
			return nil, err
		}
	} else {
		eps := make([]registry.Endpoint, len(cfg.Discovery.Endpoints))
		for i, addr := range cfg.Discovery.Endpoints {
			eps[i] = registry.Endpoint{Addr: addr, Weight: 1}
		}
		reg = registry.NewStatic(service, eps...)
	}
	return transport.NewBalanced(reg, service, b, factory, logger), nil
}

func newTransport(kind, addr string, opts []transport.Option) (transport.Transport, error) {
	switch kind {
	case "http":
		return transport.NewHTTP(addr, opts...)
	case "tcp":
		return transport.TCP(addr, opts...)
	case "unix":
		return transport.Unix(addr, opts...)
	case "websocket":
		return transport.NewWebSocket(addr, opts...)
	}
	return nil, fmt.Errorf("unknown transport kind %q", kind)
}

func authFrom(a AuthConfig) transport.Auth {
	switch {
	case a.CookieFile != "":
		return transport.CookieFile(a.CookieFile)
	case a.User != "" || a.Password != "":
		return transport.UserPass(a.User, a.Password)
	}
	return transport.NoAuth()
}
