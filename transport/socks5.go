package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// SOCKS5 returns a Dialer that tunnels every connection through the SOCKS5 proxy at
// proxyAddr. The SOCKS handshake (including optional username/password auth) runs
// inside DialContext, before any JSON-RPC byte is exchanged.
//
// Pass the result to NewStream or NewHTTP with WithDialer:
//
//	d, _ := transport.SOCKS5("127.0.0.1:9050", "", "", 10*time.Second)
//	t, _ := transport.TCP("node.onion:8332", transport.WithDialer(d))
func SOCKS5(proxyAddr, user, password string, timeout time.Duration) (Dialer, error) {
	if proxyAddr == "" {
		return nil, fmt.Errorf("missing socks5 proxy address")
	}

	var auth *proxy.Auth
	if user != "" || password != "" {
		auth = &proxy.Auth{User: user, Password: password}
	}

	forward := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	d, err := proxy.SOCKS5("tcp", proxyAddr, auth, forward)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", proxyAddr, err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 %s: dialer does not support contexts", proxyAddr)
	}
	return &socksDialer{proxyAddr: proxyAddr, dialer: cd}, nil
}

type socksDialer struct {
	proxyAddr string
	dialer    proxy.ContextDialer
}

func (d *socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("via socks5 %s: %w", d.proxyAddr, err)
	}
	return conn, nil
}
