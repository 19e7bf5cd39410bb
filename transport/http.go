package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"mini-jsonrpc/protocol"
)

// HTTP sends one POST per exchange and returns the response body.
//
// A non-2xx status whose body looks like JSON is returned as a normal reply: some
// servers (bitcoind among them) report JSON-RPC errors with HTTP 500. Any other
// non-2xx status is a KindStatus error.
type HTTP struct {
	url     string
	client  *http.Client
	header  http.Header
	auth    Auth
	timeout time.Duration
	maxBody int64
	logger  *zap.Logger
}

// NewHTTP creates an HTTP transport for rawURL ("http://host:port/path").
func NewHTTP(rawURL string, opts ...Option) (*HTTP, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	o := buildOptions(opts)
	h := &HTTP{
		url:     u.String(),
		client:  o.httpClient,
		header:  o.header.Clone(),
		auth:    o.auth,
		timeout: o.timeout,
		maxBody: o.maxMessage,
		logger:  o.logger.With(zap.String("url", u.Redacted())),
	}

	// Credentials embedded in the URL become basic auth, as curl does.
	if u.User != nil && h.auth.IsNone() {
		password, _ := u.User.Password()
		h.auth = UserPass(u.User.Username(), password)
		u.User = nil
		h.url = u.String()
	}

	if h.client == nil {
		h.client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         o.dialer.DialContext,
				MaxIdleConnsPerHost: o.poolSize,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
		if _, custom := o.dialer.(*net.Dialer); !custom {
			// A proxy dialer already decides the route.
			h.client.Transport.(*http.Transport).Proxy = nil
		}
	}
	return h, nil
}

func (h *HTTP) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, Classify("post", h.url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range h.header {
		req.Header[k] = append([]string(nil), vs...)
	}

	user, password, err := h.auth.Credentials()
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "auth", Addr: h.url, Err: err}
	}
	if user != "" || password != "" {
		req.SetBasicAuth(user, password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, Classify("post", h.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody+1))
	if err != nil {
		return nil, Classify("read", h.url, err)
	}
	if int64(len(body)) > h.maxBody {
		return nil, &Error{Kind: KindIO, Op: "read", Addr: h.url, Status: resp.StatusCode,
			Err: fmt.Errorf("%w: body exceeds %d bytes", protocol.ErrMessageTooLarge, h.maxBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if looksLikeJSON(body) {
			h.logger.Debug("json body on non-2xx status", zap.Int("status", resp.StatusCode))
			return body, nil
		}
		return nil, &Error{
			Kind:   KindStatus,
			Op:     "post",
			Addr:   h.url,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("bad status %s", resp.Status),
		}
	}

	if NoReply(ctx) {
		return nil, nil
	}
	return body, nil
}

// Close releases idle keep-alive connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func looksLikeJSON(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) > 0 && (b[0] == '{' || b[0] == '[')
}

// UnixDialer dials path for every connection regardless of the requested address,
// for HTTP servers listening on a Unix domain socket.
func UnixDialer(path string) Dialer {
	return unixDialer{path: path}
}

type unixDialer struct {
	path string
}

func (d unixDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	var nd net.Dialer
	return nd.DialContext(ctx, "unix", d.path)
}
