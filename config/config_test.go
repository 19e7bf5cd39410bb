package config

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-jsonrpc/internal/rpctest"
	"mini-jsonrpc/message"
	"mini-jsonrpc/protocol"
	"mini-jsonrpc/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jrpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Transport.Kind)
	assert.Equal(t, "http://127.0.0.1:8332", cfg.Transport.Address)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 1, cfg.Transport.PoolSize)
	assert.Equal(t, "counter", cfg.Client.ID)
	assert.Equal(t, 100*time.Millisecond, cfg.Middleware.RetryDelay)
	assert.False(t, cfg.Discovery.Enabled())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: tcp
  address: 127.0.0.1:18444
  timeout: 5s
  pool_size: 4
  framing: content-length
  headers:
    X-Api-Key: secret
    lowercase: v
auth:
  user: alice
  password: pw
client:
  codec: go-json
  id: uuid
middleware:
  rate_limit: 10
  burst: 5
  retries: 2
  retry_delay: 50ms
  log: true
discovery:
  endpoints: ["127.0.0.1:1", "127.0.0.1:2"]
  balancer: consistent-hash
  hash_key: wallet
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Transport.Kind)
	assert.Equal(t, 5*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 4, cfg.Transport.PoolSize)
	assert.Equal(t, map[string]string{"X-Api-Key": "secret", "lowercase": "v"}, cfg.Transport.Headers)
	assert.Equal(t, "alice", cfg.Auth.User)
	assert.Equal(t, "go-json", cfg.Client.Codec)
	assert.Equal(t, 10.0, cfg.Middleware.RateLimit)
	assert.Equal(t, 50*time.Millisecond, cfg.Middleware.RetryDelay)
	assert.Equal(t, []string{"127.0.0.1:1", "127.0.0.1:2"}, cfg.Discovery.Endpoints)
	assert.True(t, cfg.Discovery.Enabled())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
transport:
  address: http://127.0.0.1:8332
`)
	t.Setenv("JRPC_TRANSPORT_ADDRESS", "http://10.0.0.1:18332")
	t.Setenv("JRPC_AUTH_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:18332", cfg.Transport.Address)
	assert.Equal(t, "from-env", cfg.Auth.Password)
}

func TestLoadExpandsCookiePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(writeConfig(t, `
auth:
  cookie_file: ~/.bitcoin/.cookie
`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".bitcoin/.cookie"), cfg.Auth.CookieFile)
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"kind":      "transport:\n  kind: carrier-pigeon\n",
		"framing":   "transport:\n  framing: netstring\n",
		"codec":     "client:\n  codec: msgpack\n",
		"id":        "client:\n  id: random\n",
		"auth":      "auth:\n  user: a\n  cookie_file: /tmp/.cookie\n",
		"balancer":  "discovery:\n  endpoints: [a]\n  balancer: fastest\n",
		"service":   "discovery:\n  etcd_endpoints: [localhost:2379]\n",
		"negative":  "middleware:\n  retries: -1\n",
		"deadline":  "middleware:\n  call_timeout: -1s\n",
		"no creds":  "auth:\n  required: true\n",
		"no config": "",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if content == "" {
				_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
				assert.Error(t, err)
				return
			}
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

type Arith struct{}

type Args struct{ A, B int }

type Reply struct{ Result int }

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func TestBuildHTTP(t *testing.T) {
	s := rpctest.NewServer()
	require.NoError(t, s.Register(&Arith{}))
	srv := httptest.NewServer(s)
	defer srv.Close()

	t.Setenv("JRPC_TRANSPORT_ADDRESS", srv.URL)
	cfg, err := Load(writeConfig(t, `
auth:
  user: alice
  password: pw
middleware:
  log: true
  retries: 1
  rate_limit: 100
`))
	require.NoError(t, err)

	c, err := Build(cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	var reply Reply
	require.NoError(t, c.CallResult(context.Background(), "add", message.Positional(2, 2), &reply))
	assert.Equal(t, 4, reply.Result)
}

func TestBuildStaticDiscovery(t *testing.T) {
	s1 := rpctest.NewServer()
	require.NoError(t, s1.Register(&Arith{}))
	ln1, err := s1.Listen("tcp", "127.0.0.1:0", protocol.FramingRaw)
	require.NoError(t, err)
	defer s1.Shutdown(time.Second)

	s2 := rpctest.NewServer()
	require.NoError(t, s2.Register(&Arith{}))
	ln2, err := s2.Listen("tcp", "127.0.0.1:0", protocol.FramingRaw)
	require.NoError(t, err)
	defer s2.Shutdown(time.Second)

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Transport.Kind = "tcp"
	cfg.Discovery.Endpoints = []string{ln1.Addr().String(), ln2.Addr().String()}
	require.NoError(t, cfg.Validate())

	c, err := Build(cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 4; i++ {
		_, err := c.Call(context.Background(), "add", message.Positional(i, i))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, s1.Payloads())
	assert.EqualValues(t, 2, s2.Payloads())
}

func TestBuildWithProxy(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Proxy.Address = "127.0.0.1:9050"
	c, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestBuildCallTimeout(t *testing.T) {
	// accepts connections and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Transport.Kind = "tcp"
	cfg.Transport.Address = ln.Addr().String()
	cfg.Transport.Timeout = 0
	cfg.Middleware.CallTimeout = 50 * time.Millisecond

	c, err := Build(cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.Call(context.Background(), "add", message.Positional(1, 2))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var te *transport.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, transport.KindTimeout, te.Kind)
}

func TestAuthRequired(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auth:\n  required: true\n  cookie_file: /tmp/.cookie\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Required)

	cfg.Auth.CookieFile = ""
	_, err = Build(cfg, nil)
	assert.ErrorIs(t, err, transport.ErrMissingCredentials)

	cfg.Auth.User, cfg.Auth.Password = "alice", "pw"
	c, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
